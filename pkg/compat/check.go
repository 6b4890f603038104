// Package compat decides whether a submission composes with the current
// head: scope conformance, base freshness, gate coverage and conflict
// detection. Four independent boolean checks AND together; each is reported
// individually so a rejection is actionable.
package compat

import (
	"fmt"
	"sort"

	"mainlane/pkg/canonhash"
	"mainlane/pkg/domain"
	"mainlane/pkg/proof"
)

// Input is everything the checker needs, already materialized. The checker
// performs no I/O: the patch manifest lives on the submission and the scopes
// of other in-flight submissions are provided by the caller.
type Input struct {
	Submission  domain.Submission
	Proof       domain.ProofBundle
	Canon       domain.Canon
	Contract    domain.Episode
	ContractRef string // contract_hash of Contract
	CanonRef    string // canon_hash of Canon
	CurrentHead string

	// CompetingScopes are the scopes of submissions that advanced the head
	// after this submission's base root, keyed by submission id.
	CompetingScopes map[string]domain.Scope
}

// RulesetHash commits to exactly which policy version produced a verdict.
func RulesetHash(canonHash, contractHash string) string {
	return canonhash.SumConcat(canonHash, contractHash)
}

// Check runs all four checks and returns a hashed certificate. It never
// short-circuits: a stale base and a scope violation are both reported.
func Check(in Input) (domain.CompatibilityCertificate, error) {
	if err := in.Submission.Validate(); err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	proofHash, err := in.Proof.ComputeHash()
	if err != nil {
		return domain.CompatibilityCertificate{}, err
	}

	cert := domain.CompatibilityCertificate{
		EpisodeID:    in.Submission.EpisodeID,
		SubmissionID: in.Submission.SubmissionID,
		BaseRef:      in.Submission.BaseRef,
		ProofHash:    proofHash,
		RulesetHash:  RulesetHash(in.CanonRef, in.ContractRef),
	}

	cert.ScopeOK = true
	var violations []string
	for _, p := range in.Submission.TouchedPaths {
		if !in.Contract.Scope.Allows(p) {
			cert.ScopeOK = false
			violations = append(violations, p)
		}
	}
	if !cert.ScopeOK {
		cert.Reasons = append(cert.Reasons, domain.Reason{
			Code:    domain.ReasonScopeViolation,
			Message: "touched paths outside the contract's scope",
			Details: map[string]any{"paths": violations},
		})
	}

	cert.BaseOK = in.Submission.BaseRef == in.CurrentHead
	if !cert.BaseOK {
		cert.Reasons = append(cert.Reasons, domain.Reason{
			Code:    domain.ReasonStaleBase,
			Message: fmt.Sprintf("base_ref %s is behind head %s; resubmit against the new head", in.Submission.BaseRef, in.CurrentHead),
		})
	}

	required := proof.RequiredGates(in.Canon, in.Contract)
	passed := in.Proof.Passed()
	cert.GatesOK = true
	var uncovered []string
	for _, g := range required {
		if !passed[g] {
			cert.GatesOK = false
			uncovered = append(uncovered, g)
		}
	}
	if !cert.GatesOK {
		cert.Reasons = append(cert.Reasons, domain.Reason{
			Code:    domain.ReasonGateFailure,
			Message: "proof does not cover all required gates",
			Details: map[string]any{"uncovered": uncovered},
		})
	}

	// Deterministic iteration so the certificate (and its hash) never
	// depends on map order.
	competing := make([]string, 0, len(in.CompetingScopes))
	for otherID := range in.CompetingScopes {
		competing = append(competing, otherID)
	}
	sort.Strings(competing)
	for _, otherID := range competing {
		if otherID == in.Submission.SubmissionID {
			continue
		}
		if in.Contract.Scope.Overlaps(in.CompetingScopes[otherID]) {
			cert.ConflictDetected = true
			cert.Reasons = append(cert.Reasons, domain.Reason{
				Code:    domain.ReasonConflictDetected,
				Message: "scope overlaps another submission advancing since the same head",
				Details: map[string]any{"submission_id": otherID},
			})
			break
		}
	}

	h, err := cert.ComputeHash()
	if err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	cert.CompatHash = h
	return cert, nil
}
