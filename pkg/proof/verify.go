// Package proof validates a submitted proof bundle's internal consistency
// and gate results. Verification is a pure function over the bundle and the
// canon/contract facts already in the log; gates are never re-executed here.
package proof

import (
	"sort"
	"strings"

	"mainlane/pkg/canonhash"
	"mainlane/pkg/domain"
)

// Outcome is the verifier's explicit result value. Hard failures
// short-circuit; gate checks accumulate every offending gate id.
type Outcome struct {
	Accepted  bool            `json:"accepted"`
	ProofHash string          `json:"proof_hash,omitempty"`
	Reasons   []domain.Reason `json:"reasons,omitempty"`
}

// Fatal reports whether the rejection implies untrustworthy evidence rather
// than fixable policy failures.
func (o Outcome) Fatal() bool {
	return domain.HasCode(o.Reasons, domain.ReasonHashMismatch)
}

// RequiredGates is the union of canon-required and contract-required gates,
// sorted for deterministic reporting.
func RequiredGates(canon domain.Canon, contract domain.Episode) []string {
	set := make(map[string]bool)
	for _, g := range canon.RequiredGates {
		set[g] = true
	}
	for _, g := range contract.RequiredGates {
		set[g] = true
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Verify checks the bundle in order: self-hash, required gates, env
// fingerprint shape. A hash mismatch is fatal tampering and stops
// everything else; gate failures accumulate so the claimant sees the full
// list at once.
func Verify(bundle domain.ProofBundle, required []string) Outcome {
	if err := bundle.Validate(); err != nil {
		return Outcome{Reasons: []domain.Reason{
			domain.NewReason(domain.ReasonSchemaError, err.Error()),
		}}
	}

	computed, err := bundle.ComputeHash()
	if err != nil {
		return Outcome{Reasons: []domain.Reason{
			domain.NewReason(domain.ReasonSchemaError, err.Error()),
		}}
	}
	if bundle.ProofHash != "" && bundle.ProofHash != computed {
		return Outcome{Reasons: []domain.Reason{{
			Code:    domain.ReasonHashMismatch,
			Message: "claimed proof_hash disagrees with recomputed hash",
			Details: map[string]any{"claimed": bundle.ProofHash, "computed": computed},
		}}}
	}

	var reasons []domain.Reason

	passed := bundle.Passed()
	var missing, failed []string
	seen := make(map[string]bool, len(bundle.Gates))
	for _, g := range bundle.Gates {
		seen[g.GateID] = true
	}
	for _, g := range required {
		switch {
		case !seen[g]:
			missing = append(missing, g)
		case !passed[g]:
			failed = append(failed, g)
		}
	}
	if len(missing) > 0 || len(failed) > 0 {
		details := map[string]any{}
		if len(missing) > 0 {
			details["missing"] = missing
		}
		if len(failed) > 0 {
			details["failed"] = failed
		}
		reasons = append(reasons, domain.Reason{
			Code:    domain.ReasonGateFailure,
			Message: "required gates missing or failed",
			Details: details,
		})
	}

	if !wellFormedFingerprint(bundle.EnvFingerprint) {
		reasons = append(reasons, domain.NewReason(domain.ReasonSchemaError,
			"env_fingerprint is missing or malformed"))
	}

	if len(reasons) > 0 {
		return Outcome{Reasons: reasons}
	}
	return Outcome{Accepted: true, ProofHash: computed}
}

// wellFormedFingerprint checks shape only. Semantic validation of toolchain
// identity belongs to adapters.
func wellFormedFingerprint(fp string) bool {
	fp = strings.TrimSpace(fp)
	if fp == "" {
		return false
	}
	return !strings.ContainsAny(fp, " \t\n")
}

// Record freezes an accepted bundle into an immutable fact ready for log
// append.
func Record(bundle domain.ProofBundle, sub domain.Submission) (domain.ProofBundle, string, error) {
	h, err := bundle.ComputeHash()
	if err != nil {
		return domain.ProofBundle{}, "", err
	}
	if sub.PatchHash != "" && !canonhash.Well(sub.PatchHash) {
		return domain.ProofBundle{}, "", &canonhash.SchemaError{Reason: "submission.patch_hash is malformed"}
	}
	bundle.ProofHash = h
	return bundle, h, nil
}
