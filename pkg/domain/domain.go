// Package domain holds the hashable records the ledger stores facts about:
// canons, episodes and their contracts, claims, submissions, proof bundles
// and compatibility certificates. Every record is immutable once hashed;
// re-authoring produces a new record with a new hash.
package domain

import (
	"strings"

	"mainlane/pkg/canonhash"
)

// Canon is a project's versioned ruleset. Identified by the content hash of
// its canonical serialization; superseded by a new version, never edited.
type Canon struct {
	ProjectID     string   `json:"project_id"`
	Version       int      `json:"version"`
	RequiredGates []string `json:"required_gates"`
	Invariants    []string `json:"invariants,omitempty"`
}

func (c Canon) Validate() error {
	if strings.TrimSpace(c.ProjectID) == "" {
		return &canonhash.SchemaError{Reason: "canon.project_id is required"}
	}
	if c.Version <= 0 {
		return &canonhash.SchemaError{Reason: "canon.version must be positive"}
	}
	return nil
}

// Hash returns the canon_hash of the record.
func (c Canon) Hash() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	h, _, err := canonhash.Sum(c)
	return h, err
}

// Scope bounds the paths an episode's submissions may touch.
type Scope struct {
	AllowedPrefixes   []string `json:"allowed_prefixes"`
	ForbiddenPrefixes []string `json:"forbidden_prefixes,omitempty"`
}

// Allows reports whether path lies under an allowed prefix and under no
// forbidden prefix.
func (s Scope) Allows(path string) bool {
	for _, p := range s.ForbiddenPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	for _, p := range s.AllowedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Overlaps reports whether two scopes can touch a common path. Symmetric:
// prefixes overlap when one is a prefix of the other.
func (s Scope) Overlaps(other Scope) bool {
	for _, a := range s.AllowedPrefixes {
		for _, b := range other.AllowedPrefixes {
			if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
				return true
			}
		}
	}
	return false
}

// Episode is a bounded claimable task. Its content is the contract: the
// hashable specification of what "done" means.
type Episode struct {
	EpisodeID     string   `json:"episode_id"`
	CanonHash     string   `json:"canon_hash"`
	Title         string   `json:"title,omitempty"`
	Scope         Scope    `json:"scope"`
	RequiredGates []string `json:"required_gates"`
	Constraints   []string `json:"constraints,omitempty"`
	Prereqs       []string `json:"prereq_episode_ids,omitempty"`
}

func (e Episode) Validate() error {
	if strings.TrimSpace(e.EpisodeID) == "" {
		return &canonhash.SchemaError{Reason: "episode.episode_id is required"}
	}
	if !canonhash.Well(e.CanonHash) {
		return &canonhash.SchemaError{Reason: "episode.canon_hash is missing or malformed"}
	}
	if len(e.Scope.AllowedPrefixes) == 0 {
		return &canonhash.SchemaError{Reason: "episode.scope.allowed_prefixes is required"}
	}
	return nil
}

// ContractHash returns the content hash of the episode's contract.
func (e Episode) ContractHash() (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	h, _, err := canonhash.Sum(e)
	return h, err
}

// ContractStatus tracks the lifecycle of an episode's current contract.
type ContractStatus string

const (
	ContractOpen       ContractStatus = "OPEN"
	ContractSuperseded ContractStatus = "SUPERSEDED"
	ContractAdvanced   ContractStatus = "ADVANCED"
)

// ClaimStatus is derived from log sequence numbers, never wall-clock.
type ClaimStatus string

const (
	ClaimActive   ClaimStatus = "ACTIVE"
	ClaimExpired  ClaimStatus = "EXPIRED"
	ClaimReleased ClaimStatus = "RELEASED"
)

// Claim leases one episode to one claimant until ExpirySeq passes in the
// project's fact log.
type Claim struct {
	ClaimID     string      `json:"claim_id"`
	EpisodeID   string      `json:"episode_id"`
	ClaimantID  string      `json:"claimant_id"`
	AcquiredSeq uint64      `json:"acquired_seq"`
	ExpirySeq   uint64      `json:"expiry_seq"`
	Status      ClaimStatus `json:"status"`
}

// StatusAt resolves the claim's effective status against the current log seq.
func (c Claim) StatusAt(currentSeq uint64) ClaimStatus {
	if c.Status == ClaimReleased {
		return ClaimReleased
	}
	if currentSeq >= c.ExpirySeq {
		return ClaimExpired
	}
	return ClaimActive
}

// Submission is a claimant's candidate change. TouchedPaths is the patch's
// file manifest, materialized by an adapter; the core never parses patches.
type Submission struct {
	SubmissionID string   `json:"submission_id"`
	EpisodeID    string   `json:"episode_id"`
	PatchHash    string   `json:"patch_hash"`
	BaseRef      string   `json:"base_ref"`
	TouchedPaths []string `json:"touched_paths"`
}

func (s Submission) Validate() error {
	if strings.TrimSpace(s.SubmissionID) == "" {
		return &canonhash.SchemaError{Reason: "submission.submission_id is required"}
	}
	if strings.TrimSpace(s.EpisodeID) == "" {
		return &canonhash.SchemaError{Reason: "submission.episode_id is required"}
	}
	if strings.TrimSpace(s.PatchHash) == "" {
		return &canonhash.SchemaError{Reason: "submission.patch_hash is required"}
	}
	if strings.TrimSpace(s.BaseRef) == "" {
		return &canonhash.SchemaError{Reason: "submission.base_ref is required"}
	}
	return nil
}

// GateResult is one gate's recorded outcome inside a proof bundle. LogHash
// and ArtifactHashes are pointers; the ledger never stores logs or binaries.
type GateResult struct {
	GateID         string   `json:"gate_id"`
	Pass           bool     `json:"pass"`
	LogHash        string   `json:"log_hash,omitempty"`
	ArtifactHashes []string `json:"artifact_hashes,omitempty"`
}

// ProofBundle is the evidence for a submission. ProofHash is a self-hash
// over the bundle with the field cleared.
type ProofBundle struct {
	EpisodeID      string       `json:"episode_id"`
	SubmissionID   string       `json:"submission_id"`
	Gates          []GateResult `json:"gates"`
	EnvFingerprint string       `json:"env_fingerprint"`
	ProofHash      string       `json:"proof_hash,omitempty"`
}

func (b ProofBundle) Validate() error {
	if strings.TrimSpace(b.EpisodeID) == "" {
		return &canonhash.SchemaError{Reason: "proof.episode_id is required"}
	}
	if strings.TrimSpace(b.SubmissionID) == "" {
		return &canonhash.SchemaError{Reason: "proof.submission_id is required"}
	}
	if len(b.Gates) == 0 {
		return &canonhash.SchemaError{Reason: "proof.gates is required"}
	}
	for _, g := range b.Gates {
		if strings.TrimSpace(g.GateID) == "" {
			return &canonhash.SchemaError{Reason: "proof.gates entry missing gate_id"}
		}
	}
	return nil
}

// ComputeHash recomputes the bundle's self-hash.
func (b ProofBundle) ComputeHash() (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	c := b
	c.ProofHash = ""
	h, _, err := canonhash.Sum(c)
	return h, err
}

// Passed returns the set of gate ids with a passing result.
func (b ProofBundle) Passed() map[string]bool {
	out := make(map[string]bool, len(b.Gates))
	for _, g := range b.Gates {
		if g.Pass {
			out[g.GateID] = true
		}
	}
	return out
}

// CompatibilityCertificate is the deterministic composability verdict for a
// submission. Each check is reported individually so a rejection is
// actionable; CompatHash is a self-hash with the field cleared.
type CompatibilityCertificate struct {
	EpisodeID        string   `json:"episode_id"`
	SubmissionID     string   `json:"submission_id"`
	ScopeOK          bool     `json:"scope_ok"`
	BaseOK           bool     `json:"base_ok"`
	GatesOK          bool     `json:"gates_ok"`
	ConflictDetected bool     `json:"conflict_detected"`
	BaseRef          string   `json:"base_ref"`
	ProofHash        string   `json:"proof_hash"`
	RulesetHash      string   `json:"ruleset_hash"`
	Reasons          []Reason `json:"reasons,omitempty"`
	CompatHash       string   `json:"compat_hash,omitempty"`
}

// OK reports whether all four checks combine to an overall pass.
func (c CompatibilityCertificate) OK() bool {
	return c.ScopeOK && c.BaseOK && c.GatesOK && !c.ConflictDetected
}

// ComputeHash recomputes the certificate's self-hash.
func (c CompatibilityCertificate) ComputeHash() (string, error) {
	cp := c
	cp.CompatHash = ""
	h, _, err := canonhash.Sum(cp)
	return h, err
}
