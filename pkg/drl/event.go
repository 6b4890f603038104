// Package drl implements the Deterministic Recurrence Ledger: an append-only,
// hash-chained sequence of typed facts per project, plus periodic Merkle
// commitments over ranges of entries. Appending is the only mutation the log
// exposes; the full history can always be re-derived by reading from seq 0.
package drl

import (
	"encoding/json"
	"fmt"
	"strconv"

	"mainlane/pkg/canonhash"
	"mainlane/pkg/domain"
)

type EventType string

const (
	EventCanonPublished     EventType = "CanonPublished"
	EventEpisodePublished   EventType = "EpisodePublished"
	EventClaimAcquired      EventType = "ClaimAcquired"
	EventClaimReleased      EventType = "ClaimReleased"
	EventProofRecorded      EventType = "ProofRecorded"
	EventCompatCertified    EventType = "CompatCertified"
	EventMainAdvanced       EventType = "MainAdvanced"
	EventSubmissionRejected EventType = "SubmissionRejected"
	EventRootCommitted      EventType = "RootCommitted"
)

// Event is the only unit ever appended to a fact log. Payload holds the
// canonical bytes of the typed payload; PayloadHash is their digest and
// EventHash chains the entry to its predecessor.
type Event struct {
	Seq         uint64          `json:"seq"`
	Type        EventType       `json:"type"`
	ProjectID   string          `json:"project_id"`
	PrevHash    string          `json:"prev_hash"`
	PayloadHash string          `json:"payload_hash"`
	EventHash   string          `json:"event_hash"`
	Payload     json.RawMessage `json:"payload"`
}

// ChainHash links an event to its predecessor: prev_hash, payload_hash and
// seq joined and digested.
func ChainHash(prevHash, payloadHash string, seq uint64) string {
	return canonhash.SumConcat(prevHash, payloadHash, strconv.FormatUint(seq, 10))
}

// Decode unmarshals the event payload into dst after re-checking the
// recorded payload hash against the stored bytes.
func (e Event) Decode(dst any) error {
	if got := canonhash.SumBytes(e.Payload); got != e.PayloadHash {
		return &HashMismatchError{Seq: e.Seq, Expected: e.PayloadHash, Computed: got}
	}
	return json.Unmarshal(e.Payload, dst)
}

// HashMismatchError flags tampering or corruption: a payload whose
// recomputed hash disagrees with the recorded one. Never retried.
type HashMismatchError struct {
	Seq      uint64
	Expected string
	Computed string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch at seq %d: recorded %s, recomputed %s", e.Seq, e.Expected, e.Computed)
}

// ChainError flags a broken chain link or sequence gap during verification.
type ChainError struct {
	Seq    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain broken at seq %d: %s", e.Seq, e.Reason)
}

// Typed payloads, one per event type. Fields beyond the identifying hashes
// are the content digested into payload_hash. Canon and episode publications
// embed the full record so registries can be rebuilt from the log alone.

type CanonPublished struct {
	ProjectID string       `json:"project_id"`
	CanonHash string       `json:"canon_hash"`
	Version   int          `json:"version"`
	Canon     domain.Canon `json:"canon"`
}

type EpisodePublished struct {
	EpisodeID    string         `json:"episode_id"`
	ContractHash string         `json:"contract_hash"`
	CanonHash    string         `json:"canon_hash"`
	Episode      domain.Episode `json:"episode"`
}

type ClaimAcquired struct {
	EpisodeID  string `json:"episode_id"`
	ClaimID    string `json:"claim_id"`
	ClaimantID string `json:"claimant_id"`
	ExpirySeq  uint64 `json:"expiry_seq"`
}

type ClaimReleased struct {
	EpisodeID string `json:"episode_id"`
	ClaimID   string `json:"claim_id"`
	Reason    string `json:"reason,omitempty"`
}

type ProofRecorded struct {
	EpisodeID      string `json:"episode_id"`
	SubmissionID   string `json:"submission_id"`
	ProofHash      string `json:"proof_hash"`
	PatchHash      string `json:"patch_hash"`
	BaseRef        string `json:"base_ref"`
	EnvFingerprint string `json:"env_fingerprint"`
}

type CompatCertified struct {
	EpisodeID    string `json:"episode_id"`
	SubmissionID string `json:"submission_id"`
	CompatHash   string `json:"compat_hash"`
	RulesetHash  string `json:"ruleset_hash"`
	BaseRef      string `json:"base_ref"`
}

type MainAdvanced struct {
	ProjectID  string `json:"project_id"`
	PrevRoot   string `json:"prev_root"`
	NextRoot   string `json:"next_root"`
	MergeRef   string `json:"merge_ref"`
	EpisodeID  string `json:"episode_id"`
	ProofHash  string `json:"proof_hash"`
	CompatHash string `json:"compat_hash"`
}

type SubmissionRejected struct {
	EpisodeID    string          `json:"episode_id"`
	SubmissionID string          `json:"submission_id"`
	Reasons      []domain.Reason `json:"reasons"`
}

type RootCommitted struct {
	FromSeq    uint64 `json:"from_seq"`
	ToSeq      uint64 `json:"to_seq"`
	MerkleRoot string `json:"merkle_root"`
}
