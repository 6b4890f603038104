// Package registry materializes lookup views over a project's fact log.
// A registry rebuilt from an empty state by replaying the log is identical
// to one maintained incrementally; Apply is the only mutation path and it
// consumes committed events exclusively.
package registry

import (
	"errors"
	"fmt"

	"mainlane/pkg/canonhash"
	"mainlane/pkg/domain"
	"mainlane/pkg/drl"
)

// ErrClaimConflict is returned to a later claimant while an earlier one
// holds an active, unexpired claim.
var ErrClaimConflict = errors.New("episode already actively claimed")

// ErrUnknownCanon and ErrUnknownContract flag dangling references: an
// out-of-order or missing publication, always fatal for that evaluation.
var (
	ErrUnknownCanon    = errors.New("unknown canon")
	ErrUnknownContract = errors.New("unknown contract")
)

// Advancement is one recorded head move, in order. roots[i] is the head
// before advancement i; roots[i+1] is its NextRoot.
type Advancement struct {
	PrevRoot     string
	NextRoot     string
	EpisodeID    string
	SubmissionID string
	ContractHash string
}

// Registry folds a single project's events into current-state lookups.
type Registry struct {
	head         string
	roots        []string // every committed root, genesis first
	advancements []Advancement

	canons        map[string]domain.Canon // canon_hash -> content
	latestCanon   string                  // current canon_hash
	contracts     map[string]domain.Episode
	latestByEp    map[string]string // episode_id -> current contract_hash
	contractState map[string]domain.ContractStatus
	advancedBy    map[string]string       // contract_hash -> advancing submission_id
	claims        map[string]domain.Claim // episode_id -> current claim

	proofs map[string]drl.ProofRecorded   // submission_id -> recorded proof
	certs  map[string]drl.CompatCertified // submission_id -> certificate
}

func New() *Registry {
	return &Registry{
		head:          canonhash.ZeroHash,
		roots:         []string{canonhash.ZeroHash},
		canons:        make(map[string]domain.Canon),
		contracts:     make(map[string]domain.Episode),
		latestByEp:    make(map[string]string),
		contractState: make(map[string]domain.ContractStatus),
		advancedBy:    make(map[string]string),
		claims:        make(map[string]domain.Claim),
		proofs:        make(map[string]drl.ProofRecorded),
		certs:         make(map[string]drl.CompatCertified),
	}
}

// Rebuild replays events from empty state.
func Rebuild(events []drl.Event) (*Registry, error) {
	r := New()
	for _, e := range events {
		if err := r.Apply(e); err != nil {
			return nil, fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
	}
	return r, nil
}

// Apply folds one committed event into the views.
func (r *Registry) Apply(e drl.Event) error {
	switch e.Type {
	case drl.EventCanonPublished:
		var p drl.CanonPublished
		if err := e.Decode(&p); err != nil {
			return err
		}
		got, err := p.Canon.Hash()
		if err != nil {
			return err
		}
		if got != p.CanonHash {
			return &drl.HashMismatchError{Seq: e.Seq, Expected: p.CanonHash, Computed: got}
		}
		r.canons[p.CanonHash] = p.Canon
		r.latestCanon = p.CanonHash

	case drl.EventEpisodePublished:
		var p drl.EpisodePublished
		if err := e.Decode(&p); err != nil {
			return err
		}
		got, err := p.Episode.ContractHash()
		if err != nil {
			return err
		}
		if got != p.ContractHash {
			return &drl.HashMismatchError{Seq: e.Seq, Expected: p.ContractHash, Computed: got}
		}
		if _, ok := r.canons[p.CanonHash]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCanon, p.CanonHash)
		}
		if prev, ok := r.latestByEp[p.EpisodeID]; ok && prev != p.ContractHash {
			r.contractState[prev] = domain.ContractSuperseded
		}
		r.contracts[p.ContractHash] = p.Episode
		r.latestByEp[p.EpisodeID] = p.ContractHash
		r.contractState[p.ContractHash] = domain.ContractOpen

	case drl.EventClaimAcquired:
		var p drl.ClaimAcquired
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.claims[p.EpisodeID] = domain.Claim{
			ClaimID:     p.ClaimID,
			EpisodeID:   p.EpisodeID,
			ClaimantID:  p.ClaimantID,
			AcquiredSeq: e.Seq,
			ExpirySeq:   p.ExpirySeq,
			Status:      domain.ClaimActive,
		}

	case drl.EventClaimReleased:
		var p drl.ClaimReleased
		if err := e.Decode(&p); err != nil {
			return err
		}
		if c, ok := r.claims[p.EpisodeID]; ok && c.ClaimID == p.ClaimID {
			c.Status = domain.ClaimReleased
			r.claims[p.EpisodeID] = c
		}

	case drl.EventProofRecorded:
		var p drl.ProofRecorded
		if err := e.Decode(&p); err != nil {
			return err
		}
		if _, ok := r.latestByEp[p.EpisodeID]; !ok {
			return fmt.Errorf("%w: episode %s", ErrUnknownContract, p.EpisodeID)
		}
		r.proofs[p.SubmissionID] = p

	case drl.EventCompatCertified:
		var p drl.CompatCertified
		if err := e.Decode(&p); err != nil {
			return err
		}
		if _, ok := r.proofs[p.SubmissionID]; !ok {
			return fmt.Errorf("certificate references unrecorded proof for submission %s", p.SubmissionID)
		}
		r.certs[p.SubmissionID] = p

	case drl.EventMainAdvanced:
		var p drl.MainAdvanced
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.PrevRoot != r.head {
			return fmt.Errorf("advancement from %s does not match head %s", p.PrevRoot, r.head)
		}
		r.head = p.NextRoot
		r.roots = append(r.roots, p.NextRoot)
		ch := r.latestByEp[p.EpisodeID]
		var subID string
		for id, rec := range r.proofs {
			if rec.EpisodeID == p.EpisodeID && rec.ProofHash == p.ProofHash {
				subID = id
				break
			}
		}
		if ch != "" {
			r.contractState[ch] = domain.ContractAdvanced
			if subID != "" {
				r.advancedBy[ch] = subID
			}
		}
		r.advancements = append(r.advancements, Advancement{
			PrevRoot:     p.PrevRoot,
			NextRoot:     p.NextRoot,
			EpisodeID:    p.EpisodeID,
			SubmissionID: subID,
			ContractHash: ch,
		})

	case drl.EventSubmissionRejected, drl.EventRootCommitted:
		// Audit records; no view state.

	default:
		return fmt.Errorf("unknown event type %q at seq %d", e.Type, e.Seq)
	}
	return nil
}

// Head is the current committed root, ZeroHash before any advancement.
func (r *Registry) Head() string { return r.head }

// WasRoot reports whether ref equals some historical head_root.
func (r *Registry) WasRoot(ref string) bool {
	for _, root := range r.roots {
		if root == ref {
			return true
		}
	}
	return false
}

// Canon returns the current canon content.
func (r *Registry) Canon() (domain.Canon, string, bool) {
	if r.latestCanon == "" {
		return domain.Canon{}, "", false
	}
	return r.canons[r.latestCanon], r.latestCanon, true
}

// CanonByHash looks up a historical canon version.
func (r *Registry) CanonByHash(hash string) (domain.Canon, bool) {
	c, ok := r.canons[hash]
	return c, ok
}

// Contract returns a contract's content by hash.
func (r *Registry) Contract(contractHash string) (domain.Episode, bool) {
	c, ok := r.contracts[contractHash]
	return c, ok
}

// CurrentContract returns the episode's current (not superseded) contract.
func (r *Registry) CurrentContract(episodeID string) (domain.Episode, string, bool) {
	h, ok := r.latestByEp[episodeID]
	if !ok {
		return domain.Episode{}, "", false
	}
	return r.contracts[h], h, true
}

// AdvancedSince returns the advancements recorded after ref was the head,
// oldest first. Refs that were never a root return nil.
func (r *Registry) AdvancedSince(ref string) []Advancement {
	for i, root := range r.roots {
		if root == ref {
			out := make([]Advancement, len(r.advancements)-i)
			copy(out, r.advancements[i:])
			return out
		}
	}
	return nil
}

// AdvancedBy returns the submission that advanced the contract.
func (r *Registry) AdvancedBy(contractHash string) (string, bool) {
	id, ok := r.advancedBy[contractHash]
	return id, ok
}

// ContractState reports a contract's lifecycle status.
func (r *Registry) ContractState(contractHash string) (domain.ContractStatus, bool) {
	s, ok := r.contractState[contractHash]
	return s, ok
}

// Episodes lists episode ids with a published contract.
func (r *Registry) Episodes() []string {
	out := make([]string, 0, len(r.latestByEp))
	for id := range r.latestByEp {
		out = append(out, id)
	}
	return out
}

// Claim returns the episode's current claim record, if any.
func (r *Registry) Claim(episodeID string) (domain.Claim, bool) {
	c, ok := r.claims[episodeID]
	return c, ok
}

// CheckClaimable returns ErrClaimConflict while an active, unexpired claim
// exists. Expiry compares expiry_seq against the current log seq, never
// wall-clock.
func (r *Registry) CheckClaimable(episodeID string, currentSeq uint64) error {
	c, ok := r.claims[episodeID]
	if !ok {
		return nil
	}
	if c.StatusAt(currentSeq) == domain.ClaimActive {
		return ErrClaimConflict
	}
	return nil
}

// Proof returns the recorded proof fact for a submission.
func (r *Registry) Proof(submissionID string) (drl.ProofRecorded, bool) {
	p, ok := r.proofs[submissionID]
	return p, ok
}

// Certificate returns the recorded compatibility fact for a submission.
func (r *Registry) Certificate(submissionID string) (drl.CompatCertified, bool) {
	c, ok := r.certs[submissionID]
	return c, ok
}
