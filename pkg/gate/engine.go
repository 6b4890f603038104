// Package gate is the sole component permitted to advance a project's
// committed root. It consumes canon, contract, proof and compatibility
// facts and either appends a MainAdvanced event or rejects with reasons.
//
// Each project owns one logical sequencer: every append, and therefore
// every head mutation, serializes through the project's writer lock.
// Different projects share no mutable state and run fully in parallel.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mainlane/pkg/canonhash"
	"mainlane/pkg/compat"
	"mainlane/pkg/domain"
	"mainlane/pkg/drl"
	"mainlane/pkg/host"
	"mainlane/pkg/proof"
	"mainlane/pkg/registry"
)

// Status is a queue ticket's lifecycle. Advanced and Rejected are terminal
// for a submission; a rejected claimant retries with a new submission id.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusEvaluating Status = "Evaluating"
	StatusAdvanced   Status = "Advanced"
	StatusRejected   Status = "Rejected"
)

// Ticket tracks one enqueue_merge request.
type Ticket struct {
	QueueID      string          `json:"queue_id"`
	ProjectID    string          `json:"project_id"`
	EpisodeID    string          `json:"episode_id"`
	SubmissionID string          `json:"submission_id"`
	Status       Status          `json:"status"`
	Reasons      []domain.Reason `json:"reasons,omitempty"`
	NextRoot     string          `json:"next_root,omitempty"`
	MergeRef     string          `json:"merge_ref,omitempty"`
}

// EpisodeSummary is the browse view of a published episode.
type EpisodeSummary struct {
	EpisodeID    string                `json:"episode_id"`
	ContractHash string                `json:"contract_hash"`
	Title        string                `json:"title,omitempty"`
	Scope        domain.Scope          `json:"scope"`
	Status       domain.ContractStatus `json:"status"`
	Claimed      bool                  `json:"claimed"`
}

var (
	ErrUnknownProject    = errors.New("unknown project")
	ErrUnknownSubmission = errors.New("unknown submission")
	ErrUnknownQueueID    = errors.New("unknown queue id")
	ErrUnknownEpisode    = errors.New("unknown episode")
)

type submissionRecord struct {
	sub       domain.Submission
	patchRef  string
	bundle    domain.ProofBundle
	proofHash string
}

type project struct {
	mu        sync.Mutex
	id        string
	log       *drl.Log
	reg       *registry.Registry
	committer *drl.Committer

	submissions map[string]*submissionRecord
	tickets     map[string]*Ticket
	byContract  map[string]string // contract_hash -> queue_id of its advancement
}

// Engine hosts the per-project sequencers and state machines.
type Engine struct {
	mu             sync.RWMutex
	projects       map[string]*project
	commitInterval uint64
}

func NewEngine(commitInterval uint64) *Engine {
	return &Engine{
		projects:       make(map[string]*project),
		commitInterval: commitInterval,
	}
}

// CreateProject registers a fresh project with an empty log. The sink, if
// any, receives every appended event for durable storage.
func (e *Engine) CreateProject(projectID string, sink drl.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.projects[projectID]; ok {
		return fmt.Errorf("project %s already exists", projectID)
	}
	e.projects[projectID] = newProject(projectID, drl.NewLogWithSink(projectID, sink), registry.New(), e.commitInterval)
	return nil
}

// RestoreProject rebuilds a project from its persisted history. The chain
// is verified and the registry folded from scratch; replaying an identical
// event sequence always yields identical registries and roots. Evaluation
// state (tickets, staged submissions) is not persisted: the ledger holds
// the facts, everything else is re-derivable or re-requestable.
func (e *Engine) RestoreProject(projectID string, events []drl.Event, sink drl.Sink) error {
	log, err := drl.Restore(projectID, events, sink)
	if err != nil {
		return err
	}
	reg, err := registry.Rebuild(events)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.projects[projectID]; ok {
		return fmt.Errorf("project %s already exists", projectID)
	}
	p := newProject(projectID, log, reg, e.commitInterval)
	p.committer = drl.RestoreCommitter(e.commitInterval, events)
	e.projects[projectID] = p
	return nil
}

func newProject(id string, log *drl.Log, reg *registry.Registry, commitInterval uint64) *project {
	return &project{
		id:          id,
		log:         log,
		reg:         reg,
		committer:   drl.NewCommitter(commitInterval),
		submissions: make(map[string]*submissionRecord),
		tickets:     make(map[string]*Ticket),
		byContract:  make(map[string]string),
	}
}

func (e *Engine) project(projectID string) (*project, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}
	return p, nil
}

// Projects lists registered project ids.
func (e *Engine) Projects() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.projects))
	for id := range e.projects {
		out = append(out, id)
	}
	return out
}

// append writes one event and folds it into the registry. A fold failure
// after a successful append is an internal inconsistency, not a caller
// error.
func (p *project) append(ctx context.Context, typ drl.EventType, payload any) (drl.Event, error) {
	e, err := p.log.Append(ctx, typ, payload)
	if err != nil {
		return drl.Event{}, err
	}
	if err := p.reg.Apply(e); err != nil {
		return drl.Event{}, fmt.Errorf("fold appended event seq %d: %w", e.Seq, err)
	}
	return e, nil
}

func (p *project) maybeCommitRoot(ctx context.Context) error {
	e, committed, err := p.committer.MaybeCommit(ctx, p.log)
	if err != nil {
		return err
	}
	if committed {
		return p.reg.Apply(e)
	}
	return nil
}

// PublishCanon appends a CanonPublished fact and returns the canon_hash.
func (e *Engine) PublishCanon(ctx context.Context, projectID string, canon domain.Canon) (string, error) {
	p, err := e.project(projectID)
	if err != nil {
		return "", err
	}
	hash, err := canon.Hash()
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.append(ctx, drl.EventCanonPublished, drl.CanonPublished{
		ProjectID: projectID,
		CanonHash: hash,
		Version:   canon.Version,
		Canon:     canon,
	}); err != nil {
		return "", err
	}
	if err := p.maybeCommitRoot(ctx); err != nil {
		return "", err
	}
	return hash, nil
}

// PublishEpisode appends an EpisodePublished fact and returns the
// contract_hash. The referenced canon must already be published.
func (e *Engine) PublishEpisode(ctx context.Context, projectID string, episode domain.Episode) (string, error) {
	p, err := e.project(projectID)
	if err != nil {
		return "", err
	}
	contractHash, err := episode.ContractHash()
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.reg.CanonByHash(episode.CanonHash); !ok {
		return "", fmt.Errorf("%w: %s", registry.ErrUnknownCanon, episode.CanonHash)
	}
	if _, err := p.append(ctx, drl.EventEpisodePublished, drl.EpisodePublished{
		EpisodeID:    episode.EpisodeID,
		ContractHash: contractHash,
		CanonHash:    episode.CanonHash,
		Episode:      episode,
	}); err != nil {
		return "", err
	}
	if err := p.maybeCommitRoot(ctx); err != nil {
		return "", err
	}
	return contractHash, nil
}

// BrowseFilter narrows Browse output. Zero value lists everything.
type BrowseFilter struct {
	Status     domain.ContractStatus
	PathPrefix string
	Unclaimed  bool
}

// Browse lists episode summaries matching the filter.
func (e *Engine) Browse(projectID string, filter BrowseFilter) ([]EpisodeSummary, error) {
	p, err := e.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	currentSeq := p.log.Len()
	var out []EpisodeSummary
	for _, id := range p.reg.Episodes() {
		ep, contractHash, ok := p.reg.CurrentContract(id)
		if !ok {
			continue
		}
		status, _ := p.reg.ContractState(contractHash)
		claimed := false
		if c, ok := p.reg.Claim(id); ok && c.StatusAt(currentSeq) == domain.ClaimActive {
			claimed = true
		}
		if filter.Status != "" && status != filter.Status {
			continue
		}
		if filter.Unclaimed && claimed {
			continue
		}
		if filter.PathPrefix != "" && !ep.Scope.Overlaps(domain.Scope{AllowedPrefixes: []string{filter.PathPrefix}}) {
			continue
		}
		out = append(out, EpisodeSummary{
			EpisodeID:    id,
			ContractHash: contractHash,
			Title:        ep.Title,
			Scope:        ep.Scope,
			Status:       status,
			Claimed:      claimed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpisodeID < out[j].EpisodeID })
	return out, nil
}

// GetContract returns the episode's current contract and its hash.
func (e *Engine) GetContract(projectID, episodeID string) (domain.Episode, string, error) {
	p, err := e.project(projectID)
	if err != nil {
		return domain.Episode{}, "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, hash, ok := p.reg.CurrentContract(episodeID)
	if !ok {
		return domain.Episode{}, "", fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
	}
	return ep, hash, nil
}

// Claim leases an episode to a claimant for ttl further log entries.
// Serialization through the project's writer makes ties deterministic:
// whichever claim reaches the log first wins, the loser gets
// ErrClaimConflict.
func (e *Engine) Claim(ctx context.Context, projectID, episodeID, claimantID string, ttl uint64) (domain.Claim, error) {
	p, err := e.project(projectID)
	if err != nil {
		return domain.Claim{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, _, ok := p.reg.CurrentContract(episodeID); !ok {
		return domain.Claim{}, fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
	}
	currentSeq := p.log.Len()
	if err := p.reg.CheckClaimable(episodeID, currentSeq); err != nil {
		return domain.Claim{}, err
	}
	claimID := "clm_" + uuid.NewString()
	if _, err := p.append(ctx, drl.EventClaimAcquired, drl.ClaimAcquired{
		EpisodeID:  episodeID,
		ClaimID:    claimID,
		ClaimantID: claimantID,
		ExpirySeq:  currentSeq + ttl,
	}); err != nil {
		return domain.Claim{}, err
	}
	if err := p.maybeCommitRoot(ctx); err != nil {
		return domain.Claim{}, err
	}
	claim, _ := p.reg.Claim(episodeID)
	return claim, nil
}

// Release ends a claim early. Releasing a claim that is no longer current
// is a no-op.
func (e *Engine) Release(ctx context.Context, projectID, episodeID, claimID, reason string) error {
	p, err := e.project(projectID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.reg.Claim(episodeID)
	if !ok || c.ClaimID != claimID {
		return nil
	}
	if _, err := p.append(ctx, drl.EventClaimReleased, drl.ClaimReleased{
		EpisodeID: episodeID,
		ClaimID:   claimID,
		Reason:    reason,
	}); err != nil {
		return err
	}
	return p.maybeCommitRoot(ctx)
}

// RecordProof verifies a bundle against the required-gate union and, when
// accepted, appends a ProofRecorded fact and stages the submission for
// compatibility checks. The outcome carries every applicable reason.
func (e *Engine) RecordProof(ctx context.Context, projectID string, sub domain.Submission, patchRef string, bundle domain.ProofBundle) (proof.Outcome, error) {
	p, err := e.project(projectID)
	if err != nil {
		return proof.Outcome{}, err
	}
	if err := sub.Validate(); err != nil {
		return proof.Outcome{Reasons: []domain.Reason{
			domain.NewReason(domain.ReasonSchemaError, err.Error()),
		}}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	contract, _, ok := p.reg.CurrentContract(sub.EpisodeID)
	if !ok {
		return proof.Outcome{Reasons: []domain.Reason{
			domain.NewReason(domain.ReasonUnknownContract, "no contract published for episode "+sub.EpisodeID),
		}}, nil
	}
	canon, ok := p.reg.CanonByHash(contract.CanonHash)
	if !ok {
		return proof.Outcome{Reasons: []domain.Reason{
			domain.NewReason(domain.ReasonUnknownCanon, "contract references unpublished canon "+contract.CanonHash),
		}}, nil
	}
	if !p.reg.WasRoot(sub.BaseRef) {
		return proof.Outcome{Reasons: []domain.Reason{
			domain.NewReason(domain.ReasonStaleBase, "base_ref was never a committed root"),
		}}, nil
	}

	out := proof.Verify(bundle, proof.RequiredGates(canon, contract))
	if !out.Accepted {
		return out, nil
	}

	bundle.ProofHash = out.ProofHash
	if _, err := p.append(ctx, drl.EventProofRecorded, drl.ProofRecorded{
		EpisodeID:      sub.EpisodeID,
		SubmissionID:   sub.SubmissionID,
		ProofHash:      out.ProofHash,
		PatchHash:      sub.PatchHash,
		BaseRef:        sub.BaseRef,
		EnvFingerprint: bundle.EnvFingerprint,
	}); err != nil {
		return proof.Outcome{}, err
	}
	if err := p.maybeCommitRoot(ctx); err != nil {
		return proof.Outcome{}, err
	}
	p.submissions[sub.SubmissionID] = &submissionRecord{
		sub:       sub,
		patchRef:  patchRef,
		bundle:    bundle,
		proofHash: out.ProofHash,
	}
	return out, nil
}

// CheckCompat issues a compatibility certificate for a staged submission
// against the current head and appends the CompatCertified fact.
func (e *Engine) CheckCompat(ctx context.Context, projectID, submissionID string) (domain.CompatibilityCertificate, error) {
	p, err := e.project(projectID)
	if err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cert, err := p.certify(ctx, submissionID)
	if err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	if err := p.maybeCommitRoot(ctx); err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	return cert, nil
}

// certify runs the compatibility check and records the certificate fact.
// Caller holds p.mu.
func (p *project) certify(ctx context.Context, submissionID string) (domain.CompatibilityCertificate, error) {
	rec, ok := p.submissions[submissionID]
	if !ok {
		return domain.CompatibilityCertificate{}, fmt.Errorf("%w: %s", ErrUnknownSubmission, submissionID)
	}
	contract, contractHash, ok := p.reg.CurrentContract(rec.sub.EpisodeID)
	if !ok {
		return domain.CompatibilityCertificate{}, fmt.Errorf("%w: episode %s", registry.ErrUnknownContract, rec.sub.EpisodeID)
	}
	canon, ok := p.reg.CanonByHash(contract.CanonHash)
	if !ok {
		return domain.CompatibilityCertificate{}, fmt.Errorf("%w: %s", registry.ErrUnknownCanon, contract.CanonHash)
	}

	// Submissions that advanced the head since this submission's base are
	// its competitors: an overlapping scope among them means the two
	// changes were built against divergent histories.
	competing := make(map[string]domain.Scope)
	for _, adv := range p.reg.AdvancedSince(rec.sub.BaseRef) {
		if c, ok := p.reg.Contract(adv.ContractHash); ok {
			competing[adv.SubmissionID] = c.Scope
		}
	}

	cert, err := compat.Check(compat.Input{
		Submission:      rec.sub,
		Proof:           rec.bundle,
		Canon:           canon,
		Contract:        contract,
		ContractRef:     contractHash,
		CanonRef:        contract.CanonHash,
		CurrentHead:     p.reg.Head(),
		CompetingScopes: competing,
	})
	if err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	if _, err := p.append(ctx, drl.EventCompatCertified, drl.CompatCertified{
		EpisodeID:    cert.EpisodeID,
		SubmissionID: cert.SubmissionID,
		CompatHash:   cert.CompatHash,
		RulesetHash:  cert.RulesetHash,
		BaseRef:      cert.BaseRef,
	}); err != nil {
		return domain.CompatibilityCertificate{}, err
	}
	return cert, nil
}

// EnqueueMerge evaluates a staged submission for advancement and returns a
// queue id. Evaluation is synchronous; the ticket records the terminal
// state. A contract advances at most once: the advancing submission may
// re-enqueue as a no-op success, every other submission is rejected.
func (e *Engine) EnqueueMerge(ctx context.Context, projectID, episodeID, submissionID string, resolver host.MergeResolver) (string, error) {
	p, err := e.project(projectID)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.submissions[submissionID]
	if !ok || rec.sub.EpisodeID != episodeID {
		return "", fmt.Errorf("%w: %s", ErrUnknownSubmission, submissionID)
	}

	contract, contractHash, ok := p.reg.CurrentContract(episodeID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
	}

	// An advanced contract is terminal. Re-enqueueing the submission that
	// advanced it returns the original ticket, never a duplicate root; any
	// other submission is rejected on the record without evaluation.
	if state, _ := p.reg.ContractState(contractHash); state == domain.ContractAdvanced {
		by, _ := p.reg.AdvancedBy(contractHash)
		if by == submissionID {
			if qid, ok := p.byContract[contractHash]; ok {
				return qid, nil
			}
			// Ticket state predates a restart; re-mint it from the registry.
			t := &Ticket{
				QueueID:      "q_" + uuid.NewString(),
				ProjectID:    projectID,
				EpisodeID:    episodeID,
				SubmissionID: submissionID,
				Status:       StatusAdvanced,
				NextRoot:     p.reg.Head(),
			}
			p.tickets[t.QueueID] = t
			p.byContract[contractHash] = t.QueueID
			return t.QueueID, nil
		}
		reasons := []domain.Reason{{
			Code:    domain.ReasonConflictDetected,
			Message: "contract already advanced by another submission",
			Details: map[string]any{"advanced_by": by},
		}}
		t := &Ticket{
			QueueID:      "q_" + uuid.NewString(),
			ProjectID:    projectID,
			EpisodeID:    episodeID,
			SubmissionID: submissionID,
			Status:       StatusRejected,
			Reasons:      reasons,
		}
		p.tickets[t.QueueID] = t
		if _, err := p.append(ctx, drl.EventSubmissionRejected, drl.SubmissionRejected{
			EpisodeID:    episodeID,
			SubmissionID: submissionID,
			Reasons:      reasons,
		}); err != nil {
			return "", err
		}
		if err := p.maybeCommitRoot(ctx); err != nil {
			return "", err
		}
		return t.QueueID, nil
	}

	t := &Ticket{
		QueueID:      "q_" + uuid.NewString(),
		ProjectID:    projectID,
		EpisodeID:    episodeID,
		SubmissionID: submissionID,
		Status:       StatusPending,
	}
	p.tickets[t.QueueID] = t

	p.evaluate(ctx, t, rec, contract, contractHash, resolver)
	if err := p.maybeCommitRoot(ctx); err != nil {
		return "", err
	}
	return t.QueueID, nil
}

// evaluate drives Pending -> Evaluating -> terminal under p.mu. Holding the
// writer lock for the whole transition is the commit-time base_ok guard:
// no other submission can move the head between the check and the append.
func (p *project) evaluate(ctx context.Context, t *Ticket, rec *submissionRecord, contract domain.Episode, contractHash string, resolver host.MergeResolver) {
	t.Status = StatusEvaluating

	reject := func(reasons ...domain.Reason) {
		t.Status = StatusRejected
		t.Reasons = reasons
		_, err := p.append(ctx, drl.EventSubmissionRejected, drl.SubmissionRejected{
			EpisodeID:    rec.sub.EpisodeID,
			SubmissionID: rec.sub.SubmissionID,
			Reasons:      reasons,
		})
		if err != nil {
			t.Reasons = append(t.Reasons, domain.NewReason(domain.ReasonSchemaError, "record rejection: "+err.Error()))
		}
	}

	canon, ok := p.reg.CanonByHash(contract.CanonHash)
	if !ok {
		reject(domain.NewReason(domain.ReasonUnknownCanon, "contract references unpublished canon "+contract.CanonHash))
		return
	}

	out := proof.Verify(rec.bundle, proof.RequiredGates(canon, contract))
	if !out.Accepted {
		reject(out.Reasons...)
		return
	}

	cert, err := p.certify(ctx, rec.sub.SubmissionID)
	if err != nil {
		reject(domain.NewReason(domain.ReasonSchemaError, err.Error()))
		return
	}
	if !cert.OK() {
		reject(cert.Reasons...)
		return
	}

	mergeRef, err := resolver.ResolveMerge(ctx, rec.patchRef)
	if err != nil {
		reject(domain.NewReason(domain.ReasonSchemaError, "resolve merge: "+err.Error()))
		return
	}

	prevRoot := p.reg.Head()
	nextRoot := NextRoot(prevRoot, contractHash, rec.proofHash, cert.CompatHash, mergeRef)
	if _, err := p.append(ctx, drl.EventMainAdvanced, drl.MainAdvanced{
		ProjectID:  p.id,
		PrevRoot:   prevRoot,
		NextRoot:   nextRoot,
		MergeRef:   mergeRef,
		EpisodeID:  rec.sub.EpisodeID,
		ProofHash:  rec.proofHash,
		CompatHash: cert.CompatHash,
	}); err != nil {
		reject(domain.NewReason(domain.ReasonSchemaError, "record advancement: "+err.Error()))
		return
	}

	if c, ok := p.reg.Claim(rec.sub.EpisodeID); ok && c.StatusAt(p.log.Len()) == domain.ClaimActive {
		_, _ = p.append(ctx, drl.EventClaimReleased, drl.ClaimReleased{
			EpisodeID: rec.sub.EpisodeID,
			ClaimID:   c.ClaimID,
			Reason:    "advanced",
		})
	}

	t.Status = StatusAdvanced
	t.NextRoot = nextRoot
	t.MergeRef = mergeRef
	p.byContract[contractHash] = t.QueueID
}

// NextRoot derives the advanced root from its evidence chain.
func NextRoot(prevRoot, contractHash, proofHash, compatHash, mergeRef string) string {
	return canonhash.SumConcat(prevRoot, contractHash, proofHash, compatHash, mergeRef)
}

// RequiredGates returns the gate union a submission for the episode must
// cover: canon-required plus contract-required, sorted.
func (e *Engine) RequiredGates(projectID, episodeID string) ([]string, error) {
	p, err := e.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	contract, _, ok := p.reg.CurrentContract(episodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
	}
	canon, ok := p.reg.CanonByHash(contract.CanonHash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownCanon, contract.CanonHash)
	}
	return proof.RequiredGates(canon, contract), nil
}

// Status returns a queue ticket.
func (e *Engine) Status(projectID, queueID string) (Ticket, error) {
	p, err := e.project(projectID)
	if err != nil {
		return Ticket{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tickets[queueID]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrUnknownQueueID, queueID)
	}
	return *t, nil
}

// Head returns the project's current committed root.
func (e *Engine) Head(projectID string) (string, error) {
	p, err := e.project(projectID)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg.Head(), nil
}

// Events reads a range of the project's fact log.
func (e *Engine) Events(projectID string, from, to uint64) ([]drl.Event, error) {
	p, err := e.project(projectID)
	if err != nil {
		return nil, err
	}
	return p.log.Read(from, to), nil
}

// VerifyProject re-verifies the full chain.
func (e *Engine) VerifyProject(projectID string) error {
	p, err := e.project(projectID)
	if err != nil {
		return err
	}
	return drl.VerifyChain(p.log.All())
}
