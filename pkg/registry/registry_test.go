package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"mainlane/pkg/domain"
	"mainlane/pkg/drl"
)

func publishFixtures(t *testing.T, log *drl.Log, reg *Registry) (domain.Canon, domain.Episode) {
	t.Helper()
	ctx := context.Background()

	canon := domain.Canon{ProjectID: "prj_1", Version: 1, RequiredGates: []string{"lint", "test"}}
	canonHash, err := canon.Hash()
	if err != nil {
		t.Fatalf("canon hash: %v", err)
	}
	e, err := log.Append(ctx, drl.EventCanonPublished, drl.CanonPublished{
		ProjectID: "prj_1", CanonHash: canonHash, Version: 1, Canon: canon,
	})
	if err != nil {
		t.Fatalf("append canon: %v", err)
	}
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply canon: %v", err)
	}

	episode := domain.Episode{
		EpisodeID:     "epi_7",
		CanonHash:     canonHash,
		Scope:         domain.Scope{AllowedPrefixes: []string{"src/parser/"}, ForbiddenPrefixes: []string{"src/parser/legacy/"}},
		RequiredGates: []string{"lint", "test"},
	}
	contractHash, err := episode.ContractHash()
	if err != nil {
		t.Fatalf("contract hash: %v", err)
	}
	e, err = log.Append(ctx, drl.EventEpisodePublished, drl.EpisodePublished{
		EpisodeID: episode.EpisodeID, ContractHash: contractHash, CanonHash: canonHash, Episode: episode,
	})
	if err != nil {
		t.Fatalf("append episode: %v", err)
	}
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply episode: %v", err)
	}
	return canon, episode
}

func TestRebuildMatchesIncremental(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	incremental := New()
	_, episode := publishFixtures(t, log, incremental)

	e, err := log.Append(ctx, drl.EventClaimAcquired, drl.ClaimAcquired{
		EpisodeID: episode.EpisodeID, ClaimID: "clm_1", ClaimantID: "agent_a", ExpirySeq: 50,
	})
	if err != nil {
		t.Fatalf("append claim: %v", err)
	}
	if err := incremental.Apply(e); err != nil {
		t.Fatalf("apply claim: %v", err)
	}

	rebuilt, err := Rebuild(log.All())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !reflect.DeepEqual(incremental, rebuilt) {
		t.Fatalf("rebuilt registry differs from incrementally maintained one")
	}
}

func TestEpisodeRequiresKnownCanon(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	reg := New()

	episode := domain.Episode{
		EpisodeID: "epi_1",
		CanonHash: "sha256:1111111111111111111111111111111111111111111111111111111111111111",
		Scope:     domain.Scope{AllowedPrefixes: []string{"src/"}},
	}
	contractHash, err := episode.ContractHash()
	if err != nil {
		t.Fatalf("contract hash: %v", err)
	}
	e, err := log.Append(ctx, drl.EventEpisodePublished, drl.EpisodePublished{
		EpisodeID: episode.EpisodeID, ContractHash: contractHash, CanonHash: episode.CanonHash, Episode: episode,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := reg.Apply(e); !errors.Is(err, ErrUnknownCanon) {
		t.Fatalf("expected unknown canon, got %v", err)
	}
}

func TestClaimConflictAndSeqExpiry(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	reg := New()
	_, episode := publishFixtures(t, log, reg)

	e, err := log.Append(ctx, drl.EventClaimAcquired, drl.ClaimAcquired{
		EpisodeID: episode.EpisodeID, ClaimID: "clm_1", ClaimantID: "agent_a", ExpirySeq: 10,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := reg.CheckClaimable(episode.EpisodeID, 5); !errors.Is(err, ErrClaimConflict) {
		t.Fatalf("expected claim conflict before expiry, got %v", err)
	}
	// At expiry_seq the lease has lapsed; comparison is against log seq only.
	if err := reg.CheckClaimable(episode.EpisodeID, 10); err != nil {
		t.Fatalf("expected claimable at expiry seq, got %v", err)
	}

	claim, ok := reg.Claim(episode.EpisodeID)
	if !ok {
		t.Fatalf("expected claim record")
	}
	if claim.StatusAt(5) != domain.ClaimActive || claim.StatusAt(10) != domain.ClaimExpired {
		t.Fatalf("unexpected derived statuses")
	}
}

func TestClaimReleaseFreesEpisode(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	reg := New()
	_, episode := publishFixtures(t, log, reg)

	e, _ := log.Append(ctx, drl.EventClaimAcquired, drl.ClaimAcquired{
		EpisodeID: episode.EpisodeID, ClaimID: "clm_1", ClaimantID: "agent_a", ExpirySeq: 100,
	})
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply: %v", err)
	}
	e, _ = log.Append(ctx, drl.EventClaimReleased, drl.ClaimReleased{
		EpisodeID: episode.EpisodeID, ClaimID: "clm_1", Reason: "released by claimant",
	})
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := reg.CheckClaimable(episode.EpisodeID, log.Len()); err != nil {
		t.Fatalf("expected claimable after release, got %v", err)
	}
}

func TestSupersedingContractMarksOldOne(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	reg := New()
	canon, episode := publishFixtures(t, log, reg)

	canonHash, _ := canon.Hash()
	revised := episode
	revised.RequiredGates = []string{"lint", "test", "bench"}
	revisedHash, err := revised.ContractHash()
	if err != nil {
		t.Fatalf("contract hash: %v", err)
	}
	e, err := log.Append(ctx, drl.EventEpisodePublished, drl.EpisodePublished{
		EpisodeID: revised.EpisodeID, ContractHash: revisedHash, CanonHash: canonHash, Episode: revised,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply: %v", err)
	}

	originalHash, _ := episode.ContractHash()
	if s, _ := reg.ContractState(originalHash); s != domain.ContractSuperseded {
		t.Fatalf("expected original contract superseded, got %s", s)
	}
	if _, current, _ := reg.CurrentContract(episode.EpisodeID); current != revisedHash {
		t.Fatalf("expected revised contract to be current")
	}
}

func TestMainAdvancedTracksAdvancingSubmission(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	reg := New()
	_, episode := publishFixtures(t, log, reg)
	contractHash, _ := episode.ContractHash()

	e, _ := log.Append(ctx, drl.EventProofRecorded, drl.ProofRecorded{
		EpisodeID: episode.EpisodeID, SubmissionID: "sub_1",
		ProofHash: "sha256:2222222222222222222222222222222222222222222222222222222222222222",
		PatchHash: "sha256:3333333333333333333333333333333333333333333333333333333333333333",
		BaseRef:   reg.Head(), EnvFingerprint: "go1.24.0-linux-amd64",
	})
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply proof: %v", err)
	}

	prev := reg.Head()
	next := "sha256:4444444444444444444444444444444444444444444444444444444444444444"
	e, _ = log.Append(ctx, drl.EventMainAdvanced, drl.MainAdvanced{
		ProjectID: "prj_1", PrevRoot: prev, NextRoot: next, MergeRef: "abc123",
		EpisodeID: episode.EpisodeID,
		ProofHash: "sha256:2222222222222222222222222222222222222222222222222222222222222222",
	})
	if err := reg.Apply(e); err != nil {
		t.Fatalf("apply advance: %v", err)
	}

	if reg.Head() != next {
		t.Fatalf("head = %s", reg.Head())
	}
	if !reg.WasRoot(prev) || !reg.WasRoot(next) {
		t.Fatalf("historical roots lost")
	}
	if by, ok := reg.AdvancedBy(contractHash); !ok || by != "sub_1" {
		t.Fatalf("advanced by = %q, %v", by, ok)
	}
	if s, _ := reg.ContractState(contractHash); s != domain.ContractAdvanced {
		t.Fatalf("contract state = %s", s)
	}

	since := reg.AdvancedSince(prev)
	if len(since) != 1 {
		t.Fatalf("AdvancedSince(prev) = %d entries", len(since))
	}
	if since[0].SubmissionID != "sub_1" || since[0].ContractHash != contractHash || since[0].NextRoot != next {
		t.Fatalf("advancement record: %+v", since[0])
	}
	if got := reg.AdvancedSince(next); len(got) != 0 {
		t.Fatalf("AdvancedSince(head) = %d entries, want none", len(got))
	}
	if got := reg.AdvancedSince("sha256:ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"); got != nil {
		t.Fatalf("AdvancedSince(unknown ref) = %+v, want nil", got)
	}
}

func TestCertificateRequiresRecordedProof(t *testing.T) {
	ctx := context.Background()
	log := drl.NewLog("prj_1")
	reg := New()
	publishFixtures(t, log, reg)

	e, err := log.Append(ctx, drl.EventCompatCertified, drl.CompatCertified{
		EpisodeID: "epi_7", SubmissionID: "sub_ghost", CompatHash: "sha256:aa", RulesetHash: "sha256:bb", BaseRef: "r0",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := reg.Apply(e); err == nil {
		t.Fatalf("expected dangling certificate to be rejected")
	}
}
