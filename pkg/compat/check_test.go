package compat

import (
	"testing"

	"mainlane/pkg/domain"
)

const headR0 = "sha256:1111111111111111111111111111111111111111111111111111111111111111"

func fixtureInput() Input {
	canon := domain.Canon{ProjectID: "prj_1", Version: 1, RequiredGates: []string{"lint", "test"}}
	contract := domain.Episode{
		EpisodeID: "epi_7",
		CanonHash: "sha256:2222222222222222222222222222222222222222222222222222222222222222",
		Scope: domain.Scope{
			AllowedPrefixes:   []string{"src/parser/"},
			ForbiddenPrefixes: []string{"src/parser/legacy/"},
		},
		RequiredGates: []string{"lint", "test"},
	}
	return Input{
		Submission: domain.Submission{
			SubmissionID: "sub_1",
			EpisodeID:    "epi_7",
			PatchHash:    "sha256:3333333333333333333333333333333333333333333333333333333333333333",
			BaseRef:      headR0,
			TouchedPaths: []string{"src/parser/tokenizer.go"},
		},
		Proof: domain.ProofBundle{
			EpisodeID:    "epi_7",
			SubmissionID: "sub_1",
			Gates: []domain.GateResult{
				{GateID: "lint", Pass: true},
				{GateID: "test", Pass: true},
			},
			EnvFingerprint: "go1.24.0/linux-amd64",
		},
		Canon:       canon,
		Contract:    contract,
		ContractRef: "sha256:4444444444444444444444444444444444444444444444444444444444444444",
		CanonRef:    "sha256:2222222222222222222222222222222222222222222222222222222222222222",
		CurrentHead: headR0,
	}
}

func TestCheckAllGreen(t *testing.T) {
	cert, err := Check(fixtureInput())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !cert.OK() {
		t.Fatalf("expected all-true certificate, got %+v", cert)
	}
	if len(cert.Reasons) != 0 {
		t.Fatalf("unexpected reasons: %v", cert.Reasons)
	}
	if cert.CompatHash == "" || cert.RulesetHash == "" {
		t.Fatalf("certificate must carry compat and ruleset hashes")
	}

	recomputed, err := cert.ComputeHash()
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if recomputed != cert.CompatHash {
		t.Fatalf("compat hash does not replay")
	}
}

func TestCheckForbiddenPath(t *testing.T) {
	in := fixtureInput()
	in.Submission.TouchedPaths = []string{"src/parser/legacy/x.go"}
	cert, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cert.ScopeOK || cert.OK() {
		t.Fatalf("expected scope violation, got %+v", cert)
	}
	if !domain.HasCode(cert.Reasons, domain.ReasonScopeViolation) {
		t.Fatalf("expected SCOPE_VIOLATION reason")
	}
}

func TestCheckPathOutsideAllowed(t *testing.T) {
	in := fixtureInput()
	in.Submission.TouchedPaths = []string{"src/parser/tokenizer.go", "docs/README.md"}
	cert, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cert.ScopeOK {
		t.Fatalf("expected scope violation for path outside allowed prefixes")
	}
}

func TestCheckStaleBase(t *testing.T) {
	in := fixtureInput()
	in.CurrentHead = "sha256:9999999999999999999999999999999999999999999999999999999999999999"
	cert, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cert.BaseOK {
		t.Fatalf("expected stale base")
	}
	if !domain.HasCode(cert.Reasons, domain.ReasonStaleBase) {
		t.Fatalf("expected STALE_BASE reason")
	}
	// Scope is still evaluated and reported alongside.
	if !cert.ScopeOK {
		t.Fatalf("scope check must still run")
	}
}

func TestCheckGateCoverage(t *testing.T) {
	in := fixtureInput()
	in.Proof.Gates = []domain.GateResult{{GateID: "lint", Pass: true}}
	cert, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cert.GatesOK {
		t.Fatalf("expected gate coverage failure")
	}
	if !domain.HasCode(cert.Reasons, domain.ReasonGateFailure) {
		t.Fatalf("expected GATE_FAILURE reason")
	}
}

func TestConflictSymmetry(t *testing.T) {
	scopeA := domain.Scope{AllowedPrefixes: []string{"src/parser/"}}
	scopeB := domain.Scope{AllowedPrefixes: []string{"src/parser/ast/"}}
	scopeC := domain.Scope{AllowedPrefixes: []string{"src/render/"}}

	if !scopeA.Overlaps(scopeB) || !scopeB.Overlaps(scopeA) {
		t.Fatalf("overlap must be symmetric")
	}
	if scopeA.Overlaps(scopeC) || scopeC.Overlaps(scopeA) {
		t.Fatalf("disjoint prefixes must not overlap")
	}

	in := fixtureInput()
	in.CompetingScopes = map[string]domain.Scope{"sub_2": scopeB}
	cert, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !cert.ConflictDetected {
		t.Fatalf("expected conflict with overlapping in-flight submission")
	}
	if !domain.HasCode(cert.Reasons, domain.ReasonConflictDetected) {
		t.Fatalf("expected CONFLICT_DETECTED reason")
	}
}

func TestOwnSubmissionNeverConflictsWithItself(t *testing.T) {
	in := fixtureInput()
	in.CompetingScopes = map[string]domain.Scope{"sub_1": in.Contract.Scope}
	cert, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cert.ConflictDetected {
		t.Fatalf("a submission must not conflict with itself")
	}
}

func TestCertificateDeterministicAcrossCalls(t *testing.T) {
	in := fixtureInput()
	in.CompetingScopes = map[string]domain.Scope{
		"sub_9": {AllowedPrefixes: []string{"src/parser/"}},
		"sub_2": {AllowedPrefixes: []string{"src/parser/ast/"}},
	}
	a, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	b, err := Check(in)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if a.CompatHash != b.CompatHash {
		t.Fatalf("same input must yield the same certificate hash")
	}
}
