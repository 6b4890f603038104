package proof

import (
	"reflect"
	"testing"

	"mainlane/pkg/domain"
)

func passingBundle() domain.ProofBundle {
	return domain.ProofBundle{
		EpisodeID:    "epi_7",
		SubmissionID: "sub_1",
		Gates: []domain.GateResult{
			{GateID: "lint", Pass: true, LogHash: "sha256:aa"},
			{GateID: "test", Pass: true, LogHash: "sha256:bb"},
		},
		EnvFingerprint: "go1.24.0/linux-amd64",
	}
}

func TestVerifyAcceptsPassingBundle(t *testing.T) {
	out := Verify(passingBundle(), []string{"lint", "test"})
	if !out.Accepted {
		t.Fatalf("expected accepted, got reasons %v", out.Reasons)
	}
	if out.ProofHash == "" {
		t.Fatalf("expected computed proof hash")
	}
}

func TestVerifyHashMismatchIsFatal(t *testing.T) {
	b := passingBundle()
	b.ProofHash = "sha256:0000000000000000000000000000000000000000000000000000000000000001"
	out := Verify(b, []string{"lint"})
	if out.Accepted {
		t.Fatalf("expected rejection")
	}
	if !out.Fatal() {
		t.Fatalf("hash mismatch must be fatal")
	}
	if !domain.HasCode(out.Reasons, domain.ReasonHashMismatch) {
		t.Fatalf("expected HASH_MISMATCH reason, got %v", out.Reasons)
	}
}

func TestVerifySelfHashRoundTrip(t *testing.T) {
	b := passingBundle()
	h, err := b.ComputeHash()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	b.ProofHash = h
	out := Verify(b, []string{"lint", "test"})
	if !out.Accepted {
		t.Fatalf("bundle carrying its own correct hash must verify: %v", out.Reasons)
	}
	if out.ProofHash != h {
		t.Fatalf("verifier recomputed a different hash")
	}
}

func TestVerifyAccumulatesGateFailures(t *testing.T) {
	b := passingBundle()
	b.Gates = []domain.GateResult{
		{GateID: "lint", Pass: false},
	}
	out := Verify(b, []string{"bench", "lint", "test"})
	if out.Accepted {
		t.Fatalf("expected rejection")
	}
	if out.Fatal() {
		t.Fatalf("gate failure is not fatal")
	}
	if len(out.Reasons) != 1 || out.Reasons[0].Code != domain.ReasonGateFailure {
		t.Fatalf("expected one GATE_FAILURE reason, got %v", out.Reasons)
	}
	details := out.Reasons[0].Details
	if !reflect.DeepEqual(details["failed"], []string{"lint"}) {
		t.Fatalf("expected lint in failed set: %v", details)
	}
	if !reflect.DeepEqual(details["missing"], []string{"bench", "test"}) {
		t.Fatalf("expected bench and test in missing set: %v", details)
	}
}

func TestVerifyExtraPassedGatesAreFine(t *testing.T) {
	b := passingBundle()
	b.Gates = append(b.Gates, domain.GateResult{GateID: "fuzz", Pass: true})
	out := Verify(b, []string{"lint", "test"})
	if !out.Accepted {
		t.Fatalf("superset of required gates must pass: %v", out.Reasons)
	}
}

func TestVerifyRejectsBadFingerprint(t *testing.T) {
	for _, fp := range []string{"", "   ", "go 1.24 linux"} {
		b := passingBundle()
		b.EnvFingerprint = fp
		out := Verify(b, []string{"lint", "test"})
		if out.Accepted {
			t.Fatalf("expected rejection for fingerprint %q", fp)
		}
		if !domain.HasCode(out.Reasons, domain.ReasonSchemaError) {
			t.Fatalf("expected SCHEMA_ERROR, got %v", out.Reasons)
		}
	}
}

func TestVerifyRejectsMalformedBundle(t *testing.T) {
	b := passingBundle()
	b.Gates = nil
	out := Verify(b, nil)
	if out.Accepted || !domain.HasCode(out.Reasons, domain.ReasonSchemaError) {
		t.Fatalf("expected schema rejection, got %+v", out)
	}
}

func TestRequiredGatesUnion(t *testing.T) {
	canon := domain.Canon{ProjectID: "prj_1", Version: 1, RequiredGates: []string{"lint", "test"}}
	contract := domain.Episode{RequiredGates: []string{"test", "bench"}}
	got := RequiredGates(canon, contract)
	want := []string{"bench", "lint", "test"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("union mismatch: got %v want %v", got, want)
	}
}
