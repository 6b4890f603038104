package drl

import (
	"context"
	"testing"

	"mainlane/pkg/canonhash"
)

func TestMerkleRootEmpty(t *testing.T) {
	if MerkleRoot(nil) != canonhash.ZeroHash {
		t.Fatalf("empty commitment must be zero hash")
	}
}

func TestMerkleRootSingleLeafIsLeaf(t *testing.T) {
	h := canonhash.SumConcat("leaf")
	if MerkleRoot([]string{h}) != h {
		t.Fatalf("single leaf root must equal the leaf")
	}
}

func TestMerkleRootShape(t *testing.T) {
	a, b, c := canonhash.SumConcat("a"), canonhash.SumConcat("b"), canonhash.SumConcat("c")

	// Three leaves: c is promoted unpaired, paired with hash(a,b) at the top.
	want := canonhash.SumConcat(canonhash.SumConcat(a, b), c)
	if got := MerkleRoot([]string{a, b, c}); got != want {
		t.Fatalf("unexpected root: %s", got)
	}

	if MerkleRoot([]string{a, b, c}) == MerkleRoot([]string{a, c, b}) {
		t.Fatalf("root must be order sensitive")
	}
}

func TestCommitterCommitsAtInterval(t *testing.T) {
	ctx := context.Background()
	log := NewLog("prj_1")
	committer := NewCommitter(3)

	for i := 0; i < 2; i++ {
		if _, err := log.Append(ctx, EventEpisodePublished, map[string]any{"n": i}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if _, committed, err := committer.MaybeCommit(ctx, log); err != nil || committed {
			t.Fatalf("no commit expected yet (committed=%v err=%v)", committed, err)
		}
	}
	if _, err := log.Append(ctx, EventEpisodePublished, map[string]any{"n": 2}); err != nil {
		t.Fatalf("append: %v", err)
	}

	e, committed, err := committer.MaybeCommit(ctx, log)
	if err != nil || !committed {
		t.Fatalf("expected commit (err=%v)", err)
	}
	var rc RootCommitted
	if err := e.Decode(&rc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rc.FromSeq != 0 || rc.ToSeq != 3 {
		t.Fatalf("unexpected committed range: %+v", rc)
	}

	batch := log.Read(rc.FromSeq, rc.ToSeq)
	leaves := make([]string, len(batch))
	for i, ev := range batch {
		leaves[i] = ev.EventHash
	}
	if rc.MerkleRoot != MerkleRoot(leaves) {
		t.Fatalf("committed root does not replay")
	}

	// The commitment event itself is outside the committed range and starts
	// the next batch.
	if _, committed, _ := committer.MaybeCommit(ctx, log); committed {
		t.Fatalf("no immediate re-commit expected")
	}
}
