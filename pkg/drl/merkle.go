package drl

import (
	"context"

	"mainlane/pkg/canonhash"
)

// MerkleRoot commits to an ordered list of event hashes with a binary tree.
// An odd node is promoted to the next level unpaired. Empty input commits to
// the zero hash.
func MerkleRoot(hashes []string) string {
	if len(hashes) == 0 {
		return canonhash.ZeroHash
	}
	level := make([]string, len(hashes))
	copy(level, hashes)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, canonhash.SumConcat(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0]
}

// Committer appends a RootCommitted event once at least Interval entries
// have accumulated since the last commitment. The committed range excludes
// the commitment event itself.
type Committer struct {
	Interval  uint64
	committed uint64
}

func NewCommitter(interval uint64) *Committer {
	if interval == 0 {
		interval = 64
	}
	return &Committer{Interval: interval}
}

// RestoreCommitter rebuilds the commit offset from persisted history so a
// restored project does not re-commit ranges it already committed.
func RestoreCommitter(interval uint64, events []Event) *Committer {
	c := NewCommitter(interval)
	for _, e := range events {
		if e.Type != EventRootCommitted {
			continue
		}
		var p RootCommitted
		if err := e.Decode(&p); err != nil {
			continue
		}
		c.committed = p.ToSeq
	}
	return c
}

// MaybeCommit checks the log length and commits a root when due. Callers
// must hold the project's writer serialization.
func (c *Committer) MaybeCommit(ctx context.Context, log *Log) (Event, bool, error) {
	n := log.Len()
	if n-c.committed < c.Interval {
		return Event{}, false, nil
	}
	batch := log.Read(c.committed, n)
	leaves := make([]string, len(batch))
	for i, e := range batch {
		leaves[i] = e.EventHash
	}
	e, err := log.Append(ctx, EventRootCommitted, RootCommitted{
		FromSeq:    c.committed,
		ToSeq:      n,
		MerkleRoot: MerkleRoot(leaves),
	})
	if err != nil {
		return Event{}, false, err
	}
	c.committed = n
	return e, true, nil
}
