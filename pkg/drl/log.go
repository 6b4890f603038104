package drl

import (
	"context"
	"sync"

	"mainlane/pkg/canonhash"
)

// Sink receives every appended event, typically for durable storage. The
// append fails if the sink fails, so memory and storage never diverge.
type Sink interface {
	AppendEvent(ctx context.Context, e Event) error
}

// Log is a single project's fact log. All appends serialize through one
// mutex, which is what makes seq-based tie-breaking well-defined; reads see
// committed entries only.
type Log struct {
	mu        sync.RWMutex
	projectID string
	events    []Event
	sink      Sink
}

func NewLog(projectID string) *Log {
	return &Log{projectID: projectID}
}

// NewLogWithSink builds a log that writes through to durable storage.
func NewLogWithSink(projectID string, sink Sink) *Log {
	return &Log{projectID: projectID, sink: sink}
}

// Restore rebuilds a log from persisted events, verifying the chain first.
func Restore(projectID string, events []Event, sink Sink) (*Log, error) {
	if err := VerifyChain(events); err != nil {
		return nil, err
	}
	l := &Log{projectID: projectID, sink: sink}
	l.events = append(l.events, events...)
	return l, nil
}

func (l *Log) ProjectID() string { return l.projectID }

// Append canonicalizes the payload, chains the event to the previous entry
// and assigns the next monotonic seq. Genesis entries chain to ZeroHash.
func (l *Log) Append(ctx context.Context, typ EventType, payload any) (Event, error) {
	payloadHash, canon, err := canonhash.Sum(payload)
	if err != nil {
		return Event{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.events))
	prev := canonhash.ZeroHash
	if seq > 0 {
		prev = l.events[seq-1].EventHash
	}
	e := Event{
		Seq:         seq,
		Type:        typ,
		ProjectID:   l.projectID,
		PrevHash:    prev,
		PayloadHash: payloadHash,
		EventHash:   ChainHash(prev, payloadHash, seq),
		Payload:     canon,
	}
	if l.sink != nil {
		if err := l.sink.AppendEvent(ctx, e); err != nil {
			return Event{}, err
		}
	}
	l.events = append(l.events, e)
	return e, nil
}

// Read returns events with from <= seq < to. A zero to reads to the end.
func (l *Log) Read(from, to uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := uint64(len(l.events))
	if to == 0 || to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	out := make([]Event, to-from)
	copy(out, l.events[from:to])
	return out
}

// All returns the full committed history.
func (l *Log) All() []Event { return l.Read(0, 0) }

// Len is the number of committed entries, which is also the next seq.
func (l *Log) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events))
}

// Head returns the most recent entry, if any.
func (l *Log) Head() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// VerifyChain recomputes every payload hash and chain link. Mutating any
// historical payload invalidates every event hash after it; this detects
// both the mutation and the break.
func VerifyChain(events []Event) error {
	prev := canonhash.ZeroHash
	for i, e := range events {
		if e.Seq != uint64(i) {
			return &ChainError{Seq: e.Seq, Reason: "non-monotonic seq"}
		}
		if e.PrevHash != prev {
			return &ChainError{Seq: e.Seq, Reason: "prev_hash does not match predecessor"}
		}
		if got := canonhash.SumBytes(e.Payload); got != e.PayloadHash {
			return &HashMismatchError{Seq: e.Seq, Expected: e.PayloadHash, Computed: got}
		}
		if got := ChainHash(e.PrevHash, e.PayloadHash, e.Seq); got != e.EventHash {
			return &HashMismatchError{Seq: e.Seq, Expected: e.EventHash, Computed: got}
		}
		prev = e.EventHash
	}
	return nil
}
