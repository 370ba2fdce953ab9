package factory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Sequences holds the counters of every sequence generator of a Registry.
type Sequences struct {
	mu       sync.Mutex
	counters map[string]int
	assigned map[string]struct{}
}

// NewSequences returns an empty counter store.
func NewSequences() *Sequences {
	return &Sequences{
		counters: make(map[string]int),
		assigned: make(map[string]struct{}),
	}
}

// Next returns the next value of the sequence id. The first value is 1.
func (s *Sequences) Next(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.counters[id]
	if !ok {
		next = 1
	}
	s.counters[id] = next + 1
	return next
}

// Reset forgets the listed sequences, or every sequence when ids is empty.
func (s *Sequences) Reset(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		s.counters = make(map[string]int)
		return
	}
	for _, id := range ids {
		delete(s.counters, id)
	}
}

// allocate returns the lowest "_N" id that has never been handed out nor used
// explicitly.
func (s *Sequences) allocate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; ; i++ {
		id := "_" + strconv.Itoa(i)
		if _, taken := s.assigned[id]; taken {
			continue
		}
		if _, taken := s.counters[id]; taken {
			continue
		}
		s.assigned[id] = struct{}{}
		return id
	}
}

// SeqOption configures a sequence generator.
type SeqOption func(*Sequence)

// SeqID shares a counter between every sequence created with the same id.
func SeqID(id string) SeqOption {
	return func(s *Sequence) {
		s.id = id
	}
}

// SeqTransform maps each counter value to the generated value.
func SeqTransform(fn func(n int) any) SeqOption {
	return func(s *Sequence) {
		s.transform = fn
	}
}

// SeqFormat renders each counter value with format, e.g. "user%d@example.com".
func SeqFormat(format string) SeqOption {
	return SeqTransform(func(n int) any {
		return fmt.Sprintf(format, n)
	})
}

// Sequence yields consecutive integers, optionally transformed.
type Sequence struct {
	store     *Sequences
	transform func(int) any

	once sync.Once
	id   string
}

// Seq returns a sequence generator bound to the Registry counters. Without
// SeqID the generator gets its own id the first time it produces a value.
func (r *Registry) Seq(opts ...SeqOption) *Sequence {
	s := &Sequence{store: r.state.sequences}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ID returns the counter id, allocating one when needed.
func (s *Sequence) ID() string {
	s.once.Do(func() {
		if s.id == "" {
			s.id = s.store.allocate()
		}
	})
	return s.id
}

// Generate implements Generator.
func (s *Sequence) Generate(ctx context.Context) (any, error) {
	return s.GenerateSync(ctx)
}

// GenerateSync implements SyncGenerator.
func (s *Sequence) GenerateSync(context.Context) (any, error) {
	next := s.store.Next(s.ID())
	if s.transform != nil {
		return s.transform(next), nil
	}
	return next, nil
}

// ResetSeq resets the listed sequence ids, or every sequence of the Registry.
func (r *Registry) ResetSeq(ids ...string) {
	r.state.sequences.Reset(ids...)
}
