// Package result holds the deduplicated, append-only set of scan findings
// (spec §4.8). The snapshot-under-lock shape mirrors
// _examples/etalazz-vsa/internal/ratelimiter/core/store.go's read path.
package result

import (
	"fmt"
	"sync"

	"github.com/terrafind/sporefinder/internal/addr"
	"github.com/terrafind/sporefinder/internal/metrics"
)

// Outcome is the classified result of one probed destination.
type Outcome struct {
	kind   outcomeKind
	reason string
}

type outcomeKind int

const (
	Approved outcomeKind = iota + 1
	PasswordRequired
	Booted
)

// NewApproved builds an Approved outcome.
func NewApproved() Outcome { return Outcome{kind: Approved} }

// NewPasswordRequired builds a PasswordRequired outcome.
func NewPasswordRequired() Outcome { return Outcome{kind: PasswordRequired} }

// NewBooted builds a Booted outcome carrying the server's disconnect reason.
func NewBooted(reason string) Outcome { return Outcome{kind: Booted, reason: reason} }

// Label returns the outcome's kind name without the Booted reason, for use
// as a low-cardinality metrics label.
func (o Outcome) Label() string {
	switch o.kind {
	case Approved:
		return "approved"
	case PasswordRequired:
		return "password_required"
	case Booted:
		return "booted"
	default:
		return "unknown"
	}
}

func (o Outcome) String() string {
	switch o.kind {
	case Approved:
		return "Approved"
	case PasswordRequired:
		return "PasswordRequired"
	case Booted:
		return fmt.Sprintf("Booted(%q)", o.reason)
	default:
		return "Unknown"
	}
}

// Finding is one published, deduplicated result.
type Finding struct {
	Address addr.SocketV4
	Outcome Outcome
}

// Sink is an append-only set of Findings, keyed by address. First writer
// wins; a Sink never holds two Findings for the same address.
type Sink struct {
	mu       sync.RWMutex
	findings map[addr.SocketV4]Finding
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{findings: make(map[addr.SocketV4]Finding)}
}

// Contains reports whether a is already published, for the receiver's dedup
// check before it bothers classifying a repeat PSH segment.
func (s *Sink) Contains(a addr.SocketV4) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.findings[a]
	return ok
}

// Publish records a Finding for a if one is not already present. Returns
// false if a was already published (the new outcome is discarded).
func (s *Sink) Publish(a addr.SocketV4, outcome Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findings[a]; ok {
		return false
	}
	s.findings[a] = Finding{Address: a, Outcome: outcome}
	metrics.FindingsPublished.WithLabelValues(outcome.Label()).Inc()
	return true
}

// Snapshot returns a stable copy of every Finding published so far, suitable
// for the abort handler or the end-of-scan report.
func (s *Sink) Snapshot() []Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Finding, 0, len(s.findings))
	for _, f := range s.findings {
		out = append(out, f)
	}
	return out
}

// Clear removes every finding, used before a rescan pass.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = make(map[addr.SocketV4]Finding)
}

// Len reports the number of findings currently held.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.findings)
}
