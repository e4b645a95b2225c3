package occ

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Updater performs the external update round-trip for an entity. A stale
// version must come back as *ConflictError (see ParseConflict); every other
// failure is an opaque error.
type Updater interface {
	Update(ctx context.Context, entity Entity) (Entity, error)
}

// UpdaterFunc adapts a function to the Updater interface.
type UpdaterFunc func(ctx context.Context, entity Entity) (Entity, error)

func (f UpdaterFunc) Update(ctx context.Context, entity Entity) (Entity, error) {
	return f(ctx, entity)
}

// Resolution strategies for a pending conflict.
const (
	ResolveTheirs = "theirs" // adopt server data, discard local changes
	ResolveMine   = "mine"   // rebase local changes onto the current version and resubmit
	ResolveMerge  = "merge"  // three-way auto-merge and resubmit
)

var (
	// ErrSubmitInFlight is returned when a submit or resolve is attempted
	// while another one has not finished. One submission per session.
	ErrSubmitInFlight = errors.New("a submission is already in flight")

	// ErrNoConflict is returned when Resolve is called with no pending
	// conflict.
	ErrNoConflict = errors.New("no conflict to resolve")
)

// Outcome tags a submit result.
type Outcome int

const (
	// OutcomeUpdated: the server accepted the update; Entity holds the new
	// snapshot (already adopted as the session baseline).
	OutcomeUpdated Outcome = iota
	// OutcomeConflict: the server rejected a stale version; Conflict holds
	// the descriptor, now also stored on the session for resolution.
	OutcomeConflict
	// OutcomeError: transport or validation failure; Err holds it. The
	// session records the message but does not interpret or recover.
	OutcomeError
)

// Result is the tagged outcome of a submit or resolve call. Exactly one of
// Entity, Conflict, Err is set, matching Outcome.
type Result struct {
	Outcome  Outcome
	Entity   Entity
	Conflict *Descriptor
	Err      error
}

// Session owns the editing state for one open form over one versioned
// entity: the working data, the pristine baseline, the in-flight flag, and
// the active conflict if any. A session belongs to exactly one edit context;
// concurrent edits by other contexts surface as server-reported conflicts,
// never as local coordination.
type Session struct {
	updater Updater

	mu             sync.Mutex
	data           Entity
	originalData   Entity
	pendingChanges Changes
	conflict       *Descriptor
	submitting     bool
	lastErr        string
}

// NewSession creates a session seeded with an initial versioned entity.
// data and originalData start identical; there is no conflict and nothing
// in flight.
func NewSession(initial Entity, updater Updater) *Session {
	return &Session{
		updater:      updater,
		data:         initial.Clone(),
		originalData: initial.Clone(),
	}
}

// Data returns a copy of the current working data.
func (s *Session) Data() Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// OriginalData returns a copy of the pristine baseline.
func (s *Session) OriginalData() Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalData.Clone()
}

// PendingChanges returns a copy of the change set retained from a
// conflicted submit, or nil.
func (s *Session) PendingChanges() Changes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingChanges.Clone()
}

// Conflict returns the active conflict descriptor, or nil.
func (s *Session) Conflict() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflict
}

// IsSubmitting reports whether a submission is in flight.
func (s *Session) IsSubmitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Err returns the last recorded error message, or "".
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Partition buckets the active conflict's fields against the retained
// pending changes. Returns the zero Partition when there is no conflict.
func (s *Session) Partition() Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflict == nil {
		return Partition{}
	}
	return PartitionConflict(s.originalData, s.conflict, s.pendingChanges)
}

// Submit builds a candidate entity from the working data plus changes and
// sends it through the updater.
//
// On success the result becomes the new data and baseline, pending changes
// and any conflict clear, and the updated entity is returned. On a version
// conflict the descriptor is captured into session state and the changes are
// retained for later merge or retry; the conflict is never re-thrown past
// this boundary. Any other failure records a message and is returned to the
// caller. A second Submit while one is in flight is rejected with
// ErrSubmitInFlight without touching session state.
func (s *Session) Submit(ctx context.Context, changes Changes) Result {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return Result{Outcome: OutcomeError, Err: ErrSubmitInFlight}
	}
	candidate := s.data.Clone()
	for k, v := range changes {
		candidate[k] = cloneValue(v)
	}
	s.submitting = true
	s.mu.Unlock()

	updated, err := s.updater.Update(ctx, candidate)
	return s.finishSubmit(updated, err, changes)
}

// finishSubmit folds an updater round-trip back into session state.
func (s *Session) finishSubmit(updated Entity, err error, changes Changes) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false

	if err == nil {
		s.data = updated.Clone()
		s.originalData = updated.Clone()
		s.pendingChanges = nil
		s.conflict = nil
		s.lastErr = ""
		return Result{Outcome: OutcomeUpdated, Entity: updated.Clone()}
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		s.conflict = conflict.Descriptor
		s.pendingChanges = changes.Clone()
		return Result{Outcome: OutcomeConflict, Conflict: conflict.Descriptor}
	}

	s.lastErr = err.Error()
	return Result{Outcome: OutcomeError, Err: err}
}

// Resolve applies a named strategy to the active conflict.
//
//   - ResolveTheirs adopts the server's current data as both working data
//     and baseline, discards local changes, and needs no resubmission.
//   - ResolveMine rebases: the working data keeps the user's intent but
//     takes the server's current version, the baseline becomes the server's
//     current data, and the previously pending changes are resubmitted. A
//     second racing editor will surface as a fresh conflict.
//   - ResolveMerge runs the three-way AutoMerge. On success the merged
//     entity is adopted and resubmitted as-is. If some field collided the
//     conflict is kept, a blocking message naming the fields is recorded,
//     and the caller must pick ResolveMine or ResolveTheirs explicitly.
func (s *Session) Resolve(ctx context.Context, strategy string) Result {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return Result{Outcome: OutcomeError, Err: ErrSubmitInFlight}
	}
	if s.conflict == nil {
		s.mu.Unlock()
		return Result{Outcome: OutcomeError, Err: ErrNoConflict}
	}
	conflict := s.conflict

	switch strategy {
	case ResolveTheirs:
		adopted := conflict.CurrentData.Clone()
		s.data = adopted
		s.originalData = adopted.Clone()
		s.pendingChanges = nil
		s.conflict = nil
		s.lastErr = ""
		s.mu.Unlock()
		return Result{Outcome: OutcomeUpdated, Entity: adopted.Clone()}

	case ResolveMine:
		s.data[FieldVersion] = conflict.CurrentVersion
		s.originalData = conflict.CurrentData.Clone()
		s.originalData[FieldVersion] = conflict.CurrentVersion
		pending := s.pendingChanges
		s.conflict = nil
		return s.resubmitLocked(ctx, pending)

	case ResolveMerge:
		merged, err := AutoMerge(s.originalData, s.pendingChanges, conflict.CurrentData)
		if err != nil {
			// Keep the conflict: merge must never silently pick a side.
			s.lastErr = err.Error()
			s.mu.Unlock()
			return Result{Outcome: OutcomeError, Err: err}
		}
		merged[FieldVersion] = conflict.CurrentVersion
		s.data = merged
		s.originalData = merged.Clone()
		s.conflict = nil
		return s.resubmitLocked(ctx, nil)

	default:
		s.mu.Unlock()
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("unknown resolution strategy %q", strategy)}
	}
}

// ResolveWith adopts a caller-reconciled entity (e.g. from a manual-merge
// UI), stamps it with the conflict's current version, and resubmits it.
func (s *Session) ResolveWith(ctx context.Context, entity Entity) Result {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return Result{Outcome: OutcomeError, Err: ErrSubmitInFlight}
	}
	if s.conflict == nil {
		s.mu.Unlock()
		return Result{Outcome: OutcomeError, Err: ErrNoConflict}
	}
	adopted := entity.Clone()
	adopted[FieldVersion] = s.conflict.CurrentVersion
	s.data = adopted
	s.originalData = adopted.Clone()
	s.conflict = nil
	return s.resubmitLocked(ctx, nil)
}

// resubmitLocked re-runs the submit round-trip from inside a resolution.
// The caller holds the lock; it is released for the network call.
func (s *Session) resubmitLocked(ctx context.Context, changes Changes) Result {
	candidate := s.data.Clone()
	for k, v := range changes {
		candidate[k] = cloneValue(v)
	}
	s.submitting = true
	s.mu.Unlock()

	updated, err := s.updater.Update(ctx, candidate)
	return s.finishSubmit(updated, err, changes)
}

// Refresh unconditionally replaces the session's data and baseline with a
// newer snapshot pushed from outside (e.g. a live-update channel), clearing
// any pending conflict, changes, and error regardless of current phase.
func (s *Session) Refresh(newData Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newData.Clone()
	s.originalData = newData.Clone()
	s.pendingChanges = nil
	s.conflict = nil
	s.lastErr = ""
}

// Reset discards in-progress edits, conflict, and error, returning the
// working data to the last known baseline.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = s.originalData.Clone()
	s.pendingChanges = nil
	s.conflict = nil
	s.lastErr = ""
}
