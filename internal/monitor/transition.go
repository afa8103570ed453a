package monitor

import (
	"sort"
	"sync"
	"time"
)

// OverdueDeadline is the instant at or after which t counts as overdue.
// A target that never reported is measured from its creation.
func OverdueDeadline(t PushTarget) time.Time {
	ref := t.CreatedAt
	if t.LastHeartbeat != nil {
		ref = *t.LastHeartbeat
	}
	return ref.Add(t.ExpectedInterval() + t.GracePeriod())
}

// IsOverdue reports whether t has missed its heartbeat window at now.
// Reaching the deadline exactly counts as overdue.
func IsOverdue(t PushTarget, now time.Time) bool {
	return !now.Before(OverdueDeadline(t))
}

// DetectPollTransition compares the previously accounted status with the
// outcome just produced. A target with no history is treated as healthy,
// so its first failure alerts and its first success does not.
func DetectPollTransition(prev, cur Status) Transition {
	wasUnhealthy := prev == StatusUnhealthy
	switch {
	case !wasUnhealthy && cur == StatusUnhealthy:
		return TransitionBecameUnhealthy
	case wasUnhealthy && cur == StatusHealthy:
		return TransitionRecovered
	default:
		return TransitionNone
	}
}

// DetectPushTransition compares tracked overdue membership with the
// freshly evaluated overdue flag.
func DetectPushTransition(wasOverdue, overdue bool) Transition {
	switch {
	case overdue && !wasOverdue:
		return TransitionBecameOverdue
	case !overdue && wasOverdue:
		return TransitionRecovered
	default:
		return TransitionNone
	}
}

// OverdueTracker is the set of push targets whose overdue state has already
// been alerted. It is owned by the scheduler, rebuilt from stored status
// markers at startup, and mutated only under the target's lock.
type OverdueTracker struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewOverdueTracker creates a tracker seeded with ids.
func NewOverdueTracker(ids ...string) *OverdueTracker {
	t := &OverdueTracker{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
	return t
}

// Contains reports whether id is currently tracked as overdue.
func (t *OverdueTracker) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}

// Apply records the effect of a transition for id.
func (t *OverdueTracker) Apply(id string, tr Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch tr {
	case TransitionBecameOverdue:
		t.ids[id] = struct{}{}
	case TransitionRecovered:
		delete(t.ids, id)
	}
}

// Remove forgets id, used when a target is deleted.
func (t *OverdueTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ids, id)
}

// Reset replaces the tracked set.
func (t *OverdueTracker) Reset(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
}

// IDs returns the tracked ids in sorted order.
func (t *OverdueTracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.ids))
	for id := range t.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked ids.
func (t *OverdueTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}

// keyedMutex serializes work per target id. Entries are reference counted
// and dropped when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
