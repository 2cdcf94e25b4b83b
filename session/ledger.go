package session

import (
	"fmt"
	"sync"

	"github.com/briefkit/briefkit/types"
)

// ArtifactKey gates one artifact upsert per type per message.
func ArtifactKey(t types.ArtifactType, messageID string) string {
	return string(t) + "-" + messageID
}

// StageKey gates one explicit stage change per target per message.
func StageKey(stage types.Stage, messageID string) string {
	return fmt.Sprintf("stage-%d-%s", int(stage), messageID)
}

// AutoStageKey gates one artifact-driven stage change per target per message.
func AutoStageKey(stage types.Stage, messageID string) string {
	return fmt.Sprintf("auto-stage-%d-%s", int(stage), messageID)
}

// Ledger is the set of already-applied dedup keys of one session.
//
// Keys are only ever added; Reset is the single way to remove them. The
// ledger is what makes re-parsing a growing message safe.
type Ledger struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewLedger creates a ledger pre-populated with keys.
func NewLedger(keys ...string) *Ledger {
	l := &Ledger{seen: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		l.markLocked(k)
	}
	return l
}

// Seen reports whether key was already applied.
func (l *Ledger) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

// Mark records key and reports whether it was new.
func (l *Ledger) Mark(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markLocked(key)
}

func (l *Ledger) markLocked(key string) bool {
	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	l.order = append(l.order, key)
	return true
}

// Keys returns the applied keys in the order they were recorded.
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Len returns the number of applied keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Reset forgets every key.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
	l.order = nil
}
