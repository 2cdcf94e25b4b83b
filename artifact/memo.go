package artifact

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/briefkit/briefkit/types"
)

// DefaultMemoSize is the number of distinct texts a MemoParser remembers.
const DefaultMemoSize = 256

// MemoStats reports MemoParser cache effectiveness.
type MemoStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

type memoEntry struct {
	text   string
	result ParseResult
}

// MemoParser caches ParseResults keyed by a hash of the full text.
//
// Streaming callers re-parse the cumulative text on every flush; repeated
// flushes of unchanged text are answered from the cache. Entries keep the
// source text so a hash collision falls through to a real parse. Concurrent
// parses of the same text are collapsed into one.
type MemoParser struct {
	parser TextParser

	mu    sync.Mutex
	cache *lru.Cache
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ TextParser = (*MemoParser)(nil)

// NewMemoParser wraps parser with an LRU of size entries.
func NewMemoParser(parser TextParser, size int) *MemoParser {
	if size <= 0 {
		size = DefaultMemoSize
	}
	return &MemoParser{
		parser: parser,
		cache:  lru.New(size),
	}
}

// Parse implements TextParser.
func (m *MemoParser) Parse(text string) ParseResult {
	key := xxhash.Sum64String(text)

	if entry, ok := m.lookup(key); ok && entry.text == text {
		m.hits.Add(1)
		return entry.result.clone()
	}
	m.misses.Add(1)

	v, _, _ := m.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		entry := memoEntry{text: text, result: m.parser.Parse(text)}
		m.mu.Lock()
		m.cache.Add(key, entry)
		m.mu.Unlock()
		return entry, nil
	})

	entry := v.(memoEntry)
	if entry.text != text {
		return m.parser.Parse(text)
	}
	return entry.result.clone()
}

// Stats returns a snapshot of cache counters.
func (m *MemoParser) Stats() MemoStats {
	m.mu.Lock()
	entries := m.cache.Len()
	m.mu.Unlock()
	return MemoStats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Entries: entries,
	}
}

// Purge drops every cached result.
func (m *MemoParser) Purge() {
	m.mu.Lock()
	m.cache.Clear()
	m.mu.Unlock()
}

func (m *MemoParser) lookup(key uint64) (memoEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache.Get(key)
	if !ok {
		return memoEntry{}, false
	}
	return v.(memoEntry), true
}

// clone copies the slices of r so callers cannot mutate a cached result.
// Artifact data maps are shared; consumers treat them as read-only.
func (r ParseResult) clone() ParseResult {
	out := r
	out.Artifacts = append(make([]types.ParsedArtifact, 0, len(r.Artifacts)), r.Artifacts...)
	if r.StageTransition != nil {
		s := *r.StageTransition
		out.StageTransition = &s
	}
	return out
}
