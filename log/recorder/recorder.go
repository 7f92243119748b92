// Package recorder keeps recent log messages grouped by request hash, so a
// debug page can show how each embed on a page was resolved. Messages
// without a "hash" field are only forwarded.
package recorder

import (
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/gistcache"
)

type Entry struct {
	Time   time.Time        `json:"time"`
	Level  string           `json:"level"`
	Msg    string           `json:"msg"`
	Fields gistcache.Fields `json:"fields,omitempty"`
}

type Group struct {
	Hash    string    `json:"hash"`
	Updated time.Time `json:"updated"`
	Entries []Entry   `json:"entries"`
}

// Recorder is a gistcache.Logger that tees to Next.
type Recorder struct {
	next        gistcache.Logger
	maxGroups   int
	maxPerGroup int
	now         func() time.Time

	mu     sync.Mutex
	groups map[string]*Group
}

var _ gistcache.Logger = (*Recorder)(nil)

// New keeps up to maxGroups hashes (oldest evicted) with up to maxPerGroup
// messages each (oldest dropped). next may be nil.
func New(next gistcache.Logger, maxGroups, maxPerGroup int) *Recorder {
	if next == nil {
		next = gistcache.NopLogger{}
	}
	if maxGroups <= 0 {
		maxGroups = 256
	}
	if maxPerGroup <= 0 {
		maxPerGroup = 32
	}
	return &Recorder{
		next:        next,
		maxGroups:   maxGroups,
		maxPerGroup: maxPerGroup,
		now:         time.Now,
		groups:      make(map[string]*Group),
	}
}

func (r *Recorder) Debug(msg string, f gistcache.Fields) { r.record("debug", msg, f); r.next.Debug(msg, f) }
func (r *Recorder) Info(msg string, f gistcache.Fields)  { r.record("info", msg, f); r.next.Info(msg, f) }
func (r *Recorder) Warn(msg string, f gistcache.Fields)  { r.record("warn", msg, f); r.next.Warn(msg, f) }
func (r *Recorder) Error(msg string, f gistcache.Fields) { r.record("error", msg, f); r.next.Error(msg, f) }

func (r *Recorder) record(level, msg string, f gistcache.Fields) {
	hash, _ := f["hash"].(string)
	if hash == "" {
		return
	}
	rest := make(gistcache.Fields, len(f)-1)
	for k, v := range f {
		if k == "hash" {
			continue
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		rest[k] = v
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[hash]
	if !ok {
		if len(r.groups) >= r.maxGroups {
			r.evictOldest()
		}
		g = &Group{Hash: hash}
		r.groups[hash] = g
	}
	g.Updated = now
	g.Entries = append(g.Entries, Entry{Time: now, Level: level, Msg: msg, Fields: rest})
	if over := len(g.Entries) - r.maxPerGroup; over > 0 {
		g.Entries = append(g.Entries[:0:0], g.Entries[over:]...)
	}
}

func (r *Recorder) evictOldest() {
	var oldest *Group
	for _, g := range r.groups {
		if oldest == nil || g.Updated.Before(oldest.Updated) {
			oldest = g
		}
	}
	if oldest != nil {
		delete(r.groups, oldest.Hash)
	}
}

// Groups returns a copy of all groups, most recently updated first.
func (r *Recorder) Groups() []Group {
	r.mu.Lock()
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, copyGroup(g))
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out
}

func (r *Recorder) Group(hash string) (Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[hash]
	if !ok {
		return Group{}, false
	}
	return copyGroup(g), true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.groups = make(map[string]*Group)
	r.mu.Unlock()
}

func copyGroup(g *Group) Group {
	return Group{Hash: g.Hash, Updated: g.Updated, Entries: append([]Entry(nil), g.Entries...)}
}
