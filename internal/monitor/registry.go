package monitor

import (
	"strings"
	"sync"
)

const mprisPrefix = "org.mpris.MediaPlayer2."

// registry maps unique bus names (":1.45") to the MPRIS well-known names
// they own ("org.mpris.MediaPlayer2.spotify") and applies the player allow
// list. Safe for concurrent use.
type registry struct {
	mu      sync.RWMutex
	owners  map[string]string
	allowed map[string]struct{}
}

// newRegistry accepts players by identity ("vlc") or full bus name. An empty
// list accepts every player.
func newRegistry(players []string) *registry {
	allowed := make(map[string]struct{}, len(players))
	for _, p := range players {
		p = strings.TrimPrefix(strings.TrimSpace(p), mprisPrefix)
		if p != "" {
			allowed[p] = struct{}{}
		}
	}
	return &registry{
		owners:  make(map[string]string),
		allowed: allowed,
	}
}

func (r *registry) set(unique, name string) {
	r.mu.Lock()
	r.owners[unique] = name
	r.mu.Unlock()
}

func (r *registry) drop(unique string) {
	r.mu.Lock()
	delete(r.owners, unique)
	r.mu.Unlock()
}

// lookup returns the well-known name owned by unique, if any
func (r *registry) lookup(unique string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.owners[unique]
	return name, ok
}

// name resolves unique to its well-known name, falling back to unique itself
func (r *registry) name(unique string) string {
	if name, ok := r.lookup(unique); ok {
		return name
	}
	return unique
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// accepts reports whether events from the named player are wanted.
// Instance suffixes (org.mpris.MediaPlayer2.vlc.instance42) match their
// base identity.
func (r *registry) accepts(name string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	identity := strings.TrimPrefix(name, mprisPrefix)
	if identity == name {
		// unique names and foreign services never match an identity
		return false
	}
	if _, ok := r.allowed[identity]; ok {
		return true
	}
	base, _, _ := strings.Cut(identity, ".")
	_, ok := r.allowed[base]
	return ok
}
