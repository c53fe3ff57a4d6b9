package guard

import "sync"

// VersionProvider holds one monotonic counter per scope. An absent scope is
// at version 0.
type VersionProvider struct {
	mu       sync.Mutex
	versions map[string]int64
}

func NewVersionProvider() *VersionProvider {
	return &VersionProvider{versions: make(map[string]int64)}
}

// Current returns the version of scope.
func (p *VersionProvider) Current(scope string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.versions[scope]
}

// Check reports whether expected matches the current version of scope. A nil
// expected always matches.
func (p *VersionProvider) Check(scope string, expected *int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.versions[scope]
	return cur, expected == nil || *expected == cur
}

// TryCheckAndBump increments scope when expected is nil or equals the
// current version, returning the new version. Otherwise it returns the
// unchanged current version and false.
func (p *VersionProvider) TryCheckAndBump(scope string, expected *int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.versions[scope]
	if expected != nil && *expected != cur {
		return cur, false
	}
	cur++
	p.versions[scope] = cur
	return cur, true
}

// Snapshot returns a copy of every counter.
func (p *VersionProvider) Snapshot() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int64, len(p.versions))
	for k, v := range p.versions {
		out[k] = v
	}
	return out
}

// Restore replaces every counter with the given values.
func (p *VersionProvider) Restore(versions map[string]int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions = make(map[string]int64, len(versions))
	for k, v := range versions {
		p.versions[k] = v
	}
}
