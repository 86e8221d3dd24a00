// Package scene holds the static catalog of known scenes: which scenes link
// to which, and which named anchors each scene contains. The catalog covers
// deterministic links used when the live engine cannot answer, and backs the
// in-memory scene guessing for destinations that ship without scene metadata.
package scene

import "sync"

// Info describes one known scene.
type Info struct {
	Name    string
	Links   []string
	Anchors []string
}

type Registry struct {
	mu     sync.RWMutex
	scenes map[string]Info
}

func NewRegistry(infos ...Info) *Registry {
	r := &Registry{scenes: make(map[string]Info, len(infos))}
	for _, info := range infos {
		r.scenes[info.Name] = info
	}
	return r
}

func (r *Registry) Register(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes[info.Name] = info
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scenes[name]
	return ok
}

func (r *Registry) Links(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.scenes[name].Links
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func (r *Registry) hasAnchor(scene, anchor string) bool {
	for _, a := range r.scenes[scene].Anchors {
		if a == anchor {
			return true
		}
	}
	return false
}

// GuessScene finds the scene containing the named anchor, searching breadth
// first over static links starting from the given scene. Destinations that
// omit their scene id almost always mean an anchor in or near the player's
// current scene, so proximity in the link graph breaks ties.
func (r *Registry) GuessScene(from, anchor string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.scenes[from]; ok {
		if r.hasAnchor(from, anchor) {
			return from, true
		}
	}

	visited := map[string]struct{}{from: {}}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range r.scenes[current].Links {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}

			if r.hasAnchor(next, anchor) {
				return next, true
			}
			queue = append(queue, next)
		}
	}

	// Disconnected from the current scene; fall back to any scene listing
	// the anchor.
	for name := range r.scenes {
		if _, seen := visited[name]; seen {
			continue
		}
		if r.hasAnchor(name, anchor) {
			return name, true
		}
	}

	return "", false
}

// Path returns a scene route from start to goal over static links.
func (r *Registry) Path(start, goal string) ([]string, bool) {
	if start == goal {
		return []string{start}, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	queue := []string{start}
	visited := map[string]bool{start: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range r.scenes[current].Links {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = current
			if next == goal {
				return buildPath(prev, start, goal), true
			}
			queue = append(queue, next)
		}
	}

	return nil, false
}

func buildPath(prev map[string]string, start, goal string) []string {
	path := []string{goal}
	for current := goal; current != start; {
		p, ok := prev[current]
		if !ok {
			return nil
		}
		path = append([]string{p}, path...)
		current = p
	}
	return path
}
