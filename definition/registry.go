package definition

import (
	"sort"
	"sync"

	"github.com/xraph/stepwise"
)

// Registry maps skill types to versioned workflow definitions. Multiple
// versions of the same skill can be registered; the latest version is used
// for new workflows. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	versions map[string][]*Workflow // skill type → definitions, ascending version
}

// NewRegistry creates an empty definition registry.
func NewRegistry() *Registry {
	return &Registry{
		versions: make(map[string][]*Workflow),
	}
}

// Register normalizes and validates def, then stores a private copy.
// Registering the same skill type and version again replaces the earlier
// definition. Invalid definitions are rejected with a
// *stepwise.DefinitionInvalidError and leave the registry unchanged.
func (r *Registry) Register(def *Workflow) error {
	cp := def.Clone()
	cp.Normalize()
	if err := cp.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.versions[cp.SkillType]
	for i, w := range existing {
		if w.Version == cp.Version {
			existing[i] = cp
			return nil
		}
	}
	existing = append(existing, cp)
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Version < existing[j].Version
	})
	r.versions[cp.SkillType] = existing
	return nil
}

// Get returns a copy of the latest definition for the skill type.
func (r *Registry) Get(skillType string) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vs := r.versions[skillType]
	if len(vs) == 0 {
		return nil, &stepwise.NotFoundError{Kind: "skill", ID: skillType}
	}
	return vs[len(vs)-1].Clone(), nil
}

// GetVersion returns a copy of a specific definition version.
func (r *Registry) GetVersion(skillType string, version int) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.versions[skillType] {
		if w.Version == version {
			return w.Clone(), nil
		}
	}
	return nil, &stepwise.NotFoundError{Kind: "skill", ID: skillType}
}

// Names returns the registered skill types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.versions))
	for name := range r.versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the latest definition of every skill type, sorted
// by skill type.
func (r *Registry) All() []*Workflow {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Workflow, 0, len(names))
	for _, name := range names {
		vs := r.versions[name]
		out = append(out, vs[len(vs)-1].Clone())
	}
	return out
}
