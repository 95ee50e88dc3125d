package device

import (
	"fmt"
	"sort"
	"sync"
)

//Role names what a buffer is used for (positions, cell counts, ...). Stages
//refer to roles, never to buffers, so the binding can change between frames.
type Role string

//BufferSpec describes one buffer of a group. Scratch buffers are cleared by
//whoever owns the group before the stage that accumulates into them.
type BufferSpec struct {
	Role    Role
	Kind    Kind
	Len     int
	Scratch bool
}

//Registry maps roles to live buffers
type Registry struct {
	label string
	dev   *Device

	mu      sync.RWMutex
	buffers map[Role]*Buffer
	specs   map[Role]BufferSpec
	order   []Role
}

//AllocateGroup creates every buffer in specs or none of them. On failure the
//buffers allocated so far are returned to the budget.
func (d *Device) AllocateGroup(label string, specs []BufferSpec) (*Registry, error) {
	r := &Registry{
		label:   label,
		dev:     d,
		buffers: make(map[Role]*Buffer, len(specs)),
		specs:   make(map[Role]BufferSpec, len(specs)),
	}
	for _, s := range specs {
		if _, dup := r.buffers[s.Role]; dup {
			r.Release()
			return nil, fmt.Errorf("device: group %q: duplicate role %q", label, s.Role)
		}
		b, err := d.CreateBuffer(label+"/"+string(s.Role), s.Kind, s.Len)
		if err != nil {
			r.Release()
			return nil, err
		}
		r.buffers[s.Role] = b
		r.specs[s.Role] = s
		r.order = append(r.order, s.Role)
	}
	Logger.Printf("group %q: %d buffers, %s", label, len(r.order), formatBytes(r.Bytes()))
	return r, nil
}

func (r *Registry) Label() string { return r.label }

//Lookup returns the buffer currently bound to role
func (r *Registry) Lookup(role Role) (*Buffer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buffers[role]
	return b, ok
}

//Resolve is Lookup for roles that must exist. A missing role is a wiring bug.
func (r *Registry) Resolve(role Role) *Buffer {
	b, ok := r.Lookup(role)
	if !ok {
		panic(fmt.Sprintf("device: group %q has no role %q", r.label, role))
	}
	return b
}

//Spec returns the allocation spec of role
func (r *Registry) Spec(role Role) (BufferSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[role]
	return s, ok
}

//Exchange swaps the buffers bound to a and b. Commands already recorded keep
//the buffers they captured.
func (r *Registry) Exchange(a, b Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ba, okA := r.buffers[a]
	bb, okB := r.buffers[b]
	if !okA || !okB {
		return fmt.Errorf("device: group %q: exchange %q <-> %q: unknown role", r.label, a, b)
	}
	if ba.kind != bb.kind || ba.length != bb.length {
		return fmt.Errorf("device: group %q: exchange %q <-> %q: %w", r.label, a, b, ErrMismatch)
	}
	r.buffers[a], r.buffers[b] = bb, ba
	return nil
}

//Roles lists roles in allocation order
func (r *Registry) Roles() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, len(r.order))
	copy(out, r.order)
	return out
}

//Scratch lists the roles flagged as scratch, sorted by name
func (r *Registry) Scratch() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Role
	for role, s := range r.specs {
		if s.Scratch {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

//Bytes is the total size of the group
func (r *Registry) Bytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, b := range r.buffers {
		n += b.Size()
	}
	return n
}

//Release frees every buffer of the group
func (r *Registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buffers {
		r.dev.Release(b)
	}
	r.buffers = map[Role]*Buffer{}
	r.specs = map[Role]BufferSpec{}
	r.order = nil
}
