package session

// Registry holds connected players in join order. It has no lock of its
// own; the owning lobby serializes access.
type Registry struct {
	byID  map[string]*Player
	order []string
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Player)}
}

// Add registers p. Re-adding an id replaces the player in place.
func (r *Registry) Add(p *Player) {
	if _, ok := r.byID[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// Remove forgets id and returns the removed player, if any.
func (r *Registry) Remove(id string) (*Player, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (r *Registry) Get(id string) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) Len() int { return len(r.byID) }

// All returns players in join order.
func (r *Registry) All() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
