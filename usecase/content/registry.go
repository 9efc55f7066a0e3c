package content

// Registry holds one Service per configured content domain so handlers can
// resolve the service from the request path.
type Registry struct {
	services map[string]*Service
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

func (r *Registry) Add(svc *Service) {
	name := svc.Descriptor().Name
	if _, ok := r.services[name]; !ok {
		r.order = append(r.order, name)
	}
	r.services[name] = svc
}

func (r *Registry) Get(name string) (*Service, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// All returns services in registration order.
func (r *Registry) All() []*Service {
	out := make([]*Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name])
	}
	return out
}
