package wayline

// Scope groups route registrations under a shared path prefix, default
// parameters and middleware names. Scopes nest; a child inherits and extends
// its parent. Scopes exist only during bootstrap and hold no index state of
// their own, every connected route lands in the collection directly.
type Scope struct {
	collection *Collection
	prefix     string
	defaults   H
	middleware []string
}

// Scope creates a registration scope rooted at the given prefix
func (c *Collection) Scope(prefix string, defaults H) *Scope {
	s := &Scope{
		collection: c,
		prefix:     prefix,
		defaults:   make(H, len(defaults)),
	}
	for k, v := range defaults {
		s.defaults[k] = v
	}
	return s
}

// Scope creates a nested scope, joining prefixes and merging defaults
// Child defaults win on key collision
func (s *Scope) Scope(prefix string, defaults H) *Scope {
	child := &Scope{
		collection: s.collection,
		prefix:     joinPaths(s.prefix, prefix),
		defaults:   make(H, len(s.defaults)+len(defaults)),
		middleware: append([]string(nil), s.middleware...),
	}
	for k, v := range s.defaults {
		child.defaults[k] = v
	}
	for k, v := range defaults {
		child.defaults[k] = v
	}
	return child
}

// Use attaches middleware names to every route connected through this scope
// and its children
func (s *Scope) Use(names ...string) *Scope {
	s.middleware = append(s.middleware, names...)
	return s
}

// Connect compiles and registers a route under this scope. Scope defaults
// merge under the route's own defaults; the scope prefix is prepended to the
// template.
func (s *Scope) Connect(template string, defaults H, opts ...AddOption) (*PathRoute, error) {
	merged := make(H, len(s.defaults)+len(defaults))
	for k, v := range s.defaults {
		merged[k] = v
	}
	for k, v := range defaults {
		merged[k] = v
	}

	var routeOpts []RouteOption
	if len(s.middleware) > 0 {
		routeOpts = append(routeOpts, WithRouteMiddleware(s.middleware...))
	}

	route := NewRoute(s.collection.normalizeTemplate(joinPaths(s.prefix, template)), merged, routeOpts...)
	if err := s.collection.Add(route, opts...); err != nil {
		return nil, err
	}
	return route, nil
}
