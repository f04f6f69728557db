package wayline

import "fmt"

// Middleware is a handler executed before the dispatcher for a matched route
type Middleware func(c *Context)

// middlewareChain is a sequence of middleware executed in order
type middlewareChain []Middleware

// RegisterMiddleware stores middleware under a name for later resolution
// Re-registering an existing name overwrites it, last write wins
func (c *Collection) RegisterMiddleware(name string, m Middleware) error {
	if c.frozen {
		return ErrCollectionFrozen
	}
	c.middleware[name] = m
	return nil
}

// MiddlewareGroup creates a named group from already-registered middleware
// and group names. The member list is stored verbatim and expanded at lookup
// time. Forward references are rejected.
func (c *Collection) MiddlewareGroup(name string, names []string) error {
	if c.frozen {
		return ErrCollectionFrozen
	}
	if _, ok := c.middlewareGroups[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateMiddlewareGroup, name)
	}
	for _, member := range names {
		if !c.MiddlewareExists(member) {
			return fmt.Errorf("cannot add %q to middleware group %q: %w", member, name, ErrUnknownMiddleware)
		}
	}
	c.middlewareGroups[name] = append([]string(nil), names...)
	return nil
}

// HasMiddleware reports whether plain middleware is registered under name
func (c *Collection) HasMiddleware(name string) bool {
	_, ok := c.middleware[name]
	return ok
}

// HasMiddlewareGroup reports whether a middleware group exists under name
func (c *Collection) HasMiddlewareGroup(name string) bool {
	_, ok := c.middlewareGroups[name]
	return ok
}

// MiddlewareExists reports whether name is registered as middleware or as a group
func (c *Collection) MiddlewareExists(name string) bool {
	return c.HasMiddleware(name) || c.HasMiddlewareGroup(name)
}

// GetMiddleware resolves a list of middleware and group names into a flat
// middleware chain. Groups expand recursively depth-first, preserving order.
// An undefined name or a group that contains itself fails the whole lookup.
func (c *Collection) GetMiddleware(names []string) ([]Middleware, error) {
	out := make(middlewareChain, 0, len(names))
	out, err := c.expandMiddleware(out, names, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// expandMiddleware walks the requested names, flattening groups
// The expanding set tracks groups on the current expansion path so cyclic
// references fail instead of recursing without bound
func (c *Collection) expandMiddleware(out middlewareChain, names []string, expanding map[string]bool) (middlewareChain, error) {
	for _, name := range names {
		if members, ok := c.middlewareGroups[name]; ok {
			if expanding[name] {
				return nil, fmt.Errorf("%w: %q", ErrMiddlewareCycle, name)
			}
			expanding[name] = true
			var err error
			out, err = c.expandMiddleware(out, members, expanding)
			if err != nil {
				return nil, err
			}
			delete(expanding, name)
			continue
		}
		if m, ok := c.middleware[name]; ok {
			out = append(out, m)
			continue
		}
		return nil, fmt.Errorf("middleware %q: %w", name, ErrUnknownMiddleware)
	}
	return out, nil
}
