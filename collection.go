package wayline

import (
	"net/url"
	"sort"
	"strings"

	"github.com/valyala/fasthttp"
)

// Route is a compiled URL pattern as consumed by the collection. It parses
// concrete paths into parameter bundles and generates paths from bundles.
// Implementations must be immutable once registered.
type Route interface {
	Name() string
	Template() string
	StaticPath() string
	Extensions() []string
	Defaults() map[string]any
	Parse(path string) map[string]any
	Match(params map[string]any, ctx URLContext) (string, bool)
}

// Request is the narrow view of an inbound HTTP request the collection needs
type Request struct {
	Path  string // Raw URI path
	Query string // Raw query string, form-encoded
}

// RequestFrom adapts a fasthttp request context into a Request
func RequestFrom(fctx *fasthttp.RequestCtx) Request {
	return Request{
		Path:  getString(fctx.URI().PathOriginal()),
		Query: getString(fctx.URI().QueryString()),
	}
}

// Collection indexes routes for dispatch and reverse matching. It is built
// once during application bootstrap by repeated Add calls, then frozen and
// treated as read-only by request handlers. Lookups on a frozen collection
// are safe for unbounded concurrent use; Add calls are not synchronized and
// must happen from a single goroutine before Freeze.
type Collection struct {
	routeTable  map[string][]Route  // Routes by generated name, registration order
	named       map[string]Route    // Routes by explicit name, unique
	staticPaths map[string][]Route  // Fully literal routes by their template
	paths       map[string][]Route  // All routes by static path prefix
	extensions  map[string]struct{} // Union of declared route extensions

	middleware       map[string]Middleware
	middlewareGroups map[string][]string

	sortedPaths     []string // Descending prefix order, cached at freeze time
	frozen          bool
	caseInsensitive bool
}

// NewCollection returns an empty route collection
func NewCollection() *Collection {
	return &Collection{
		routeTable:       make(map[string][]Route),
		named:            make(map[string]Route),
		staticPaths:      make(map[string][]Route),
		paths:            make(map[string][]Route),
		extensions:       make(map[string]struct{}),
		middleware:       make(map[string]Middleware),
		middlewareGroups: make(map[string][]string),
	}
}

// normalizeTemplate lowercases a template when case-insensitive routing is
// enabled, so registered routes stay reachable from lowercased request paths
func (c *Collection) normalizeTemplate(template string) string {
	if c.caseInsensitive {
		return strings.ToLower(template)
	}
	return template
}

// addOptions holds per-registration options
type addOptions struct {
	name string
}

// AddOption configures a single Add call
type AddOption func(*addOptions)

// WithName assigns an explicit, globally unique name to the route
func WithName(name string) AddOption {
	return func(o *addOptions) { o.name = name }
}

// Add registers a compiled route in every index. Explicit names must be
// unique; generated names may collide and are tried in registration order.
func (c *Collection) Add(route Route, opts ...AddOption) error {
	if c.frozen {
		return ErrCollectionFrozen
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.name != "" {
		if existing, ok := c.named[o.name]; ok {
			return &DuplicateNamedRouteError{
				Name:     o.name,
				Template: route.Template(),
				Existing: existing.Template(),
			}
		}
		c.named[o.name] = route
	}

	c.routeTable[route.Name()] = append(c.routeTable[route.Name()], route)
	for _, ext := range route.Extensions() {
		c.extensions[ext] = struct{}{}
	}

	staticPath := route.StaticPath()
	c.paths[staticPath] = append(c.paths[staticPath], route)
	if staticPath == route.Template() {
		c.staticPaths[staticPath] = append(c.staticPaths[staticPath], route)
	}

	c.sortedPaths = nil
	return nil
}

// Freeze seals the collection and caches the descending prefix order.
// Further mutation returns ErrCollectionFrozen.
func (c *Collection) Freeze() {
	if c.frozen {
		return
	}
	c.frozen = true
	c.sortedPaths = c.computeSortedKeys()
}

// Frozen reports whether the collection has been sealed
func (c *Collection) Frozen() bool { return c.frozen }

// ParseRequest resolves a request to the parameter bundle of the first
// matching route. Exact static paths are tried before the longest-prefix
// fallback scan; within a bucket routes are tried in registration order.
func (c *Collection) ParseRequest(req Request) (map[string]any, error) {
	path := normalizePath(req.Path)
	query := parseQuery(req.Query)

	if bucket, ok := c.staticPaths[path]; ok {
		for _, route := range bucket {
			if result := route.Parse(path); result != nil {
				// Route-populated query parameters win on collision
				mergeQuery(result, query, false)
				return result, nil
			}
		}
	}

	for _, prefix := range c.sortedKeys() {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		for _, route := range c.paths[prefix] {
			if result := route.Parse(path); result != nil {
				mergeQuery(result, query, true)
				return result, nil
			}
		}
	}

	return nil, &MissingRouteError{Path: path}
}

// Match generates the URL for a parameter bundle. A bundle carrying NameKey
// resolves through the explicit-name registry; otherwise generated-name
// candidates are tried from most to least specific. Output is normalized:
// "/" is returned verbatim, anything else has surrounding slashes trimmed.
func (c *Collection) Match(params map[string]any, ctx URLContext) (string, error) {
	if v, ok := params[NameKey]; ok {
		name := stringify(v)
		route, found := c.named[name]
		if !found {
			return "", &MissingRouteError{Name: name}
		}

		defaults := route.Defaults()
		merged := make(map[string]any, len(defaults)+len(params))
		for k, val := range defaults {
			merged[k] = val
		}
		for k, val := range params {
			if k == NameKey {
				continue
			}
			merged[k] = val
		}

		out, matched := route.Match(merged, ctx)
		if !matched {
			return "", &MissingRouteError{Name: name, Params: params}
		}
		return normalizeMatch(out), nil
	}

	if _, ok := params["action"]; ok {
		for _, candidate := range candidateNames(params) {
			for _, route := range c.routeTable[candidate] {
				if out, matched := route.Match(params, ctx); matched {
					return normalizeMatch(out), nil
				}
			}
		}
	}

	return "", &MissingRouteError{Params: params}
}

// Routes returns every registered route in descending static-prefix key
// order, each bucket in registration order
func (c *Collection) Routes() []Route {
	var routes []Route
	for _, key := range c.sortedKeys() {
		routes = append(routes, c.paths[key]...)
	}
	return routes
}

// Named returns a copy of the explicit-name registry
func (c *Collection) Named() map[string]Route {
	named := make(map[string]Route, len(c.named))
	for name, route := range c.named {
		named[name] = route
	}
	return named
}

// Extensions returns the sorted union of all route-declared extensions
func (c *Collection) Extensions() []string {
	exts := make([]string, 0, len(c.extensions))
	for ext := range c.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// sortedKeys returns the static-prefix keys in descending lexicographic
// order, so longer prefixes sharing a head sort before shorter ones and the
// fallback scan tries the most specific bucket first. The order is cached
// once frozen and recomputed per call while the collection is still mutable.
func (c *Collection) sortedKeys() []string {
	if c.frozen && c.sortedPaths != nil {
		return c.sortedPaths
	}
	return c.computeSortedKeys()
}

func (c *Collection) computeSortedKeys() []string {
	keys := make([]string, 0, len(c.paths))
	for key := range c.paths {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// normalizeMatch normalizes reverse-match output: the root path is returned
// verbatim, anything else loses its surrounding slashes
func normalizeMatch(out string) string {
	if out == "/" {
		return out
	}
	return strings.Trim(out, "/")
}

// normalizePath prepares a request path for matching. Percent-encoded paths
// are decoded segment by segment, re-encoding any literal '/' a decode would
// introduce so encoded slashes never become segment separators. Trailing
// slashes are stripped except on the root path.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}

	if strings.IndexByte(path, '%') != -1 {
		segments := strings.Split(path, "/")
		for i, segment := range segments {
			decoded, err := url.PathUnescape(segment)
			if err != nil {
				continue
			}
			segments[i] = strings.ReplaceAll(decoded, "/", "%2f")
		}
		path = strings.Join(segments, "/")
	}

	if path != "/" {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// parseQuery parses a raw query string with standard form-encoding rules
// Repeated keys accumulate into a string slice
func parseQuery(query string) map[string]any {
	if query == "" {
		return nil
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Parse(query)

	parsed := make(map[string]any, args.Len())
	args.VisitAll(func(key, value []byte) {
		k := string(key)
		switch existing := parsed[k].(type) {
		case nil:
			parsed[k] = string(value)
		case string:
			parsed[k] = []string{existing, string(value)}
		case []string:
			parsed[k] = append(existing, string(value))
		}
	})
	return parsed
}

// mergeQuery folds parsed query parameters into a parse result under
// QueryKey. On key collision the query side wins only when queryWins is set;
// the fast path lets route-populated values take precedence instead.
func mergeQuery(result map[string]any, query map[string]any, queryWins bool) {
	if len(query) == 0 {
		return
	}

	existing, _ := result[QueryKey].(map[string]any)
	merged := make(map[string]any, len(query)+len(existing))
	if queryWins {
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range query {
			merged[k] = v
		}
	} else {
		for k, v := range query {
			merged[k] = v
		}
		for k, v := range existing {
			merged[k] = v
		}
	}
	result[QueryKey] = merged
}
