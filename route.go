package wayline

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Reserved parameter keys
const (
	// NameKey selects a named route when present in a reverse-match bundle
	NameKey = "_name"

	// QueryKey holds query-string parameters in parse results
	QueryKey = "?"

	// MiddlewareKey holds the middleware names a matched route declared
	MiddlewareKey = "_middleware"
)

// routingKeys are the parameter keys that participate in generated-name
// composition and reverse-match default checks
var routingKeys = [...]string{"plugin", "prefix", "controller", "action"}

// URLContext carries the request environment used when generating URLs
type URLContext struct {
	BasePath string
	Host     string
	Port     string
	Scheme   string
}

// segPart is one piece of a compound segment, either a literal run of text
// or a placeholder to capture
type segPart struct {
	name string // Placeholder name, empty for literals
	text string // Literal text, empty for placeholders
}

// routeSegment represents a single template segment between slashes
type routeSegment struct {
	raw      string    // Segment text as written in the template
	literal  bool      // True when the segment contains no placeholders
	catchAll bool      // True for trailing {*name} segments
	param    string    // Catch-all placeholder name
	parts    []segPart // Decomposition of placeholder segments
}

// PathRoute is a compiled URL template. It parses concrete paths into
// parameter bundles and generates paths from parameter bundles.
// Routes are immutable once compiled and safe for concurrent use.
type PathRoute struct {
	template     string
	staticPath   string
	generated    string
	defaults     map[string]any
	extensions   []string
	middleware   []string
	segments     []routeSegment
	placeholders map[string]bool
}

// RouteOption configures a route at compile time
type RouteOption func(*PathRoute)

// WithExtensions declares the extensions a route responds to
func WithExtensions(exts ...string) RouteOption {
	return func(r *PathRoute) {
		r.extensions = append(r.extensions, exts...)
	}
}

// WithRouteMiddleware attaches middleware names to the route
// The names surface under MiddlewareKey in every parse result
func WithRouteMiddleware(names ...string) RouteOption {
	return func(r *PathRoute) {
		r.middleware = append(r.middleware, names...)
	}
}

// NewRoute compiles a URL template into a route. Templates use literal
// segments, {name} placeholders, compound segments like {file}.{ext} and a
// trailing {*name} catch-all. Invalid templates panic, as route registration
// runs once during application bootstrap.
func NewRoute(template string, defaults H, opts ...RouteOption) *PathRoute {
	r, err := CompileRoute(template, defaults, opts...)
	if err != nil {
		panic("wayline.NewRoute: " + err.Error())
	}
	return r
}

// CompileRoute is the error-returning form of NewRoute, for templates that
// arrive from external input such as config files
func CompileRoute(template string, defaults H, opts ...RouteOption) (*PathRoute, error) {
	if template == "" {
		return nil, errors.New("template cannot be empty")
	} else if template[0] != '/' {
		return nil, fmt.Errorf("template must begin with '/' character, got %q", template)
	}

	if template != "/" {
		template = strings.TrimRight(template, "/")
		if template == "" {
			template = "/"
		}
	}

	r := &PathRoute{
		template:     template,
		defaults:     make(map[string]any, len(defaults)),
		placeholders: make(map[string]bool),
	}
	for k, v := range defaults {
		r.defaults[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.compile(); err != nil {
		return nil, err
	}
	r.staticPath = r.computeStaticPath()
	r.generated = composeName(
		r.namePart("plugin"),
		r.namePart("prefix"),
		r.namePart("controller"),
		r.namePart("action"),
	)
	return r, nil
}

// compile parses the template into matchable segments
func (r *PathRoute) compile() error {
	if r.template == "/" {
		return nil
	}

	rawSegments := strings.Split(r.template[1:], "/")
	for i, raw := range rawSegments {
		if raw == "" {
			return fmt.Errorf("empty segment in template %q", r.template)
		}

		if strings.HasPrefix(raw, "{*") {
			if !strings.HasSuffix(raw, "}") || len(raw) < 4 {
				return fmt.Errorf("malformed catch-all segment %q", raw)
			}
			if i != len(rawSegments)-1 {
				return errors.New("catch-all segments are only allowed at the end of the template")
			}
			name := raw[2 : len(raw)-1]
			r.placeholders[name] = true
			r.segments = append(r.segments, routeSegment{raw: raw, catchAll: true, param: name})
			continue
		}

		if strings.IndexByte(raw, '{') == -1 {
			if strings.IndexByte(raw, '}') != -1 {
				return fmt.Errorf("unmatched '}' in segment %q", raw)
			}
			r.segments = append(r.segments, routeSegment{raw: raw, literal: true})
			continue
		}

		parts, err := r.compileParts(raw)
		if err != nil {
			return err
		}
		r.segments = append(r.segments, routeSegment{raw: raw, parts: parts})
	}
	return nil
}

// compileParts splits a placeholder segment into literal and placeholder runs
func (r *PathRoute) compileParts(raw string) ([]segPart, error) {
	var parts []segPart
	pos := 0
	for pos < len(raw) {
		open := strings.IndexByte(raw[pos:], '{')
		if open == -1 {
			parts = append(parts, segPart{text: raw[pos:]})
			break
		}
		if open > 0 {
			parts = append(parts, segPart{text: raw[pos : pos+open]})
			pos += open
		}
		closing := strings.IndexByte(raw[pos:], '}')
		if closing == -1 {
			return nil, fmt.Errorf("unmatched '{' in segment %q", raw)
		}
		name := raw[pos+1 : pos+closing]
		if name == "" {
			return nil, fmt.Errorf("empty placeholder name in segment %q", raw)
		}
		r.placeholders[name] = true
		parts = append(parts, segPart{name: name})
		pos += closing + 1
	}
	return parts, nil
}

// computeStaticPath returns the longest literal prefix of the template,
// ending on a segment boundary
func (r *PathRoute) computeStaticPath() string {
	var b strings.Builder
	for _, seg := range r.segments {
		if !seg.literal {
			break
		}
		b.WriteByte('/')
		b.WriteString(seg.raw)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// namePart resolves one routing key into its generated-name component.
// A template placeholder means any value can match, so the wildcard form is
// used; a fixed default contributes its lowercased literal.
func (r *PathRoute) namePart(key string) string {
	if r.placeholders[key] {
		return "_" + key
	}
	if v, ok := r.defaults[key]; ok {
		if s := stringify(v); s != "" {
			return strings.ToLower(s)
		}
	}
	if key == "plugin" || key == "prefix" {
		return ""
	}
	return "_" + key
}

// Name returns the generated name, derived from the template structure and
// defaults in plugin.prefix:controller:action form
func (r *PathRoute) Name() string { return r.generated }

// Template returns the full pattern the route was compiled from
func (r *PathRoute) Template() string { return r.template }

// StaticPath returns the longest literal prefix of the template
func (r *PathRoute) StaticPath() string { return r.staticPath }

// Extensions returns the extensions declared for this route
func (r *PathRoute) Extensions() []string { return r.extensions }

// Defaults returns the route's default parameters
// The returned map must not be modified
func (r *PathRoute) Defaults() map[string]any { return r.defaults }

// Parse matches a normalized path against the template. It returns the
// route defaults overlaid with captured placeholder values, or nil when the
// path does not match.
func (r *PathRoute) Parse(path string) map[string]any {
	var parts []string
	if path != "/" {
		parts = strings.Split(strings.TrimPrefix(path, "/"), "/")
	}

	captured := make(map[string]any)
	i := 0
	for _, seg := range r.segments {
		if seg.catchAll {
			captured[seg.param] = strings.Join(parts[i:], "/")
			i = len(parts)
			break
		}
		if i >= len(parts) {
			return nil
		}
		if seg.literal {
			if parts[i] != seg.raw {
				return nil
			}
		} else if !matchSegment(seg.parts, parts[i], captured) {
			return nil
		}
		i++
	}
	if i != len(parts) {
		return nil
	}

	result := make(map[string]any, len(r.defaults)+len(captured)+1)
	for k, v := range r.defaults {
		result[k] = v
	}
	for k, v := range captured {
		result[k] = v
	}
	if len(r.middleware) > 0 {
		result[MiddlewareKey] = append([]string(nil), r.middleware...)
	}
	return result
}

// matchSegment evaluates a single path segment against a compiled compound
// pattern, capturing placeholder values. A placeholder value runs until the
// next literal piece of the pattern, or the end of the segment.
func matchSegment(parts []segPart, segment string, captured map[string]any) bool {
	pos := 0
	for pi, part := range parts {
		if part.name == "" {
			if !strings.HasPrefix(segment[pos:], part.text) {
				return false
			}
			pos += len(part.text)
			continue
		}

		end := len(segment)
		if pi+1 < len(parts) && parts[pi+1].name == "" {
			next := strings.Index(segment[pos:], parts[pi+1].text)
			if next == -1 {
				return false
			}
			end = pos + next
		}
		if end <= pos {
			return false
		}
		captured[part.name] = segment[pos:end]
		pos = end
	}
	return pos == len(segment)
}

// Match generates a path from a parameter bundle, or returns false when the
// bundle does not satisfy the route. Routing keys fixed by the route's
// defaults must agree with the supplied values; placeholder values are
// substituted into the template; leftover parameters render as a query
// string in sorted key order.
func (r *PathRoute) Match(params map[string]any, ctx URLContext) (string, bool) {
	for _, key := range routingKeys {
		if r.placeholders[key] {
			continue
		}
		def, hasDef := r.defaults[key]
		val, hasVal := params[key]
		if b, isBool := val.(bool); isBool && !b {
			// A false plugin or prefix means not-present, never the word "false"
			hasVal = false
		}
		if !hasVal || stringify(val) == "" {
			if hasDef && stringify(def) != "" {
				return "", false
			}
			continue
		}
		if !hasDef || !strings.EqualFold(stringify(val), stringify(def)) {
			return "", false
		}
	}

	consumed := map[string]struct{}{NameKey: {}}
	for _, key := range routingKeys {
		consumed[key] = struct{}{}
	}

	base := strings.TrimSuffix(ctx.BasePath, "/")
	var b strings.Builder
	b.WriteString(base)
	for _, seg := range r.segments {
		b.WriteByte('/')
		if seg.literal {
			b.WriteString(seg.raw)
			continue
		}
		if seg.catchAll {
			v, ok := params[seg.param]
			if !ok {
				v, ok = r.defaults[seg.param]
			}
			if !ok {
				return "", false
			}
			b.WriteString(stringify(v))
			consumed[seg.param] = struct{}{}
			continue
		}
		for _, part := range seg.parts {
			if part.name == "" {
				b.WriteString(part.text)
				continue
			}
			v, ok := params[part.name]
			if !ok {
				v, ok = r.defaults[part.name]
			}
			s := stringify(v)
			if !ok || s == "" {
				return "", false
			}
			b.WriteString(s)
			consumed[part.name] = struct{}{}
		}
	}

	path := b.String()
	if path == base {
		path = base + "/"
	}

	qs := url.Values{}
	for k, v := range params {
		if _, ok := consumed[k]; ok {
			continue
		}
		if k == QueryKey || strings.HasPrefix(k, "_") {
			continue
		}
		if def, ok := r.defaults[k]; ok {
			// Pass-through defaults must agree, they cannot appear in the URL
			if stringify(def) != stringify(v) {
				return "", false
			}
			continue
		}
		addQueryValue(qs, k, v)
	}
	if qm, ok := params[QueryKey].(map[string]any); ok {
		for k, v := range qm {
			addQueryValue(qs, k, v)
		}
	}
	if len(qs) > 0 {
		path += "?" + qs.Encode()
	}
	return path, true
}

// addQueryValue appends a parameter to the query values, flattening slices
func addQueryValue(qs url.Values, key string, value any) {
	switch v := value.(type) {
	case []string:
		for _, s := range v {
			qs.Add(key, s)
		}
	case []any:
		for _, s := range v {
			qs.Add(key, stringify(s))
		}
	default:
		qs.Add(key, stringify(value))
	}
}

// stringify renders a parameter value for comparison or URL output
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}
