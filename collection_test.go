package wayline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionAdd(t *testing.T) {
	c := NewCollection()

	home := NewRoute("/", H{"controller": "Home", "action": "index"})
	require.NoError(t, c.Add(home))

	view := NewRoute("/posts/{id}", H{"controller": "Posts", "action": "view"}, WithExtensions("json"))
	require.NoError(t, c.Add(view, WithName("post_view")))

	assert.Len(t, c.routeTable["posts:view"], 1, "Route should be indexed by generated name")
	assert.Same(t, view, c.named["post_view"].(*PathRoute), "Route should be indexed by explicit name")
	assert.Equal(t, []string{"json"}, c.Extensions(), "Extensions should accumulate")

	assert.Contains(t, c.staticPaths, "/", "Fully literal route should enter the static index")
	assert.NotContains(t, c.staticPaths, "/posts", "Parameterized route should not enter the static index")
	assert.Contains(t, c.paths, "/posts", "Every route should enter the prefix index")
}

func TestCollectionDuplicateName(t *testing.T) {
	c := NewCollection()

	require.NoError(t, c.Add(NewRoute("/login", H{"controller": "Users", "action": "login"}), WithName("login")))

	err := c.Add(NewRoute("/signin", H{"controller": "Users", "action": "signin"}), WithName("login"))
	require.Error(t, err, "Duplicate explicit name should fail")

	var dup *DuplicateNamedRouteError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "login", dup.Name)
	assert.Equal(t, "/login", dup.Existing, "Error should carry the existing template")
	assert.Equal(t, "/signin", dup.Template, "Error should carry the conflicting template")

	// Generated-name collisions are allowed
	require.NoError(t, c.Add(NewRoute("/users/login", H{"controller": "Users", "action": "login"})))
	assert.Len(t, c.routeTable["users:login"], 2)
}

func TestCollectionExtensionsUnion(t *testing.T) {
	c := NewCollection()

	require.NoError(t, c.Add(NewRoute("/a", nil, WithExtensions("json", "xml"))))
	require.NoError(t, c.Add(NewRoute("/b", nil, WithExtensions("json", "rss"))))

	assert.Equal(t, []string{"json", "rss", "xml"}, c.Extensions(), "Extensions should union and sort")
}

func TestParseRequestStaticFastPath(t *testing.T) {
	c := NewCollection()

	// The parameterized route registers first, the literal route still wins
	require.NoError(t, c.Add(NewRoute("/{page}", H{"controller": "Pages", "action": "display"})))
	require.NoError(t, c.Add(NewRoute("/about", H{"controller": "Pages", "action": "about"})))

	result, err := c.ParseRequest(Request{Path: "/about"})
	require.NoError(t, err)
	assert.Equal(t, "about", result["action"], "Exact static match should win over the prefix scan")
}

func TestParseRequestLongestPrefix(t *testing.T) {
	c := NewCollection()

	require.NoError(t, c.Add(NewRoute("/api/{ver}/{resource}", H{"controller": "Api", "action": "any"})))
	require.NoError(t, c.Add(NewRoute("/api/v2/{resource}", H{"controller": "ApiV2", "action": "index"})))

	result, err := c.ParseRequest(Request{Path: "/api/v2/users"})
	require.NoError(t, err)
	assert.Equal(t, "ApiV2", result["controller"], "Longest prefix bucket should be tried first")
	assert.Equal(t, "users", result["resource"])
}

func TestParseRequestPercentDecoding(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/files/{name}", H{"controller": "Files", "action": "view"})))

	result, err := c.ParseRequest(Request{Path: "/files/a%2fb"})
	require.NoError(t, err)
	assert.Equal(t, "a%2fb", result["name"], "Encoded slash should stay a single segment")

	result, err = c.ParseRequest(Request{Path: "/files/a%20b"})
	require.NoError(t, err)
	assert.Equal(t, "a b", result["name"], "Other escapes should decode")
}

func TestParseRequestTrailingSlash(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/posts", H{"controller": "Posts", "action": "index"})))
	require.NoError(t, c.Add(NewRoute("/", H{"controller": "Home", "action": "index"})))

	withSlash, err := c.ParseRequest(Request{Path: "/posts/"})
	require.NoError(t, err)
	withoutSlash, err := c.ParseRequest(Request{Path: "/posts"})
	require.NoError(t, err)
	assert.Equal(t, withoutSlash, withSlash, "Trailing slashes should not affect dispatch")

	root, err := c.ParseRequest(Request{Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, "Home", root["controller"], "Root path should never be stripped")
}

func TestParseRequestQueryMerge(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/q", H{
		"controller": "Search",
		"action":     "index",
		QueryKey:     map[string]any{"a": "route"},
	})))
	require.NoError(t, c.Add(NewRoute("/q/{term}", H{
		"controller": "Search",
		"action":     "term",
		QueryKey:     map[string]any{"a": "route"},
	})))

	// Fast path: route-supplied query values win
	result, err := c.ParseRequest(Request{Path: "/q", Query: "a=query&b=2"})
	require.NoError(t, err)
	merged := result[QueryKey].(map[string]any)
	assert.Equal(t, "route", merged["a"], "Route-supplied query value should win on the fast path")
	assert.Equal(t, "2", merged["b"])

	// Fallback path: query values overwrite
	result, err = c.ParseRequest(Request{Path: "/q/golang", Query: "a=query"})
	require.NoError(t, err)
	merged = result[QueryKey].(map[string]any)
	assert.Equal(t, "query", merged["a"], "Query value should overwrite on the fallback path")
}

func TestParseRequestRepeatedQueryKeys(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/q", H{"controller": "Search", "action": "index"})))

	result, err := c.ParseRequest(Request{Path: "/q", Query: "tag=a&tag=b"})
	require.NoError(t, err)
	merged := result[QueryKey].(map[string]any)
	assert.Equal(t, []string{"a", "b"}, merged["tag"], "Repeated keys should accumulate")
}

func TestParseRequestMissing(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/posts", H{"controller": "Posts", "action": "index"})))

	_, err := c.ParseRequest(Request{Path: "/missing"})
	require.Error(t, err)

	var missing *MissingRouteError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "/missing", missing.Path, "Error should name the unmatched path")
}

func TestMatchByName(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(
		NewRoute("/login", H{"controller": "Users", "action": "login"}),
		WithName("login"),
	))

	out, err := c.Match(map[string]any{NameKey: "login"}, URLContext{})
	require.NoError(t, err)
	assert.Equal(t, "login", out)

	_, err = c.Match(map[string]any{NameKey: "logout"}, URLContext{})
	var missing *MissingRouteError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "logout", missing.Name)
}

func TestMatchByNameUnsatisfied(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(
		NewRoute("/feed", H{"controller": "Posts", "action": "index", "format": "rss"}),
		WithName("feed"),
	))

	_, err := c.Match(map[string]any{NameKey: "feed", "format": "atom"}, URLContext{})
	require.Error(t, err, "Found name with unsatisfiable params should fail")

	var missing *MissingRouteError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "feed", missing.Name)
	assert.NotNil(t, missing.Params, "Error should carry the attempted bundle")
}

func TestMatchStructural(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/posts/{id}", H{"controller": "Posts", "action": "view"})))
	require.NoError(t, c.Add(NewRoute("/{controller}/{action}", nil)))

	out, err := c.Match(map[string]any{"controller": "Posts", "action": "view", "id": 3}, URLContext{})
	require.NoError(t, err)
	assert.Equal(t, "posts/3", out, "Specific candidate should win over the wildcard route")

	out, err = c.Match(map[string]any{"controller": "pages", "action": "list"}, URLContext{})
	require.NoError(t, err)
	assert.Equal(t, "pages/list", out, "Wildcard candidate should catch unknown pairs")

	_, err = c.Match(map[string]any{"controller": "pages"}, URLContext{})
	require.Error(t, err, "Missing action should fail")
}

func TestMatchStructuralRoot(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/", H{"controller": "Home", "action": "index"})))

	out, err := c.Match(map[string]any{"controller": "Home", "action": "index"}, URLContext{})
	require.NoError(t, err)
	assert.Equal(t, "/", out, "Root path should be returned verbatim")
}

func TestMatchNamedEqualsStructural(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(
		NewRoute("/login", H{"controller": "Users", "action": "login"}),
		WithName("login"),
	))

	byName, err := c.Match(map[string]any{NameKey: "login", "id": 5}, URLContext{})
	require.NoError(t, err)

	structural, err := c.Match(map[string]any{"controller": "Users", "action": "login", "id": 5}, URLContext{})
	require.NoError(t, err)

	assert.Equal(t, structural, byName, "Named and structural lookups should generate the same URL")
	assert.Equal(t, "login?id=5", byName)
}

func TestReverseRoundTrip(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/posts/{id}", H{"controller": "Posts", "action": "view"})))

	params := map[string]any{"controller": "Posts", "action": "view", "id": "42"}
	out, err := c.Match(params, URLContext{})
	require.NoError(t, err)

	parsed, err := c.ParseRequest(Request{Path: "/" + out})
	require.NoError(t, err)
	assert.Equal(t, "Posts", parsed["controller"])
	assert.Equal(t, "view", parsed["action"])
	assert.Equal(t, "42", parsed["id"])
}

func TestCollectionRoutesOrder(t *testing.T) {
	c := NewCollection()
	api := NewRoute("/api/{x}", H{"controller": "Api", "action": "x"})
	apiV2 := NewRoute("/api/v2/{x}", H{"controller": "ApiV2", "action": "x"})
	posts := NewRoute("/posts", H{"controller": "Posts", "action": "index"})
	home := NewRoute("/", H{"controller": "Home", "action": "index"})

	for _, r := range []*PathRoute{home, api, apiV2, posts} {
		require.NoError(t, c.Add(r))
	}

	routes := c.Routes()
	require.Len(t, routes, 4)
	assert.Equal(t, "/posts", routes[0].Template(), "Keys should order descending")
	assert.Equal(t, "/api/v2/{x}", routes[1].Template())
	assert.Equal(t, "/api/{x}", routes[2].Template())
	assert.Equal(t, "/", routes[3].Template())
}

func TestCollectionNamed(t *testing.T) {
	c := NewCollection()
	login := NewRoute("/login", H{"controller": "Users", "action": "login"})
	require.NoError(t, c.Add(login, WithName("login")))

	named := c.Named()
	assert.Len(t, named, 1)
	assert.Same(t, login, named["login"].(*PathRoute))

	// Mutating the copy must not touch the registry
	delete(named, "login")
	assert.Len(t, c.Named(), 1)
}

func TestCollectionFreeze(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/posts", H{"controller": "Posts", "action": "index"})))

	assert.False(t, c.Frozen())
	c.Freeze()
	assert.True(t, c.Frozen())

	err := c.Add(NewRoute("/late", nil))
	assert.ErrorIs(t, err, ErrCollectionFrozen, "Add after freeze should fail")

	err = c.RegisterMiddleware("late", func(ctx *Context) {})
	assert.ErrorIs(t, err, ErrCollectionFrozen)

	err = c.MiddlewareGroup("late", nil)
	assert.ErrorIs(t, err, ErrCollectionFrozen)

	// Lookups still work on the frozen collection
	result, err := c.ParseRequest(Request{Path: "/posts"})
	require.NoError(t, err)
	assert.Equal(t, "Posts", result["controller"])
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"/posts/", "/posts"},
		{"/posts///", "/posts"},
		{"/files/a%2fb", "/files/a%2fb"},
		{"/files/a%2Fb", "/files/a%2fb"},
		{"/files/a%20b", "/files/a b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.in), "normalizePath(%q)", tt.in)
	}
}

func TestCollectionDumpJSON(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(NewRoute("/posts/{id}", H{"controller": "Posts", "action": "view"})))
	require.NoError(t, c.Add(NewRoute("/", H{"controller": "Home", "action": "index"})))

	raw, err := c.DumpJSON()
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, `"template":"/posts/{id}"`)
	assert.Contains(t, s, `"name":"posts:view"`)
	assert.Less(t, strings.Index(s, `"/posts/{id}"`), strings.Index(s, `"template":"/"`),
		"Dump should follow Routes() order")
}
