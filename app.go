package wayline

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/valyala/fasthttp"
)

const (
	// defaultCacheSize is the maximum number of entries in the dispatch cache
	defaultCacheSize = 10000

	// defaultConcurrency is the maximum number of concurrent connections
	defaultConcurrency = 256 * 1024

	// defaultMaxRequestURLLength is the maximum request URL length
	defaultMaxRequestURLLength = 2048

	// defaultReadBufferSize is the default size of the read buffer
	defaultReadBufferSize = 8192
)

// Settings struct holds server configuration options
type Settings struct {
	// ServerName to send in response headers
	ServerName string // Default: "Wayline"

	// BasePath is prepended to every generated URL
	BasePath string // Default: ""

	// Enables case-insensitive routing
	CaseInSensitive bool // Default: false

	// Maximum size of the LRU cache used to skip repeated dispatch lookups
	CacheSize int // Default: 10000

	// Disables the LRU dispatch cache
	DisableCaching bool // Default: false

	// Enables automatic recovery from panics during handler execution
	// by responding with HTTP 500 and logging the error
	AutoRecover bool // Default: true

	// Maximum request URL length
	MaxRequestURLLength int // Default: 2048

	// Maximum number of concurrent connections
	Concurrency int // Default: 256 * 1024

	// Per-connection buffer size for request reading
	ReadBufferSize int // Default: 8192

	// Maximum time allowed to read the full request including body
	ReadTimeout time.Duration // Default: 0

	// Maximum duration before timing out writes of the response
	WriteTimeout time.Duration // Default: 0

	// Maximum time to wait for the next request when keep-alive is enabled
	IdleTimeout time.Duration // Default: 0

	// Disables keep-alive connections
	DisableKeepalive bool // Default: false

	// Suppresses the startup message in console output
	DisableStartupMessage bool // Default: false

	// Disables HTTP transaction logging
	DisableLogging bool // Default: false

	// Format string for log timestamps
	LogTimeFormat string // Default: "2006/01/02 15:04:05"

	// Prefix for log messages
	LogPrefix string // Default: ""

	// Controls whether the caller information is included in logs
	LogReportCaller bool // Default: false
}

// Wayline serves a route collection over HTTP. Matched requests run their
// route's middleware chain followed by the dispatcher.
type Wayline struct {
	httpServer *fasthttp.Server
	collection *Collection
	cache      *lru.Cache[string, map[string]any]
	dispatcher Middleware
	settings   *Settings
	pool       sync.Pool
	address    string
}

// Default returns a new instance of Wayline with default settings
func Default(settings ...*Settings) *Wayline {
	if len(settings) > 0 {
		return createInstance(settings[0])
	}

	return createInstance(&Settings{
		AutoRecover: true,
	})
}

// New returns a new quiet instance of Wayline, suitable for tests and tools
func New(settings ...*Settings) *Wayline {
	if len(settings) > 0 {
		return createInstance(settings[0])
	}

	return createInstance(&Settings{
		AutoRecover:           false,
		DisableStartupMessage: true,
		DisableLogging:        true,
	})
}

// createInstance creates a new instance of Wayline with provided settings
func createInstance(settings *Settings) *Wayline {
	w := &Wayline{
		collection: NewCollection(),
		settings:   settings,
	}

	w.setDefaultSettings()
	setLoggerSettings(w.settings)
	w.collection.caseInsensitive = w.settings.CaseInSensitive

	cacheSize := w.settings.CacheSize
	if w.settings.DisableCaching {
		cacheSize = 1
	}

	cache, err := lru.New[string, map[string]any](cacheSize)
	if err != nil {
		log.Error(ErrCacheCreationFailed, "error", err, "requestedSize", cacheSize)
		cache, _ = lru.New[string, map[string]any](10)
	}
	w.cache = cache

	w.pool = sync.Pool{
		New: func() any { return new(Context) },
	}
	w.httpServer = w.newHTTPServer()
	return w
}

// setDefaultSettings sets default values for settings
func (w *Wayline) setDefaultSettings() {
	if w.settings.CacheSize <= 0 {
		w.settings.CacheSize = defaultCacheSize
	}

	if w.settings.MaxRequestURLLength <= 0 || w.settings.MaxRequestURLLength > defaultMaxRequestURLLength {
		w.settings.MaxRequestURLLength = defaultMaxRequestURLLength
	}

	if w.settings.Concurrency <= 0 {
		w.settings.Concurrency = defaultConcurrency
	}

	if w.settings.ReadBufferSize == 0 {
		w.settings.ReadBufferSize = defaultReadBufferSize
	}
}

// newHTTPServer creates and configures a new fasthttp server instance
func (w *Wayline) newHTTPServer() *fasthttp.Server {
	serverName := "Wayline"
	if w.settings.ServerName != "" {
		serverName = w.settings.ServerName
	}

	return &fasthttp.Server{
		Name:             serverName,
		Handler:          w.Handler,
		Concurrency:      w.settings.Concurrency,
		DisableKeepalive: w.settings.DisableKeepalive,
		ReadBufferSize:   w.settings.ReadBufferSize,
		WriteBufferSize:  w.settings.ReadBufferSize,
		ReadTimeout:      w.settings.ReadTimeout,
		WriteTimeout:     w.settings.WriteTimeout,
		IdleTimeout:      w.settings.IdleTimeout,
	}
}

// Collection returns the route collection served by this instance
func (w *Wayline) Collection() *Collection {
	return w.collection
}

// Dispatcher sets the handler that runs after a route's middleware chain
// When unset, matched requests respond with their parameter bundle as JSON
func (w *Wayline) Dispatcher(d Middleware) {
	w.dispatcher = d
}

// Connect compiles and registers a route on the collection
func (w *Wayline) Connect(template string, defaults H, opts ...AddOption) (*PathRoute, error) {
	route := NewRoute(w.collection.normalizeTemplate(template), defaults)
	if err := w.collection.Add(route, opts...); err != nil {
		return nil, err
	}
	return route, nil
}

// URL reverse-matches a parameter bundle into a URL string
func (w *Wayline) URL(params H) (string, error) {
	return w.collection.Match(params, URLContext{BasePath: w.settings.BasePath})
}

// acquireCtx retrieves a context instance from the pool and initializes it
func (w *Wayline) acquireCtx(fctx *fasthttp.RequestCtx) *Context {
	ctx := w.pool.Get().(*Context)
	ctx.requestCtx = fctx
	ctx.params = nil
	ctx.handlers = ctx.handlers[:0]
	ctx.index = -1
	return ctx
}

// releaseCtx returns a context to the pool after clearing its state
func (w *Wayline) releaseCtx(ctx *Context) {
	ctx.requestCtx = nil
	ctx.params = nil
	w.pool.Put(ctx)
}

// Handler processes all incoming HTTP requests
func (w *Wayline) Handler(fctx *fasthttp.RequestCtx) {
	var startTime time.Time
	if !w.settings.DisableLogging {
		startTime = time.Now()
	}

	ctx := w.acquireCtx(fctx)
	defer w.releaseCtx(ctx)

	if w.settings.AutoRecover {
		defer w.recoverFromPanic(fctx)
	}

	path := getString(fctx.URI().PathOriginal())
	if len(path) > w.settings.MaxRequestURLLength {
		fctx.Error("Request URL too long", fasthttp.StatusRequestURITooLong)
		return
	}
	if w.settings.CaseInSensitive {
		path = strings.ToLower(path)
	}
	query := getString(fctx.URI().QueryString())

	if !w.handleCache(path, query, ctx) && !w.handleRoute(path, query, ctx) {
		fctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
	}

	if !w.settings.DisableLogging {
		logHTTPTransaction(fctx, time.Since(startTime))
	}
}

// recoverFromPanic catches panics raised during request processing
// It logs the error and returns a 500 Internal Server Error response
func (w *Wayline) recoverFromPanic(fctx *fasthttp.RequestCtx) {
	if rcv := recover(); rcv != nil {
		log.Error(ErrRecoveredFromError, "error", rcv)
		fctx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
	}
}

// handleCache attempts to serve a request from the dispatch cache
// Only requests without a query string are cached, their parameter bundles
// are stable per path on a frozen collection
func (w *Wayline) handleCache(path, query string, ctx *Context) bool {
	if w.settings.DisableCaching || query != "" {
		return false
	}

	params, ok := w.cache.Get(path)
	if !ok {
		return false
	}
	return w.dispatch(ctx, cloneParams(params))
}

// handleRoute resolves a request through the collection and caches the
// result for future requests
func (w *Wayline) handleRoute(path, query string, ctx *Context) bool {
	params, err := w.collection.ParseRequest(Request{Path: path, Query: query})
	if err != nil {
		return false
	}

	if !w.settings.DisableCaching && query == "" {
		w.cache.Add(path, cloneParams(params))
	}
	return w.dispatch(ctx, params)
}

// dispatch resolves the route's middleware names and runs the chain
func (w *Wayline) dispatch(ctx *Context, params map[string]any) bool {
	ctx.params = params

	if names, ok := params[MiddlewareKey].([]string); ok {
		resolved, err := w.collection.GetMiddleware(names)
		if err != nil {
			log.Error(ErrMiddlewareResolve, "error", err)
			ctx.requestCtx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
			return true
		}
		ctx.handlers = append(ctx.handlers, resolved...)
	}

	if w.dispatcher != nil {
		ctx.handlers = append(ctx.handlers, w.dispatcher)
	} else {
		ctx.handlers = append(ctx.handlers, defaultDispatcher)
	}

	ctx.Next()
	return true
}

// defaultDispatcher responds with the resolved parameter bundle as JSON
func defaultDispatcher(c *Context) {
	body, err := sonic.ConfigFastest.Marshal(c.params)
	if err != nil {
		log.Error(ErrDispatchFailed, "error", err)
		c.requestCtx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
		return
	}
	c.requestCtx.SetContentType("application/json; charset=utf-8")
	c.requestCtx.SetBody(body)
}

// cloneParams copies a parameter bundle so cached entries stay immutable
func cloneParams(params map[string]any) map[string]any {
	cloned := make(map[string]any, len(params))
	for k, v := range params {
		cloned[k] = v
	}
	return cloned
}

// Run freezes the route collection and starts the HTTP server
func (w *Wayline) Run(addr ...string) error {
	portStr := ""
	if len(addr) > 0 {
		portStr = addr[0]
	}
	address := resolveAddress(portStr)

	w.collection.Freeze()

	ln, err := net.Listen("tcp4", address)
	if err != nil {
		return err
	}
	w.address = address
	if !w.settings.DisableStartupMessage {
		log.Infof("Wayline started on http://%s", address)
	}
	return w.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (w *Wayline) Shutdown() error {
	err := w.httpServer.Shutdown()
	if err == nil && w.address != "" {
		log.Infof("Wayline stopped listening on %s", w.address)
		return nil
	}
	return err
}
