package wayline

import "github.com/valyala/fasthttp"

// Context carries a single request through its middleware chain and into the
// dispatcher. Instances are pooled and must not be retained after dispatch.
type Context struct {
	requestCtx *fasthttp.RequestCtx
	params     map[string]any
	handlers   middlewareChain
	index      int
}

// Next executes the remaining handlers in the chain
// Middleware calls it to pass control onward
func (c *Context) Next() {
	c.index++
	for c.index < len(c.handlers) {
		c.handlers[c.index](c)
		c.index++
	}
}

// Abort stops the chain; pending handlers are skipped
func (c *Context) Abort() {
	c.index = len(c.handlers)
}

// IsAborted reports whether the chain was stopped early
func (c *Context) IsAborted() bool {
	return c.index >= len(c.handlers)
}

// Param returns a single resolved route parameter
func (c *Context) Param(key string) any {
	return c.params[key]
}

// Params returns the full parameter bundle the route resolved to
func (c *Context) Params() map[string]any {
	return c.params
}

// Context returns the underlying fasthttp request context
func (c *Context) Context() *fasthttp.RequestCtx {
	return c.requestCtx
}
