package wayline

import (
	"errors"
	"fmt"
)

// Logging errors
const (
	ErrEmptyPortFormat     = "Empty port format, using default port %s"
	ErrInvalidPortFormat   = "Invalid port format, using default port %s"
	ErrCacheCreationFailed = "Cache creation failed"
	ErrRecoveredFromError  = "Recovered from error"
	ErrMiddlewareResolve   = "Middleware resolution failed"
	ErrDispatchFailed      = "Dispatch failed"
)

// Registry errors
var (
	ErrCollectionFrozen         = errors.New("route collection is frozen")
	ErrUnknownMiddleware        = errors.New("middleware or middleware group is not registered")
	ErrDuplicateMiddlewareGroup = errors.New("middleware group already exists")
	ErrMiddlewareCycle          = errors.New("middleware group references itself")
	ErrUnsupportedConfigFormat  = errors.New("unsupported route config format")
)

// DuplicateNamedRouteError is returned when a route is added under an
// explicit name that is already taken. It carries both templates so the
// caller can report the two conflicting registrations.
type DuplicateNamedRouteError struct {
	Name     string // Explicit route name that collided
	Template string // Template of the route being added
	Existing string // Template of the route already registered
}

func (e *DuplicateNamedRouteError) Error() string {
	return fmt.Sprintf(
		"a route named %q has already been connected to %q, cannot connect %q",
		e.Name, e.Existing, e.Template,
	)
}

// MissingRouteError is returned when no route satisfies a lookup, in either
// direction. It is an expected condition and usually maps to a 404.
type MissingRouteError struct {
	Path   string         // Request path that matched nothing (dispatch direction)
	Name   string         // Explicit route name that was attempted (reverse direction)
	Params map[string]any // Parameter bundle that was attempted (reverse direction)
}

func (e *MissingRouteError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("a route matching %q could not be found", e.Path)
	case e.Name != "" && e.Params != nil:
		return fmt.Sprintf("a named route %q was found but %v did not satisfy its pattern", e.Name, e.Params)
	case e.Name != "":
		return fmt.Sprintf("a named route %q could not be found", e.Name)
	default:
		return fmt.Sprintf("a route matching %v could not be found", e.Params)
	}
}
