package wayline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// RouteConfig describes one declarative route entry
type RouteConfig struct {
	Template   string         `yaml:"template" toml:"template"`
	Name       string         `yaml:"name" toml:"name"`
	Defaults   map[string]any `yaml:"defaults" toml:"defaults"`
	Extensions []string       `yaml:"extensions" toml:"extensions"`
	Middleware []string       `yaml:"middleware" toml:"middleware"`
}

// MiddlewareGroupConfig describes one declarative middleware group
// Members must already be registered, or defined earlier in the same file
type MiddlewareGroupConfig struct {
	Name       string   `yaml:"name" toml:"name"`
	Middleware []string `yaml:"middleware" toml:"middleware"`
}

// Config is the root of a declarative route table file
type Config struct {
	Routes           []RouteConfig           `yaml:"routes" toml:"routes"`
	MiddlewareGroups []MiddlewareGroupConfig `yaml:"middlewareGroups" toml:"middlewareGroups"`
}

// LoadConfig reads a route table from a YAML or TOML file, chosen by
// extension
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFormat, filepath.Ext(path))
	}
	return cfg, nil
}

// Apply registers the configured groups and routes on a collection. All
// registration invariants hold for config input exactly as for programmatic
// input: duplicate explicit names and unknown group members fail here.
func (cfg *Config) Apply(c *Collection) error {
	for _, group := range cfg.MiddlewareGroups {
		if err := c.MiddlewareGroup(group.Name, group.Middleware); err != nil {
			return err
		}
	}

	for _, rc := range cfg.Routes {
		var routeOpts []RouteOption
		if len(rc.Extensions) > 0 {
			routeOpts = append(routeOpts, WithExtensions(rc.Extensions...))
		}
		if len(rc.Middleware) > 0 {
			routeOpts = append(routeOpts, WithRouteMiddleware(rc.Middleware...))
		}

		var addOpts []AddOption
		if rc.Name != "" {
			addOpts = append(addOpts, WithName(rc.Name))
		}

		route, err := CompileRoute(c.normalizeTemplate(rc.Template), rc.Defaults, routeOpts...)
		if err != nil {
			return fmt.Errorf("route %q: %w", rc.Template, err)
		}
		if err := c.Add(route, addOpts...); err != nil {
			return err
		}
	}
	return nil
}
