package wayline

import "strings"

// Wildcard placeholders used in generated route names
const (
	wildController = "_controller"
	wildAction     = "_action"
	wildPlugin     = "_plugin"
	wildPrefix     = "_prefix"
)

// composeName assembles a generated route name from its components
// The plugin joins with '.', the prefix with ':', giving names like
// blog.admin:posts:view
func composeName(plugin, prefix, controller, action string) string {
	name := controller + ":" + action
	if prefix != "" {
		name = prefix + ":" + name
	}
	if plugin != "" {
		name = plugin + "." + name
	}
	return name
}

// optionalNameKey reads an optional routing key from a parameter bundle
// Absent values and a literal false both collapse to not-present
func optionalNameKey(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok {
		return ""
	}
	if b, isBool := v.(bool); isBool && !b {
		return ""
	}
	return strings.ToLower(stringify(v))
}

// candidateNames derives the ordered list of generated names to try when
// reverse-matching a parameter bundle, from most to least specific. Each of
// controller, action, plugin and prefix toggles independently between its
// literal value and its wildcard form; the enumeration is fixed, with prefix
// varying slowest and action fastest.
func candidateNames(params map[string]any) []string {
	controller := strings.ToLower(stringify(params["controller"]))
	action := strings.ToLower(stringify(params["action"]))
	plugin := optionalNameKey(params, "plugin")
	prefix := optionalNameKey(params, "prefix")

	controllers := [2]string{controller, wildController}
	actions := [2]string{action, wildAction}

	switch {
	case plugin == "" && prefix == "":
		names := make([]string, 0, 4)
		for _, c := range controllers {
			for _, a := range actions {
				names = append(names, composeName("", "", c, a))
			}
		}
		return names

	case prefix == "":
		names := make([]string, 0, 8)
		for _, p := range [2]string{plugin, wildPlugin} {
			for _, c := range controllers {
				for _, a := range actions {
					names = append(names, composeName(p, "", c, a))
				}
			}
		}
		return names

	case plugin == "":
		names := make([]string, 0, 8)
		for _, pre := range [2]string{prefix, wildPrefix} {
			for _, c := range controllers {
				for _, a := range actions {
					names = append(names, composeName("", pre, c, a))
				}
			}
		}
		return names

	default:
		names := make([]string, 0, 16)
		for _, pre := range [2]string{prefix, wildPrefix} {
			for _, p := range [2]string{plugin, wildPlugin} {
				for _, c := range controllers {
					for _, a := range actions {
						names = append(names, composeName(p, pre, c, a))
					}
				}
			}
		}
		return names
	}
}
