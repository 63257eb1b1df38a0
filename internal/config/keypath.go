package config

import (
	"reflect"
	"strings"
)

// schema maps every dotted key reachable in Config, derived from the yaml
// tags, to whether it holds a nested section.
var schema = buildSchema(reflect.TypeOf(Config{}), "", map[string]bool{})

func buildSchema(t reflect.Type, prefix string, out map[string]bool) map[string]bool {
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := prefix + name
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		section := ft.Kind() == reflect.Struct
		out[key] = section
		if section {
			buildSchema(ft, key+".", out)
		}
	}
	return out
}

// ParseConfigPath splits a dotted key such as "gateway.auth.token" and
// checks it against the config schema, so typos fail instead of writing
// keys nothing reads.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	if _, ok := schema[raw]; !ok {
		return nil, &ConfigError{Message: "unknown config key: " + raw}
	}
	return parts, nil
}

// IsSection reports whether a dotted key names a nested section rather
// than a value.
func IsSection(key string) bool {
	return schema[key]
}

// GetValueAtPath walks a nested map along path.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	var current any = root
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath stores value at path, replacing anything on the way that
// is not a map.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value at path and prunes sections left
// empty. It reports whether anything was removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	if len(path) == 0 {
		return false
	}
	head := path[0]
	if len(path) == 1 {
		if _, ok := root[head]; !ok {
			return false
		}
		delete(root, head)
		return true
	}
	child, ok := root[head].(map[string]any)
	if !ok || !UnsetValueAtPath(child, path[1:]) {
		return false
	}
	if len(child) == 0 {
		delete(root, head)
	}
	return true
}
