package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/school"
)

// FieldType is the declared type of a tool argument.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
)

// Field declares one tool argument.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Default     any
	Description string
	Enum        []string
}

// ToolEnv is what a handler may rely on besides its arguments. Scope is
// always derived from Caller.
type ToolEnv struct {
	Caller domain.Caller
	Data   school.Gateway
	Now    time.Time
}

// ToolHandler executes a tool. A returned error becomes a tool-result error
// marker for the model; it never aborts the turn.
type ToolHandler func(ctx context.Context, env ToolEnv, args Args) (string, error)

// ToolDescriptor is a tool the agent can invoke: its typed argument table,
// the roles allowed to call it, and its handler.
type ToolDescriptor struct {
	Name         string
	Description  string
	Fields       []Field
	AllowedRoles []domain.Role
	Handler      ToolHandler
}

// Allows reports whether role may call the tool.
func (d ToolDescriptor) Allows(role domain.Role) bool {
	return slices.Contains(d.AllowedRoles, role)
}

// InputSchema renders the field table as a JSON Schema object.
func (d ToolDescriptor) InputSchema() json.RawMessage {
	props := make(map[string]any, len(d.Fields))
	required := []string{}
	for _, f := range d.Fields {
		p := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	data, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
	return data
}

// Definition returns the model-facing definition of the tool.
func (d ToolDescriptor) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema(),
	}
}

// Validate parses raw model-supplied JSON arguments against the field
// table. Malformed JSON is repaired when possible. Defaults are applied to
// absent optional fields; undeclared keys are dropped.
func (d ToolDescriptor) Validate(raw string) (Args, error) {
	input, err := decodeArgs(raw)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error()}
	}

	args := make(Args, len(d.Fields))
	for _, f := range d.Fields {
		v, present := input[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, NewError(KindValidation, "missing required field %q", f.Name)
			}
			if f.Default != nil {
				args[f.Name] = f.Default
			}
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: err.Error()}
		}
		args[f.Name] = cv
	}
	return args, nil
}

func decodeArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, fmt.Errorf("arguments are not valid JSON: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return nil, fmt.Errorf("arguments are not valid JSON: %v", err)
		}
	}
	if v == nil {
		return map[string]any{}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return obj, nil
}

func coerce(f Field, v any) (any, error) {
	switch f.Type {
	case TypeString:
		var s string
		switch x := v.(type) {
		case string:
			s = strings.TrimSpace(x)
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(x)
		default:
			return nil, fmt.Errorf("field %q must be a string", f.Name)
		}
		if len(f.Enum) == 0 {
			return s, nil
		}
		for _, e := range f.Enum {
			if strings.EqualFold(e, s) {
				return e, nil
			}
		}
		return nil, fmt.Errorf("field %q must be one of %v", f.Name, f.Enum)

	case TypeInteger:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) {
			return nil, fmt.Errorf("field %q must be an integer", f.Name)
		}
		return int(n), nil

	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %q must be a number", f.Name)
		}
		return n, nil

	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
		return nil, fmt.Errorf("field %q must be a boolean", f.Name)
	}
	return nil, fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n, err == nil
	}
	return 0, false
}

// Args holds validated tool arguments keyed by field name.
type Args map[string]any

// String returns a string argument, or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument, or 0.
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns a number argument, or 0.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns a boolean argument, or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether the argument was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// ToolRegistry holds available tools in registration order.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolDescriptor
	order []string
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolDescriptor)}
}

// Register adds a tool. Names must be unique.
func (r *ToolRegistry) Register(d ToolDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister is Register for static tool tables; it panics on error.
func (r *ToolRegistry) MustRegister(descs ...ToolDescriptor) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Visible returns the tools the role may call.
func (r *ToolRegistry) Visible(role domain.Role) []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ToolDescriptor
	for _, name := range r.order {
		if d := r.tools[name]; d.Allows(role) {
			out = append(out, d)
		}
	}
	return out
}

// Definitions returns model-ready definitions for the tools role may call.
func (r *ToolRegistry) Definitions(role domain.Role) []llm.ToolDefinition {
	visible := r.Visible(role)
	defs := make([]llm.ToolDefinition, len(visible))
	for i, d := range visible {
		defs[i] = d.Definition()
	}
	return defs
}

// Names returns every registered tool name in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
