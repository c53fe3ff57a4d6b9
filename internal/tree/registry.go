package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Kind is the value kind of a payload property.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "string":
		return KindString, true
	case "int":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "bool":
		return KindBool, true
	}
	return KindString, false
}

// Reserved property names. They identify or structure the node and are never
// writable through the property API.
const (
	PropNodeID      = "NodeId"
	PropChildren    = "Children"
	PropParent      = "Parent"
	PropPayloadType = "PayloadType"
)

// IsReserved reports whether name is a reserved or internal property name.
func IsReserved(name string) bool {
	switch name {
	case PropNodeID, PropChildren, PropParent, PropPayloadType:
		return true
	}
	return strings.HasPrefix(name, "_")
}

// PropertySpec describes one named, typed property of a payload type.
// Accessors are bound once at registration; values passed to set have
// already been coerced to Kind.
type PropertySpec struct {
	Name      string
	Kind      Kind
	Required  bool
	Immutable bool

	get func(payload any) any
	set func(payload any, value any)
}

// AsRequired marks the property as required by validation.
func (p PropertySpec) AsRequired() PropertySpec {
	p.Required = true
	return p
}

// AsImmutable marks the property as settable only during construction.
func (p PropertySpec) AsImmutable() PropertySpec {
	p.Immutable = true
	return p
}

// Get reads the property from a payload of the owning type.
func (p *PropertySpec) Get(payload any) any {
	return p.get(payload)
}

// StringProperty binds a string property of *T.
func StringProperty[T any](name string, get func(*T) string, set func(*T, string)) PropertySpec {
	return PropertySpec{
		Name: name,
		Kind: KindString,
		get:  func(p any) any { return get(p.(*T)) },
		set:  func(p any, v any) { set(p.(*T), v.(string)) },
	}
}

// IntProperty binds an int property of *T.
func IntProperty[T any](name string, get func(*T) int, set func(*T, int)) PropertySpec {
	return PropertySpec{
		Name: name,
		Kind: KindInt,
		get:  func(p any) any { return get(p.(*T)) },
		set:  func(p any, v any) { set(p.(*T), v.(int)) },
	}
}

// FloatProperty binds a float64 property of *T.
func FloatProperty[T any](name string, get func(*T) float64, set func(*T, float64)) PropertySpec {
	return PropertySpec{
		Name: name,
		Kind: KindFloat,
		get:  func(p any) any { return get(p.(*T)) },
		set:  func(p any, v any) { set(p.(*T), v.(float64)) },
	}
}

// BoolProperty binds a bool property of *T.
func BoolProperty[T any](name string, get func(*T) bool, set func(*T, bool)) PropertySpec {
	return PropertySpec{
		Name: name,
		Kind: KindBool,
		get:  func(p any) any { return get(p.(*T)) },
		set:  func(p any, v any) { set(p.(*T), v.(bool)) },
	}
}

// Cloner is implemented by payloads carrying state beyond their registered
// properties. ClonePayload must return a new, independent value.
type Cloner interface {
	ClonePayload() any
}

// TypeSpec registers a payload type. New must return a pointer to a fresh
// zero payload. SelfPayload types are exposed as the node itself: their
// properties are inlined on the node and serialized without a Payload wrapper.
type TypeSpec struct {
	Name        string
	SelfPayload bool
	New         func() any
	Properties  []PropertySpec

	index  map[string]int
	goType reflect.Type
}

// Property looks up a property by name.
func (t *TypeSpec) Property(name string) (*PropertySpec, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.Properties[i], true
}

// PropertyNames returns the property names in declaration order.
func (t *TypeSpec) PropertyNames() []string {
	names := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		names[i] = p.Name
	}
	return names
}

// Registry is the name → payload type map used to construct payloads.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*TypeSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*TypeSpec)}
}

// Register validates and adds a payload type.
func (r *Registry) Register(spec TypeSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("payload type name is required")
	}
	if spec.New == nil {
		return fmt.Errorf("payload type %s: constructor is required", spec.Name)
	}
	sample := spec.New()
	if sample == nil || reflect.TypeOf(sample).Kind() != reflect.Pointer {
		return fmt.Errorf("payload type %s: constructor must return a pointer", spec.Name)
	}

	props := make([]PropertySpec, len(spec.Properties))
	copy(props, spec.Properties)
	index := make(map[string]int, len(props))
	for i, p := range props {
		if IsReserved(p.Name) {
			return fmt.Errorf("payload type %s: property %q: %w", spec.Name, p.Name, ErrReservedProperty)
		}
		if p.get == nil || p.set == nil {
			return fmt.Errorf("payload type %s: property %q has no accessors", spec.Name, p.Name)
		}
		if _, dup := index[p.Name]; dup {
			return fmt.Errorf("payload type %s: property %q declared twice", spec.Name, p.Name)
		}
		index[p.Name] = i
	}

	spec.Properties = props
	spec.index = index
	spec.goType = reflect.TypeOf(sample)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[spec.Name]; exists {
		return fmt.Errorf("%s: %w", spec.Name, ErrDuplicateType)
	}
	r.types[spec.Name] = &spec
	return nil
}

// MustRegister registers every spec and panics on the first error.
// Intended for package-level catalogs.
func (r *Registry) MustRegister(specs ...TypeSpec) *Registry {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the registered type.
func (r *Registry) Lookup(name string) (*TypeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownType)
	}
	return spec, nil
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Coerce converts v into the Go representation of kind. Nil becomes the
// zero value. JSON numbers, numeric strings and bool strings are accepted.
func Coerce(kind Kind, v any) (any, error) {
	if n, ok := v.(json.Number); ok {
		v = string(n)
	}
	switch kind {
	case KindString:
		switch x := v.(type) {
		case nil:
			return "", nil
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		case bool, int, int32, int64, float32, float64:
			return fmt.Sprint(x), nil
		}
	case KindInt:
		switch x := v.(type) {
		case nil:
			return 0, nil
		case int:
			return x, nil
		case int32:
			return int(x), nil
		case int64:
			return int(x), nil
		case float32:
			if float32(math.Trunc(float64(x))) == x {
				return int(x), nil
			}
		case float64:
			if math.Trunc(x) == x {
				return int(x), nil
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
				return n, nil
			}
		}
	case KindFloat:
		switch x := v.(type) {
		case nil:
			return 0.0, nil
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, nil
			}
		}
	case KindBool:
		switch x := v.(type) {
		case nil:
			return false, nil
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("%v (%T) as %s: %w", v, v, kind, ErrInvalidValue)
}
