package graph

import "strconv"

// ValueType is the declared type of a feature.
type ValueType string

const (
	// TypeStr marks string valued features (the default for undeclared ones).
	TypeStr ValueType = "str"
	// TypeInt marks integer valued features.
	TypeInt ValueType = "int"
)

// Value is a feature value: either a string or an integer.
type Value struct {
	isInt bool
	s     string
	i     int
}

// Str returns a string value.
func Str(s string) Value { return Value{s: s} }

// Int returns an integer value.
func Int(i int) Value { return Value{isInt: true, i: i} }

// IsInt reports whether the value holds an integer.
func (v Value) IsInt() bool { return v.isInt }

// AsInt returns the integer held by v. String values that parse as a
// decimal integer are converted as well.
func (v Value) AsInt() (int, bool) {
	if v.isInt {
		return v.i, true
	}
	i, err := strconv.Atoi(v.s)
	if err != nil {
		return 0, false
	}
	return i, true
}

// String returns the textual form of the value.
func (v Value) String() string {
	if v.isInt {
		return strconv.Itoa(v.i)
	}
	return v.s
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.isInt != o.isInt {
		return false
	}
	if v.isInt {
		return v.i == o.i
	}
	return v.s == o.s
}

// Feature is one named value.
type Feature struct {
	Name  string
	Value Value
}

// Features is an insertion ordered mapping from feature name to value.
type Features struct {
	items []Feature
}

// NewFeatures builds a Features from name/value pairs.
func NewFeatures(fs ...Feature) Features {
	var out Features
	for _, f := range fs {
		out.Set(f.Name, f.Value)
	}
	return out
}

// Set assigns name. An existing name keeps its position.
func (f *Features) Set(name string, v Value) {
	for i := range f.items {
		if f.items[i].Name == name {
			f.items[i].Value = v
			return
		}
	}
	f.items = append(f.items, Feature{Name: name, Value: v})
}

// Get returns the value of name.
func (f Features) Get(name string) (Value, bool) {
	for _, it := range f.items {
		if it.Name == name {
			return it.Value, true
		}
	}
	return Value{}, false
}

// Delete removes name if present.
func (f *Features) Delete(name string) {
	for i := range f.items {
		if f.items[i].Name == name {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of features.
func (f Features) Len() int { return len(f.items) }

// Names returns feature names in insertion order.
func (f Features) Names() []string {
	names := make([]string, len(f.items))
	for i, it := range f.items {
		names[i] = it.Name
	}
	return names
}

// All returns a copy of the features in insertion order.
func (f Features) All() []Feature {
	out := make([]Feature, len(f.items))
	copy(out, f.items)
	return out
}
