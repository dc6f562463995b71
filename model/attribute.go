package model

// Attribute is a named, multi-valued property attached to an identity.
// Values are opaque to the model; the backing store decides which value
// types it can persist.
type Attribute struct {
	Name   string
	Values []any
}

// NewAttribute creates an attribute with one or more values.
func NewAttribute(name string, values ...any) Attribute {
	return Attribute{Name: name, Values: values}
}

// Value returns the first value in insertion order, or nil when the
// attribute has no values. Multi-valued attributes keep their remaining
// values reachable through Values.
func (a Attribute) Value() any {
	if len(a.Values) == 0 {
		return nil
	}
	return a.Values[0]
}

func (a Attribute) clone() Attribute {
	c := Attribute{Name: a.Name}
	if a.Values != nil {
		c.Values = make([]any, len(a.Values))
		copy(c.Values, a.Values)
	}
	return c
}
