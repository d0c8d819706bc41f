/******************************************************************************
 *
 *  Description :
 *
 *    The heterogeneous keyed property bag passed through the user-join
 *    pipeline. Represented as an ordered list of (name, value) pairs rather
 *    than a map so that attribute order is preserved when a bag is echoed
 *    back onto the wire.
 *
 *****************************************************************************/

package wire

import (
	"fmt"
	"strconv"
)

// Prop is a single named value in a PropBag. Value holds one of: string,
// uint64, or any caller-defined domain type (session.UserStatus,
// session.UserFlags, a connection handle). The coordinator is the only
// place that needs to know the concrete type of a given name.
type Prop struct {
	Name  string
	Value any
}

// PropBag is an ordered bag of properties, preserving insertion order the
// way a client's XML attribute list is ordered.
type PropBag []Prop

// Get returns the value for name and whether it was present.
func (b PropBag) Get(name string) (any, bool) {
	for _, p := range b {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present in the bag.
func (b PropBag) Has(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// GetString returns the value for name as a string.
func (b PropBag) GetString(name string) (string, bool) {
	v, ok := b.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetUint64 returns the value for name as a uint64, converting from a
// decimal string if necessary.
func (b PropBag) GetUint64(name string) (uint64, bool, error) {
	v, ok := b.Get(name)
	if !ok {
		return 0, false, nil
	}
	switch t := v.(type) {
	case uint64:
		return t, true, nil
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("wire: malformed numeric attribute %q: %w", name, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("wire: attribute %q is not numeric", name)
	}
}

// Set replaces the value for name if present, preserving its position, or
// appends a new pair at the end. The coordinator both reads and fills this
// bag (id, status default, flags, connection) - this is the explicit
// mutation point for that.
func (b *PropBag) Set(name string, value any) {
	for i := range *b {
		if (*b)[i].Name == name {
			(*b)[i].Value = value
			return
		}
	}
	*b = append(*b, Prop{Name: name, Value: value})
}

// Delete removes name from the bag, if present.
func (b *PropBag) Delete(name string) {
	out := (*b)[:0]
	for _, p := range *b {
		if p.Name != name {
			out = append(out, p)
		}
	}
	*b = out
}

// Clone returns a shallow copy of the bag, safe to mutate independently.
func (b PropBag) Clone() PropBag {
	out := make(PropBag, len(b))
	copy(out, b)
	return out
}

// Merge appends every prop of other onto b, overwriting by name.
func (b *PropBag) Merge(other PropBag) {
	for _, p := range other {
		b.Set(p.Name, p.Value)
	}
}
