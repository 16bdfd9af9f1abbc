package sensors

import (
	"errors"
	"fmt"
)

var ErrPropertyReadOnly = errors.New("property is read only")

// Property describes a single introspectable driver value.
type Property struct {
	Name  string
	Unit  string
	Attr  string
	Read  func() (string, error)
	Write func(value string) error
}

// PropertySet maps property index to descriptor. A nil set is a driver
// without introspectable properties.
type PropertySet []Property

func (p PropertySet) Count() int {
	return len(p)
}

func (p PropertySet) Get(index int) (Property, bool) {
	if index < 0 || index >= len(p) {
		return Property{}, false
	}
	return p[index], true
}

func (p PropertySet) ReadValue(index int) (string, error) {
	prop, ok := p.Get(index)
	if !ok {
		return "", fmt.Errorf("property %d: %w", index, errNoProperty)
	}
	if prop.Read == nil {
		return "", fmt.Errorf("property %s is write only", prop.Name)
	}
	return prop.Read()
}

func (p PropertySet) WriteValue(index int, value string) error {
	prop, ok := p.Get(index)
	if !ok {
		return fmt.Errorf("property %d: %w", index, errNoProperty)
	}
	if prop.Write == nil {
		return fmt.Errorf("property %s: %w", prop.Name, ErrPropertyReadOnly)
	}
	return prop.Write(value)
}

var errNoProperty = errors.New("no such property")
