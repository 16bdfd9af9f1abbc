package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertySet_Empty(t *testing.T) {
	var props PropertySet
	assert.Equal(t, 0, props.Count())
	_, ok := props.Get(0)
	assert.False(t, ok)
	_, err := props.ReadValue(0)
	assert.Error(t, err)
	assert.Error(t, props.WriteValue(0, "1"))
}

func TestPropertySet_ReadWrite(t *testing.T) {
	value := "10"
	props := PropertySet{
		{Name: "interval", Unit: "ms", Read: func() (string, error) { return value, nil }},
		{Name: "mode", Write: func(v string) error { value = v; return nil }},
	}
	assert.Equal(t, 2, props.Count())

	got, err := props.ReadValue(0)
	assert.NoError(t, err)
	assert.Equal(t, "10", got)
	assert.ErrorIs(t, props.WriteValue(0, "20"), ErrPropertyReadOnly)

	assert.NoError(t, props.WriteValue(1, "normal"))
	assert.Equal(t, "normal", value)
	_, err = props.ReadValue(1)
	assert.Error(t, err)

	_, ok := props.Get(-1)
	assert.False(t, ok)
}
