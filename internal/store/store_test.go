package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetAbsentKey(t *testing.T) {
	m := NewMemory()
	v, found, err := m.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestMemory_SetThenGet(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set(context.Background(), "k", []byte("hello")))

	v, found, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), v)
}

func TestMemory_Overwrite(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set(context.Background(), "k", []byte("one")))
	require.NoError(t, m.Set(context.Background(), "k", []byte("two")))

	v, found, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("two"), v)
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	in := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", in))
	in[0] = 'x'

	out, _, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out, "stored value must not alias caller's slice")

	out[0] = 'z'
	again, _, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "returned value must not alias stored slice")
}
