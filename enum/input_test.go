package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputResolve(t *testing.T) {
	modes := newSearchModes(t)

	// 强类型输入原样返回
	for _, v := range modes.Values() {
		got, err := Typed[searchMode, string](v).Resolve(modes)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	// 原始值输入等价于 Coerce
	for _, e := range modes.Entries() {
		in := Primitive[searchMode](e.Backing)
		assert.True(t, in.IsPrimitive())
		assert.False(t, in.IsTyped())

		got, err := in.Resolve(modes)
		require.NoError(t, err)
		assert.Equal(t, e.Value, got)
	}

	_, err := Primitive[searchMode]("bogus").Resolve(modes)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var zero Input[searchMode, string]
	_, err = zero.Resolve(modes)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInputString(t *testing.T) {
	assert.Equal(t, "typed(full)", Typed[searchMode, string](searchModeFull).String())
	assert.Equal(t, "primitive(20)", Primitive[level](20).String())
	assert.Equal(t, "empty", Input[level, int]{}.String())
}
