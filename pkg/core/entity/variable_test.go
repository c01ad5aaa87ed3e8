package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableInstance_SetValue_Types(t *testing.T) {
	v := NewVariableInstance("x", "hello")
	assert.Equal(t, "string", v.TypeName)
	assert.Equal(t, "hello", v.TextValue)

	v.SetValue(true)
	assert.Equal(t, "boolean", v.TypeName)
	assert.Equal(t, "true", v.TextValue)

	v.SetValue(42)
	assert.Equal(t, "long", v.TypeName)
	require.NotNil(t, v.LongValue)
	assert.Equal(t, int64(42), *v.LongValue)
	assert.Empty(t, v.TextValue)

	v.SetValue(3.14)
	assert.Equal(t, "double", v.TypeName)
	require.NotNil(t, v.DoubleValue)
	assert.InDelta(t, 3.14, *v.DoubleValue, 1e-9)
	assert.Nil(t, v.LongValue)

	v.SetValue(map[string]any{"k": "v"})
	assert.Equal(t, "json", v.TypeName)
	assert.JSONEq(t, `{"k":"v"}`, v.TextValue)
}

func TestVariableInstance_Value_RestoreFromPersistedFields(t *testing.T) {
	// 模拟从存储加载：只有持久化字段，内存值未设置
	lv := int64(7)
	v := &VariableInstance{ID: NewID(), Name: "n", TypeName: "long", LongValue: &lv}
	assert.Equal(t, int64(7), v.Value())

	v = &VariableInstance{ID: NewID(), Name: "n", TypeName: "boolean", TextValue: "true"}
	assert.Equal(t, true, v.Value())

	v = &VariableInstance{ID: NewID(), Name: "n", TypeName: "string", TextValue: "s"}
	assert.Equal(t, "s", v.Value())

	v = &VariableInstance{ID: NewID(), Name: "n", TypeName: "json", TextValue: `{"a":1}`}
	assert.Equal(t, map[string]any{"a": float64(1)}, v.Value())
}

func TestVariableInstance_Clone_DeepCopiesPointers(t *testing.T) {
	v := NewVariableInstance("x", int64(5))
	copied := v.Clone()

	*v.LongValue = 99
	require.NotNil(t, copied.LongValue)
	assert.Equal(t, int64(5), *copied.LongValue)
}
