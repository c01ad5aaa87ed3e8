package entity

import (
	"encoding/json"
	"fmt"
)

// VariableInstance 变量实例实体（对外导出）
// 挂在执行或任务上的命名变量，读写通过作用域链解析（task → execution → parent executions）。
type VariableInstance struct {
	ID       string
	Revision int

	Name     string
	TypeName string // string/long/double/boolean/json/bytes

	// 作用域归属
	ExecutionID       string
	ProcessInstanceID string
	TaskID            string
	ScopeID           string
	ScopeType         string

	// 值存储（简单类型内联，大值走字节数组引用）
	TextValue   string
	LongValue   *int64
	DoubleValue *float64
	ByteArrayID string

	value    any
	valueSet bool
}

// NewVariableInstance 创建变量实例
func NewVariableInstance(name string, value any) *VariableInstance {
	v := &VariableInstance{
		ID:       NewID(),
		Revision: 1,
		Name:     name,
	}
	v.SetValue(value)
	return v
}

// GetID 获取实体唯一标识
func (v *VariableInstance) GetID() string { return v.ID }

// Kind 返回实体类型标识
func (v *VariableInstance) Kind() string { return KindVariable }

// GetRevision 获取当前版本号
func (v *VariableInstance) GetRevision() int { return v.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (v *VariableInstance) SetRevision(rev int) { v.Revision = rev }

// Value 获取变量值
func (v *VariableInstance) Value() any {
	if v.valueSet {
		return v.value
	}
	// 从持久化字段还原
	switch v.TypeName {
	case "long":
		if v.LongValue != nil {
			return *v.LongValue
		}
		return nil
	case "double":
		if v.DoubleValue != nil {
			return *v.DoubleValue
		}
		return nil
	case "boolean":
		return v.TextValue == "true"
	case "string":
		return v.TextValue
	case "json":
		var out any
		if err := json.Unmarshal([]byte(v.TextValue), &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}

// SetValue 设置变量值并更新持久化字段
func (v *VariableInstance) SetValue(value any) {
	v.value = value
	v.valueSet = true
	v.LongValue = nil
	v.DoubleValue = nil
	v.TextValue = ""

	switch val := value.(type) {
	case nil:
		v.TypeName = "null"
	case string:
		v.TypeName = "string"
		v.TextValue = val
	case bool:
		v.TypeName = "boolean"
		v.TextValue = fmt.Sprintf("%t", val)
	case int:
		v.TypeName = "long"
		lv := int64(val)
		v.LongValue = &lv
	case int32:
		v.TypeName = "long"
		lv := int64(val)
		v.LongValue = &lv
	case int64:
		v.TypeName = "long"
		lv := val
		v.LongValue = &lv
	case float32:
		v.TypeName = "double"
		dv := float64(val)
		v.DoubleValue = &dv
	case float64:
		v.TypeName = "double"
		dv := val
		v.DoubleValue = &dv
	default:
		// 复杂类型序列化为JSON文本
		v.TypeName = "json"
		if data, err := json.Marshal(value); err == nil {
			v.TextValue = string(data)
		}
	}
}

// Clone 复制变量实例
func (v *VariableInstance) Clone() *VariableInstance {
	copied := *v
	if v.LongValue != nil {
		lv := *v.LongValue
		copied.LongValue = &lv
	}
	if v.DoubleValue != nil {
		dv := *v.DoubleValue
		copied.DoubleValue = &dv
	}
	return &copied
}

// ByteArray 字节数组实体（对外导出）
// 大变量值的外部存储，删除变量前必须先删除其引用的字节数组。
type ByteArray struct {
	ID       string
	Revision int
	Name     string
	Bytes    []byte
}

// NewByteArray 创建字节数组实体
func NewByteArray(name string, data []byte) *ByteArray {
	return &ByteArray{
		ID:       NewID(),
		Revision: 1,
		Name:     name,
		Bytes:    data,
	}
}

// GetID 获取实体唯一标识
func (b *ByteArray) GetID() string { return b.ID }

// Kind 返回实体类型标识
func (b *ByteArray) Kind() string { return KindByteArray }

// GetRevision 获取当前版本号
func (b *ByteArray) GetRevision() int { return b.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (b *ByteArray) SetRevision(rev int) { b.Revision = rev }
