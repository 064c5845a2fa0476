package enumgen

import (
	"fmt"
	"strconv"

	"github.com/donutnomad/enumshift/enum"
	"github.com/donutnomad/enumshift/internal/utils"
	"github.com/samber/lo"
)

// BackingSource 原始值来源
type BackingSource string

const (
	BackingFromValue BackingSource = "value" // 常量自身的值
	BackingFromName  BackingSource = "name"  // 成员名的 snake_case
)

// Enum 一个带 @Enum 注解的类型及其成员
type Enum struct {
	Type        string        `json:"type"`
	Package     string        `json:"package"`
	PkgPath     string        `json:"pkg_path"`
	File        string        `json:"file"`
	Phase       enum.Phase    `json:"phase"`
	Source      BackingSource `json:"backing_source"`
	BackingType string        `json:"backing_type"` // string / int / uint8 ...
	Members     []*Member     `json:"members"`
	Output      string        `json:"output"` // 生成文件路径

	underlying string // 底层类型，string 或整数类型名
	text       bool
	sql        bool
	stringer   bool
}

// Member 枚举成员
type Member struct {
	Const   string `json:"const"`   // 常量名，如 SearchModePartial
	Name    string `json:"name"`    // 成员名，如 Partial
	Backing string `json:"backing"` // 原始值的文本形式

	literal string // 原始值的 Go 字面量
}

// Key 用于阶段锁的唯一标识
func (e *Enum) Key() string {
	return e.PkgPath + "." + e.Type
}

// IsStringBacked 原始值是否为字符串
func (e *Enum) IsStringBacked() bool {
	return e.BackingType == "string"
}

// Label 返回成员的展示文本，与运行时 Set.Label 保持一致
func (e *Enum) Label(m *Member) string {
	if e.IsStringBacked() {
		return m.Backing
	}
	return m.Name
}

// isStringKind 底层类型是否为字符串
func (e *Enum) isStringKind() bool {
	return e.underlying == "string"
}

// assignBacking 根据来源计算每个成员的原始值，并检查唯一性
func (e *Enum) assignBacking(values map[string]string) error {
	switch e.Source {
	case BackingFromName:
		e.BackingType = "string"
		for _, m := range e.Members {
			m.Backing = utils.ToSnakeCase(m.Name)
			m.literal = strconv.Quote(m.Backing)
		}
	case BackingFromValue:
		e.BackingType = e.underlying
		for _, m := range e.Members {
			m.Backing = values[m.Const]
			if e.isStringKind() {
				m.literal = strconv.Quote(m.Backing)
			} else {
				m.literal = m.Backing
			}
		}
	default:
		return fmt.Errorf("未知的 backing 来源 %q (必须是 value 或 name)", e.Source)
	}

	if len(e.Members) == 0 {
		return fmt.Errorf("%s 没有任何 %s 类型的常量", e.Type, e.Type)
	}

	if dups := lo.FindDuplicatesBy(e.Members, func(m *Member) string { return m.Name }); len(dups) > 0 {
		return fmt.Errorf("%s 的成员名重复: %s", e.Type, dups[0].Name)
	}

	// Match 的参数名由成员名得出，Foo 与 foo 会得到同一个 onFoo
	handlers := make(map[string]*Member, len(e.Members))
	for _, m := range e.Members {
		name := handlerName(m)
		if prev, ok := handlers[name]; ok {
			return fmt.Errorf("%s 的成员 %s 和 %s 对应同一个处理函数参数 %s", e.Type, prev.Const, m.Const, name)
		}
		handlers[name] = m
	}

	seen := make(map[string]*Member, len(e.Members))
	for _, m := range e.Members {
		if prev, ok := seen[m.Backing]; ok {
			return fmt.Errorf("%s 的原始值重复: %s 和 %s 都是 %q", e.Type, prev.Const, m.Const, m.Backing)
		}
		seen[m.Backing] = m
	}

	return nil
}
