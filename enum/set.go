package enum

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// Backing 原始值允许的底层类型
type Backing interface {
	~string |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Entry 枚举成员及其原始值
type Entry[E comparable, B Backing] struct {
	Value   E      // 强类型成员
	Backing B      // 原始值，用于线上协议和存储兼容
	Name    string // 成员名（不含类型前缀），如 Partial
}

// Set 封闭的强类型取值集合
// 定义后不可修改；名称、成员值、原始值在集合内均唯一
type Set[E comparable, B Backing] struct {
	name      string
	entries   []Entry[E, B]
	byValue   map[E]int
	byBacking map[B]int
	byText    map[string]int
	allowed   []string
}

// NewSet 创建取值集合
func NewSet[E comparable, B Backing](name string, entries ...Entry[E, B]) (*Set[E, B], error) {
	if len(entries) == 0 {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: no enumerants", name)
	}

	s := &Set[E, B]{
		name:      name,
		entries:   make([]Entry[E, B], 0, len(entries)),
		byValue:   make(map[E]int, len(entries)),
		byBacking: make(map[B]int, len(entries)),
		byText:    make(map[string]int, len(entries)),
	}
	names := make(map[string]struct{}, len(entries))

	for i, e := range entries {
		if e.Name == "" {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s: enumerant #%d has no name", name, i)
		}
		if _, dup := names[e.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s: duplicate enumerant name %s", name, e.Name)
		}
		if j, dup := s.byValue[e.Value]; dup {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s: %s and %s share the same value", name, entries[j].Name, e.Name)
		}
		if j, dup := s.byBacking[e.Backing]; dup {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s: %s and %s share backing value %q",
				name, entries[j].Name, e.Name, primitiveText(e.Backing))
		}

		names[e.Name] = struct{}{}
		s.byValue[e.Value] = i
		s.byBacking[e.Backing] = i
		s.byText[primitiveText(e.Backing)] = i
		s.entries = append(s.entries, e)
	}

	s.allowed = lo.Map(s.entries, func(e Entry[E, B], _ int) string {
		return primitiveText(e.Backing)
	})

	return s, nil
}

// MustNewSet 创建取值集合，失败时 panic
// 生成代码在包初始化时调用
func MustNewSet[E comparable, B Backing](name string, entries ...Entry[E, B]) *Set[E, B] {
	s, err := NewSet(name, entries...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set[E, B]) Name() string { return s.name }

func (s *Set[E, B]) Len() int { return len(s.entries) }

// Entries 按声明顺序返回成员副本
func (s *Set[E, B]) Entries() []Entry[E, B] {
	return append([]Entry[E, B](nil), s.entries...)
}

// Values 按声明顺序返回全部成员
func (s *Set[E, B]) Values() []E {
	return lo.Map(s.entries, func(e Entry[E, B], _ int) E { return e.Value })
}

// BackingValues 按声明顺序返回全部原始值
func (s *Set[E, B]) BackingValues() []B {
	return lo.Map(s.entries, func(e Entry[E, B], _ int) B { return e.Backing })
}

// Allowed 返回原始值的文本形式，用于错误提示和文档
func (s *Set[E, B]) Allowed() []string {
	return append([]string(nil), s.allowed...)
}

func (s *Set[E, B]) Contains(v E) bool {
	_, ok := s.byValue[v]
	return ok
}

// BackingOf 返回成员对应的原始值
func (s *Set[E, B]) BackingOf(v E) (B, bool) {
	i, ok := s.byValue[v]
	if !ok {
		var zero B
		return zero, false
	}
	return s.entries[i].Backing, true
}

// NameOf 返回成员名，不在集合内时返回空字符串
func (s *Set[E, B]) NameOf(v E) string {
	if i, ok := s.byValue[v]; ok {
		return s.entries[i].Name
	}
	return ""
}

// Label 返回成员的可读形式
// 字符串原始值直接返回原始值，整数原始值返回成员名
// 集合外的值格式化为 Type(raw)
func (s *Set[E, B]) Label(v E) string {
	i, ok := s.byValue[v]
	if !ok {
		return s.name + "(" + primitiveText(v) + ")"
	}
	e := s.entries[i]
	if reflect.ValueOf(e.Backing).Kind() == reflect.String {
		return primitiveText(e.Backing)
	}
	return e.Name
}

// Coerce 将原始值转换为成员
// 只做精确匹配，没有对应成员时返回 ErrInvalidInput
func (s *Set[E, B]) Coerce(b B) (E, error) {
	if i, ok := s.byBacking[b]; ok {
		return s.entries[i].Value, nil
	}
	var zero E
	return zero, s.Invalid(b)
}

// CoerceText 按原始值的规范文本形式精确匹配
func (s *Set[E, B]) CoerceText(text string) (E, error) {
	if i, ok := s.byText[text]; ok {
		return s.entries[i].Value, nil
	}
	var zero E
	return zero, s.Invalid(text)
}

// CoerceAny 处理弱类型输入（SQL 扫描、解码后的 JSON 等）
//   - E: 原样返回
//   - B: 等价于 Coerce
//   - 其它基本类型: 转为文本后精确匹配
func (s *Set[E, B]) CoerceAny(v any) (E, error) {
	var zero E
	switch x := v.(type) {
	case nil:
		return zero, s.Invalid(nil)
	case E:
		return x, nil
	case B:
		return s.Coerce(x)
	case []byte:
		return s.CoerceText(string(x))
	case string:
		return s.CoerceText(x)
	case bool:
		return zero, s.Invalid(x)
	}

	text, err := cast.ToStringE(v)
	if err != nil {
		return zero, s.Invalid(v)
	}
	return s.CoerceText(text)
}

// MarshalText 返回成员原始值的文本形式
func (s *Set[E, B]) MarshalText(v E) ([]byte, error) {
	b, ok := s.BackingOf(v)
	if !ok {
		return nil, s.Invalid(v)
	}
	return []byte(primitiveText(b)), nil
}

// DriverValue 返回写入数据库的值：字符串或 int64
func (s *Set[E, B]) DriverValue(v E) (driver.Value, error) {
	b, ok := s.BackingOf(v)
	if !ok {
		return nil, s.Invalid(v)
	}
	rv := reflect.ValueOf(b)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	default:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%s: backing value %d overflows int64", s.name, u)
		}
		return int64(u), nil
	}
}

// Invalid 构造 InvalidInputError
func (s *Set[E, B]) Invalid(v any) error {
	return newInvalidInput(s.name, v, s.Allowed())
}

func (s *Set[E, B]) String() string {
	return s.name + "{" + strings.Join(s.allowed, ", ") + "}"
}

// primitiveText 按底层类型格式化，不调用 String 方法
func primitiveText(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Slice:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	}
	return fmt.Sprintf("%#v", v)
}
