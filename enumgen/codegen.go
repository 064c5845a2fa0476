package enumgen

import (
	"fmt"
	"strings"

	"github.com/donutnomad/enumshift/internal/utils"
	"github.com/donutnomad/gg"
	"github.com/samber/lo"
)

const enumImportPath = "github.com/donutnomad/enumshift/enum"

// render 为同一输出文件中的所有枚举生成 gg 定义
func render(enums []*Enum) (*gg.Generator, error) {
	if len(enums) == 0 {
		return nil, fmt.Errorf("没有枚举需要生成")
	}

	gen := gg.New()
	gen.SetPackage(enums[0].Package)
	gen.P(enumImportPath)

	if lo.SomeBy(enums, func(e *Enum) bool { return e.sql }) {
		gen.P("database/sql/driver")
	}

	body := gen.Body()
	w := &writer{add: func(line string) { body.AddString(line) }, line: func() { body.AddLine() }}

	for _, e := range enums {
		if e.Package != enums[0].Package {
			return nil, fmt.Errorf("包名不一致: %s vs %s", enums[0].Package, e.Package)
		}
		writeEnum(w, e)
	}

	return gen, nil
}

// writer 逐行输出，避免依赖 gg 的具体节点类型
type writer struct {
	add  func(string)
	line func()
}

func (w *writer) p(format string, args ...any) {
	if len(args) == 0 {
		w.add(format)
		return
	}
	w.add(fmt.Sprintf(format, args...))
}

func (w *writer) blank() {
	w.line()
}

func writeEnum(w *writer, e *Enum) {
	t := e.Type
	b := e.BackingType
	set := "_" + t + "Set"

	// 取值集合
	w.blank()
	w.p("var %s = enum.MustNewSet(%q,", set, t)
	for _, m := range e.Members {
		w.p("\tenum.Entry[%s, %s]{Value: %s, Backing: %s, Name: %q},", t, b, m.Const, m.literal, m.Name)
	}
	w.p(")")

	w.blank()
	w.p("// %sValues returns all %s values in declaration order.", t, t)
	w.p("func %sValues() []%s {", t, t)
	w.p("\treturn %s.Values()", set)
	w.p("}")

	w.blank()
	w.p("// %sSet returns the value set backing %s.", t, t)
	w.p("func %sSet() *enum.Set[%s, %s] {", t, t, b)
	w.p("\treturn %s", set)
	w.p("}")

	w.blank()
	w.p("// IsValid reports whether v is a declared %s.", t)
	w.p("func (v %s) IsValid() bool {", t)
	w.p("\treturn %s.Contains(v)", set)
	w.p("}")

	if e.stringer {
		w.blank()
		w.p("// String returns the display form of v.")
		w.p("func (v %s) String() string {", t)
		w.p("\treturn %s.Label(v)", set)
		w.p("}")
	}

	// 强制转换：原始值 -> 成员
	w.blank()
	w.p("// Parse%s converts a backing value to %s.", t, t)
	w.p("// Unknown values yield an error matching enum.ErrInvalidInput.")
	w.p("func Parse%s(v %s) (%s, error) {", t, b, t)
	w.p("\treturn %s.Coerce(v)", set)
	w.p("}")

	writeMatch(w, e, set)

	if e.text {
		w.blank()
		w.p("// MarshalText implements encoding.TextMarshaler.")
		w.p("func (v %s) MarshalText() ([]byte, error) {", t)
		w.p("\treturn %s.MarshalText(v)", set)
		w.p("}")

		w.blank()
		w.p("// UnmarshalText implements encoding.TextUnmarshaler.")
		w.p("func (v *%s) UnmarshalText(text []byte) error {", t)
		w.p("\tparsed, err := %s.CoerceText(string(text))", set)
		w.p("\tif err != nil {")
		w.p("\t\treturn err")
		w.p("\t}")
		w.p("\t*v = parsed")
		w.p("\treturn nil")
		w.p("}")
	}

	if e.sql {
		dataType := "int"
		if e.IsStringBacked() {
			dataType = "string"
		}

		w.blank()
		w.p("// Value implements driver.Valuer.")
		w.p("func (v %s) Value() (driver.Value, error) {", t)
		w.p("\treturn %s.DriverValue(v)", set)
		w.p("}")

		w.blank()
		w.p("// Scan implements sql.Scanner.")
		w.p("func (v *%s) Scan(src any) error {", t)
		w.p("\tparsed, err := %s.CoerceAny(src)", set)
		w.p("\tif err != nil {")
		w.p("\t\treturn err")
		w.p("\t}")
		w.p("\t*v = parsed")
		w.p("\treturn nil")
		w.p("}")

		w.blank()
		w.p("// GormDataType returns the column data type used by gorm.")
		w.p("func (%s) GormDataType() string {", t)
		w.p("\treturn %q", dataType)
		w.p("}")
	}

	writeInput(w, e, set)
}

// writeMatch 生成穷举分发函数
// 每个成员对应一个位置参数，新增成员会改变签名，未处理的调用点无法编译
func writeMatch(w *writer, e *Enum, set string) {
	t := e.Type
	handlers := lo.Map(e.Members, func(m *Member, _ int) string {
		return handlerName(m) + " func() R"
	})

	w.blank()
	w.p("// Match%s calls exactly one handler for v.", t)
	w.p("// Adding a %s value adds a handler parameter, so every call site must handle it.", t)
	w.p("func Match%s[R any](v %s, %s) (R, error) {", t, t, strings.Join(handlers, ", "))
	w.p("\tswitch v {")
	for _, m := range e.Members {
		w.p("\tcase %s:", m.Const)
		w.p("\t\treturn %s(), nil", handlerName(m))
	}
	w.p("\t}")
	w.p("\tvar zero R")
	w.p("\treturn zero, %s.Invalid(v)", set)
	w.p("}")
}

// writeInput 按阶段生成过渡期的联合输入
//   - introduce: 不生成，调用点仍使用原始值并调用 Parse
//   - dual:      生成 Input、Of、FromBacking、Resolve
//   - deprecate: 同 dual，FromBacking 标记为 Deprecated
//   - finalize:  不生成，调用点只接受成员
func writeInput(w *writer, e *Enum, set string) {
	if !e.Phase.AcceptsTyped() || !e.Phase.AcceptsPrimitive() {
		return
	}

	t := e.Type
	b := e.BackingType
	input := t + "Input"

	w.blank()
	w.p("// %s accepts either a %s or its backing %s during migration.", input, t, b)
	w.p("type %s = enum.Input[%s, %s]", input, t, b)

	w.blank()
	w.p("// %sOf wraps a typed %s.", t, t)
	w.p("func %sOf(v %s) %s {", t, t, input)
	w.p("\treturn enum.Typed[%s, %s](v)", t, b)
	w.p("}")

	w.blank()
	w.p("// %sFromBacking wraps a backing %s.", t, b)
	if e.Phase.PrimitiveDeprecated() {
		w.p("//")
		w.p("// Deprecated: pass a %s through %sOf instead.", t, t)
	}
	w.p("func %sFromBacking(v %s) %s {", t, b, input)
	w.p("\treturn enum.Primitive[%s](v)", t)
	w.p("}")

	w.blank()
	w.p("// Resolve%s resolves in to a %s.", t, t)
	w.p("func Resolve%s(in %s) (%s, error) {", t, input, t)
	w.p("\treturn in.Resolve(%s)", set)
	w.p("}")
}

func handlerName(m *Member) string {
	name := m.Name
	if name == "" {
		name = m.Const
	}
	return "on" + utils.UpperFirst(name)
}
