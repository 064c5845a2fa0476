package enum

type inputKind uint8

const (
	inputNone inputKind = iota
	inputTyped
	inputPrimitive
)

// Input 调用点在过渡期接受的参数：强类型成员或原始值，二者取其一
// 在边界处通过 Resolve 解析一次，之后只传递 E
type Input[E comparable, B Backing] struct {
	kind  inputKind
	typed E
	raw   B
}

// Typed 构造强类型变体
func Typed[E comparable, B Backing](v E) Input[E, B] {
	return Input[E, B]{kind: inputTyped, typed: v}
}

// Primitive 构造原始值变体
//
//	enum.Primitive[SearchMode]("partial")
func Primitive[E comparable, B Backing](v B) Input[E, B] {
	return Input[E, B]{kind: inputPrimitive, raw: v}
}

func (in Input[E, B]) IsTyped() bool { return in.kind == inputTyped }

func (in Input[E, B]) IsPrimitive() bool { return in.kind == inputPrimitive }

// Resolve 将输入解析为成员
// 强类型变体原样返回；原始值变体走 Coerce；零值 Input 视为非法输入
func (in Input[E, B]) Resolve(set *Set[E, B]) (E, error) {
	switch in.kind {
	case inputTyped:
		return in.typed, nil
	case inputPrimitive:
		return set.Coerce(in.raw)
	}
	var zero E
	return zero, set.Invalid(nil)
}

func (in Input[E, B]) String() string {
	switch in.kind {
	case inputTyped:
		return "typed(" + primitiveText(in.typed) + ")"
	case inputPrimitive:
		return "primitive(" + primitiveText(in.raw) + ")"
	}
	return "empty"
}
