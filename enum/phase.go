package enum

// Phase 迁移阶段
// 阶段随版本发布单调推进，不会回退；阶段变化是一次有意的 API 变更，而非运行时状态
type Phase int

const (
	PhaseIntroduce  Phase = iota + 1 // 引入强类型集合，调用点仍只接受原始值
	PhaseDualAccept                  // 调用点同时接受成员和原始值
	PhaseDeprecate                   // 原始值入口标记为 Deprecated
	PhaseFinalize                    // 调用点只接受成员
)

var phaseSet = MustNewSet("Phase",
	Entry[Phase, string]{Value: PhaseIntroduce, Backing: "introduce", Name: "Introduce"},
	Entry[Phase, string]{Value: PhaseDualAccept, Backing: "dual", Name: "DualAccept"},
	Entry[Phase, string]{Value: PhaseDeprecate, Backing: "deprecate", Name: "Deprecate"},
	Entry[Phase, string]{Value: PhaseFinalize, Backing: "finalize", Name: "Finalize"},
)

// Phases 按推进顺序返回全部阶段
func Phases() []Phase {
	return phaseSet.Values()
}

// phaseAliases 阶段的完整写法，String 和 MarshalText 仍输出短名
var phaseAliases = map[string]Phase{
	"Introduce":   PhaseIntroduce,
	"DualAccept":  PhaseDualAccept,
	"dualaccept":  PhaseDualAccept,
	"dual_accept": PhaseDualAccept,
	"dual-accept": PhaseDualAccept,
	"Deprecate":   PhaseDeprecate,
	"Finalize":    PhaseFinalize,
}

// ParsePhase 解析阶段名：introduce, dual, deprecate, finalize
// 也接受完整写法，如 DualAccept、dual_accept
func ParsePhase(s string) (Phase, error) {
	if p, ok := phaseAliases[s]; ok {
		return p, nil
	}
	return phaseSet.Coerce(s)
}

func (p Phase) String() string {
	return phaseSet.Label(p)
}

func (p Phase) IsValid() bool {
	return phaseSet.Contains(p)
}

// AcceptsTyped 调用点是否接受强类型成员
func (p Phase) AcceptsTyped() bool {
	return p >= PhaseDualAccept && p <= PhaseFinalize
}

// AcceptsPrimitive 调用点是否接受原始值
func (p Phase) AcceptsPrimitive() bool {
	return p >= PhaseIntroduce && p <= PhaseDeprecate
}

// PrimitiveDeprecated 原始值入口是否已废弃
func (p Phase) PrimitiveDeprecated() bool {
	return p == PhaseDeprecate
}

// Next 返回下一阶段，Finalize 之后没有下一阶段
func (p Phase) Next() (Phase, bool) {
	if !p.IsValid() || p == PhaseFinalize {
		return p, false
	}
	return p + 1, true
}

// CanAdvanceTo 是否可以从 p 变更到 next（保持或前进）
func (p Phase) CanAdvanceTo(next Phase) bool {
	return p.IsValid() && next.IsValid() && next >= p
}

func (p Phase) MarshalText() ([]byte, error) {
	return phaseSet.MarshalText(p)
}

func (p *Phase) UnmarshalText(text []byte) error {
	v, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
