package invalid

// 原始值重复

// @Enum
type Dup string

const (
	DupA Dup = "a"
	DupB Dup = "a"
)

// 底层类型不是字符串或整数

// @Enum
type Weight float64

const WeightLight Weight = 0.5

// 没有任何常量

// @Enum
type Empty string

// 未知阶段

// @Enum(phase=rollout)
type Stage string

const StageOne Stage = "one"

// 未知原始值来源

// @Enum(backing=label)
type Kind string

const KindA Kind = "a"

// 成员名只差首字母大小写

// @Enum
type Clash string

const (
	ClashFoo Clash = "upper"
	foo      Clash = "lower"
)
