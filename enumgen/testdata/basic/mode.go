package basic

// 字符串枚举，处于双轨阶段

// @Enum(phase=dual, sql=true)
type SearchMode string

const (
	SearchModePartial SearchMode = "partial"
	SearchModeFull    SearchMode = "full"
)

// 没有注解，不会生成
type Plain string

const PlainA Plain = "a"
