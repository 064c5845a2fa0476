// Package enumgen 为带 @Enum 注解的具名类型生成强类型枚举代码。
//
// 注解写在类型声明上，成员为同一包中该类型的全部常量：
//
//	// @Enum(phase=dual, backing=value, sql=true)
//	type SearchMode string
//
//	const (
//		SearchModePartial SearchMode = "partial"
//		SearchModeFull    SearchMode = "full"
//	)
//
// 生成内容随 phase 变化：
//   - introduce: 取值集合、Parse、Match，调用点仍传原始值
//   - dual:      额外生成 <Type>Input 联合输入以及 Of / FromBacking / Resolve
//   - deprecate: 同 dual，FromBacking 带 Deprecated 标记
//   - finalize:  移除联合输入，调用点只能传成员
package enumgen
