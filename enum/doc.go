// Package enum 提供强类型枚举的运行时支持，用于以 Expand & Contract 方式
// 将弱类型的 API 参数（字符串/整数）迁移为封闭的强类型集合，而不破坏现有调用方。
//
// # 取值集合
//
// Set 记录成员、成员名和原始值的一一对应关系：
//
//	type SearchMode string
//
//	const (
//	    SearchModePartial SearchMode = "partial"
//	    SearchModeFull    SearchMode = "full"
//	)
//
//	var modes = enum.MustNewSet("SearchMode",
//	    enum.Entry[SearchMode, string]{Value: SearchModePartial, Backing: "partial", Name: "Partial"},
//	    enum.Entry[SearchMode, string]{Value: SearchModeFull, Backing: "full", Name: "Full"},
//	)
//
//	mode, err := modes.Coerce("partial") // SearchModePartial
//	_, err = modes.Coerce("Partial")     // errors.Is(err, enum.ErrInvalidInput)
//
// # 迁移阶段
//
// 调用点接受的参数类型随 Phase 变化：
//   - PhaseIntroduce:  只接受原始值，强类型集合与之并存
//   - PhaseDualAccept: 接受 Input（成员或原始值）
//   - PhaseDeprecate:  同上，原始值入口标记为 Deprecated
//   - PhaseFinalize:   只接受成员
//
// 阶段是构建期的标注（@Enum(phase=...)），由 enumgen 决定生成哪些 API，
// 运行时不做阶段判断。
//
// # 分发
//
// 生成的 Match 函数为每个成员接收一个位置参数，新增成员会改变函数签名，
// 未处理新成员的调用点将无法编译。手写场景可使用 NewDispatcher，
// 构造时校验分支完整性。
package enum
