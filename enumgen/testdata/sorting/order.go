package sorting

// 整数枚举，原始值取成员名

// @Enum(phase=finalize, backing=name)
type SortOrder int

const (
	SortOrderAscending SortOrder = iota + 1
	SortOrderDescending
)

// @Enum(phase=deprecate, text=false, stringer=false)
type Priority uint8

const (
	PriorityLow  Priority = 10
	PriorityHigh Priority = 20
)
