package grouped

type (
	// @Enum
	Color string

	// @Enum(phase=dual)
	Size int

	// 没有注解
	Shape string
)

const (
	ColorRed  Color = "red"
	ColorBlue Color = "blue"
)

const (
	SizeSmall Size = 1
	SizeLarge Size = 2
)

const ShapeCircle Shape = "circle"
