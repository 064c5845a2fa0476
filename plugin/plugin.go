package plugin

import "reflect"

// defaultPriority 未指定优先级时的默认值
const defaultPriority = 100

// Generator 是注解处理器接口
// 一个 Generator 认领若干注解，Run 把扫描到的目标按注解分发给它
type Generator interface {
	// Name 生成器名称，同时用作 go:enumshift: plugin:<name> 的键
	Name() string

	// Annotations 认领的注解名，一个注解只能属于一个生成器
	Annotations() []string

	// SupportedTargets 能处理的目标类型，例如 enumgen 只处理 TargetType
	SupportedTargets() []TargetKind

	// ParamDefs 注解参数定义，用于帮助文本和默认值
	ParamDefs() []ParamDef

	// NewParams 返回参数结构体的新指针，nil 表示不需要参数
	NewParams() any

	// Priority 数字越小越靠前，同一输出文件中按此顺序合并
	Priority() int

	// Generate 返回按输出路径分组的 gg 定义
	Generate(ctx *GenerateContext) (*GenerateResult, error)
}

// BaseOption 配置 BaseGenerator
type BaseOption func(*BaseGenerator)

// WithParams 使用参数结构体，参数定义从 param tag 中解析
// proto 是结构体零值，例如 EnumParams{}
func WithParams(proto any) BaseOption {
	return func(g *BaseGenerator) {
		g.paramsProto = proto
		g.paramDefs = ParseParamsFromStruct(proto)
	}
}

// WithParamDefs 只提供参数定义，不解析到结构体
func WithParamDefs(defs []ParamDef) BaseOption {
	return func(g *BaseGenerator) {
		g.paramDefs = defs
	}
}

// WithPriority 设置优先级
func WithPriority(priority int) BaseOption {
	return func(g *BaseGenerator) {
		g.priority = priority
	}
}

// BaseGenerator 提供 Generator 中除 Generate 以外的实现，可嵌入
type BaseGenerator struct {
	name        string
	annotations []string
	targets     []TargetKind
	paramDefs   []ParamDef
	paramsProto any
	priority    int
}

func NewBaseGenerator(name string, annotations []string, targets []TargetKind, opts ...BaseOption) *BaseGenerator {
	g := &BaseGenerator{
		name:        name,
		annotations: annotations,
		targets:     targets,
		priority:    defaultPriority,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *BaseGenerator) Name() string {
	return g.name
}

func (g *BaseGenerator) Annotations() []string {
	return g.annotations
}

func (g *BaseGenerator) SupportedTargets() []TargetKind {
	return g.targets
}

func (g *BaseGenerator) ParamDefs() []ParamDef {
	return g.paramDefs
}

// NewParams 每次返回一个新的零值指针
func (g *BaseGenerator) NewParams() any {
	if g.paramsProto == nil {
		return nil
	}
	typ := reflect.TypeOf(g.paramsProto)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return reflect.New(typ).Interface()
}

func (g *BaseGenerator) Priority() int {
	return g.priority
}
