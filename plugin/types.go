package plugin

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"slices"

	"github.com/donutnomad/gg"
	"go.uber.org/zap"
)

// TargetKind 表示注解目标的类型
type TargetKind int

const (
	TargetStruct    TargetKind = iota + 1 // 结构体
	TargetInterface                       // 接口
	TargetFunc                            // 包级函数
	TargetMethod                          // 结构体方法
	TargetVar                             // 包级变量
	TargetConst                           // 包级常量
	TargetType                            // 其它具名类型，如 type Mode string
)

func (k TargetKind) String() string {
	switch k {
	case TargetStruct:
		return "struct"
	case TargetInterface:
		return "interface"
	case TargetFunc:
		return "func"
	case TargetMethod:
		return "method"
	case TargetVar:
		return "var"
	case TargetConst:
		return "const"
	case TargetType:
		return "type"
	default:
		return "unknown"
	}
}

// ParamDef 定义注解参数的元信息
type ParamDef struct {
	Name        string // 参数名称
	Required    bool   // 是否必填
	Default     string // 默认值（如果不是必填）
	Description string // 参数描述
}

// Annotation 表示解析后的注解
type Annotation struct {
	Name   string            // 注解名称，如 "Enum"
	Params map[string]string // 注解参数，如 phase=dual
	Raw    string            // 原始注解文本
}

// Target 表示注解的目标
type Target struct {
	Kind        TargetKind // 目标类型
	Name        string     // 名称（类型名、函数名、方法名、变量名）
	PackageName string     // 包名
	FilePath    string     // 文件路径
	Position    token.Pos  // 位置信息

	// 方法特有字段
	ReceiverName string // 接收者名称（仅方法）
	ReceiverType string // 接收者类型（仅方法）

	// AST 节点（可选，用于深度解析）
	Node ast.Node
}

// AnnotatedTarget 表示带注解的目标
type AnnotatedTarget struct {
	Target       *Target       // 目标信息
	Annotations  []*Annotation // 注解列表
	ParsedParams any           // 解析后的参数结构体
}

// ScanResult 表示扫描结果
type ScanResult struct {
	Structs    []*AnnotatedTarget // 带注解的结构体
	Interfaces []*AnnotatedTarget // 带注解的接口
	Types      []*AnnotatedTarget // 带注解的其它具名类型
	Funcs      []*AnnotatedTarget // 带注解的包级函数
	Methods    []*AnnotatedTarget // 带注解的方法
	Vars       []*AnnotatedTarget // 带注解的包级变量
	Consts     []*AnnotatedTarget // 带注解的包级常量

	// PackageConfigs 包级配置
	// key: 包目录
	PackageConfigs map[string]*PackageConfig
}

// All 按 结构体、接口、具名类型、函数、方法、变量、常量 的顺序返回所有目标
func (r *ScanResult) All() []*AnnotatedTarget {
	return slices.Concat(r.Structs, r.Interfaces, r.Types, r.Funcs, r.Methods, r.Vars, r.Consts)
}

// Len 目标总数
func (r *ScanResult) Len() int {
	return len(r.Structs) + len(r.Interfaces) + len(r.Types) + len(r.Funcs) + len(r.Methods) + len(r.Vars) + len(r.Consts)
}

// GenerateContext 生成上下文，传递给 Generator
type GenerateContext struct {
	Targets        []*AnnotatedTarget        // 该 Generator 需要处理的目标
	PackageConfigs map[string]*PackageConfig // 包级配置，key: 包目录
	DefaultOutput  string                    // 命令行指定的默认输出路径（最低优先级）
	Verbose        bool                      // 详细输出
	Logger         *zap.Logger               // 日志，可能为 nil
}

// GetPackageConfig 获取源文件所在包的配置
func (c *GenerateContext) GetPackageConfig(filePath string) *PackageConfig {
	if c.PackageConfigs == nil {
		return nil
	}
	return c.PackageConfigs[filepath.Dir(filePath)]
}

// Log 返回可用的 logger
func (c *GenerateContext) Log() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// GenerateResult 生成结果
// Generator 返回 gg 定义，由聚合器统一处理
type GenerateResult struct {
	// Definitions 是生成的 gg 定义
	// key: 输出文件路径（相对路径或绝对路径）
	Definitions map[string]*gg.Generator

	// Errors 错误列表
	Errors []error

}

// PackageConfig 包级生成配置
// 通过 // go:enumshift: 注释定义，对同一目录下的所有文件生效
// 示例:
//
//	// go:enumshift: -output `$FILE_enum_gen`
//	// go:enumshift: plugin:enum -output `enums_gen`
type PackageConfig struct {
	PackageDir string // 包目录

	// DefaultOutput 默认输出路径（对所有插件生效）
	DefaultOutput string

	// PluginOutputs 插件特定的输出路径
	// key: 插件名（小写）, value: 输出路径
	PluginOutputs map[string]string
}

// GetPluginOutput 获取指定插件的输出路径
// 优先返回插件特定配置，其次返回默认配置，最后返回空字符串
func (c *PackageConfig) GetPluginOutput(pluginName string) string {
	if c == nil {
		return ""
	}
	if output, ok := c.PluginOutputs[pluginName]; ok {
		return output
	}
	return c.DefaultOutput
}

func NewGenerateResult() *GenerateResult {
	return &GenerateResult{Definitions: make(map[string]*gg.Generator)}
}

// AddDefinition 记录 path 的 gg 定义，同一 path 的定义按添加顺序合并
func (r *GenerateResult) AddDefinition(path string, gen *gg.Generator) {
	if r.Definitions == nil {
		r.Definitions = make(map[string]*gg.Generator)
	}
	if existing, ok := r.Definitions[path]; ok {
		existing.Body().AddLine()
		existing.Merge(gen)
		return
	}
	r.Definitions[path] = gen
}

// AddError 记录单个目标的错误，不影响其它目标
func (r *GenerateResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
}
