package enumgen

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/donutnomad/enumshift/enum"
	"github.com/donutnomad/enumshift/plugin"
	"go.uber.org/zap"
)

const (
	generatorName  = "enum"
	annotationName = "Enum"

	// defaultOutput 默认输出文件，以 _gen.go 结尾，扫描时会被跳过
	defaultOutput = "$FILE_enum_gen.go"
)

// EnumParams 定义 Enum 注解支持的参数
type EnumParams struct {
	Phase    string `param:"name=phase,required=false,default=introduce,description=迁移阶段: introduce / dual / deprecate / finalize"`
	Backing  string `param:"name=backing,required=false,default=value,description=原始值来源: value 为常量值 / name 为成员名的 snake_case"`
	Text     bool   `param:"name=text,required=false,default=true,description=生成 MarshalText 和 UnmarshalText"`
	SQL      bool   `param:"name=sql,required=false,default=false,description=生成 Value / Scan / GormDataType"`
	Stringer bool   `param:"name=stringer,required=false,default=true,description=生成 String 方法"`
}

// PhaseLock 记录每个枚举已发布的阶段，防止阶段回退
type PhaseLock interface {
	Check(key string, phase enum.Phase) error
	Record(key string, phase enum.Phase)
}

// EnumGenerator 实现 plugin.Generator 接口
type EnumGenerator struct {
	plugin.BaseGenerator

	lock   PhaseLock
	loader *loader
}

// Option 生成器选项
type Option func(*EnumGenerator)

// WithPhaseLock 启用阶段锁
func WithPhaseLock(lock PhaseLock) Option {
	return func(g *EnumGenerator) {
		g.lock = lock
	}
}

func NewEnumGenerator(opts ...Option) *EnumGenerator {
	gen := &EnumGenerator{
		BaseGenerator: *plugin.NewBaseGenerator(
			generatorName,
			[]string{annotationName},
			[]plugin.TargetKind{plugin.TargetType},
			plugin.WithParams(EnumParams{}),
			plugin.WithPriority(30),
		),
		loader: newLoader(),
	}
	for _, opt := range opts {
		opt(gen)
	}
	return gen
}

// Generate 执行代码生成
func (g *EnumGenerator) Generate(ctx *plugin.GenerateContext) (*plugin.GenerateResult, error) {
	result := plugin.NewGenerateResult()
	log := ctx.Log()

	enums, errs := g.Collect(ctx)
	for _, err := range errs {
		result.AddError(err)
	}

	// 按输出路径分组，同一文件中的多个枚举合并输出
	fileEnums := make(map[string][]*Enum)
	for _, e := range enums {
		if g.lock != nil {
			if err := g.lock.Check(e.Key(), e.Phase); err != nil {
				result.AddError(fmt.Errorf("%s: %w", e.Type, err))
				continue
			}
		}
		fileEnums[e.Output] = append(fileEnums[e.Output], e)
	}

	outputs := make([]string, 0, len(fileEnums))
	for output := range fileEnums {
		outputs = append(outputs, output)
	}
	slices.Sort(outputs)

	for _, output := range outputs {
		list := fileEnums[output]
		gen, err := render(list)
		if err != nil {
			result.AddError(fmt.Errorf("生成 %s 失败: %w", output, err))
			continue
		}
		result.AddDefinition(output, gen)

		for _, e := range list {
			if g.lock != nil {
				g.lock.Record(e.Key(), e.Phase)
			}
			log.Debug("处理枚举",
				zap.String("type", e.Type),
				zap.Stringer("phase", e.Phase),
				zap.Int("members", len(e.Members)),
				zap.String("output", output))
		}
	}

	return result, nil
}

// Collect 解析所有目标，返回枚举定义
// 单个目标失败不影响其它目标
func (g *EnumGenerator) Collect(ctx *plugin.GenerateContext) ([]*Enum, []error) {
	var (
		enums []*Enum
		errs  []error
	)

	for _, at := range ctx.Targets {
		ann := plugin.GetAnnotation(at.Annotations, annotationName)
		if ann == nil || at.Target.Kind != plugin.TargetType {
			continue
		}
		ctx.Log().Debug("解析注解",
			zap.String("type", at.Target.Name),
			zap.Stringer("annotation", ann))

		params, err := g.paramsOf(at, ann)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", at.Target.Name, err))
			continue
		}

		e, err := g.build(at.Target, params)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", at.Target.Name, err))
			continue
		}

		e.Output = plugin.GetOutputPath(at.Target, ann, defaultOutput,
			ctx.GetPackageConfig(at.Target.FilePath), g.Name(), ctx.DefaultOutput)
		enums = append(enums, e)
	}

	slices.SortFunc(enums, func(a, b *Enum) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return strings.Compare(a.Type, b.Type)
	})

	return enums, errs
}

// paramsOf 获取解析好的参数；未经 plugin.Run 解析时（例如 describe）现场解析
func (g *EnumGenerator) paramsOf(at *plugin.AnnotatedTarget, ann *plugin.Annotation) (EnumParams, error) {
	if at.ParsedParams != nil {
		params, ok := at.ParsedParams.(EnumParams)
		if !ok {
			return EnumParams{}, fmt.Errorf("ParsedParams 类型断言失败: %T", at.ParsedParams)
		}
		return params, nil
	}

	var params EnumParams
	if err := plugin.ParseAnnotationParams(ann, &params, g.ParamDefs()); err != nil {
		return EnumParams{}, fmt.Errorf("解析参数失败: %w", err)
	}
	return params, nil
}

// build 加载类型信息并构造 Enum
func (g *EnumGenerator) build(target *plugin.Target, params EnumParams) (*Enum, error) {
	phase, err := enum.ParsePhase(params.Phase)
	if err != nil {
		return nil, fmt.Errorf("无效的 phase %q (必须是: %s)", params.Phase, phaseNames())
	}

	pkg, err := g.loader.load(filepath.Dir(target.FilePath))
	if err != nil {
		return nil, err
	}

	underlying, members, values, err := inspect(pkg, target.Name)
	if err != nil {
		return nil, err
	}

	e := &Enum{
		Type:       target.Name,
		Package:    target.PackageName,
		PkgPath:    pkg.PkgPath,
		File:       target.FilePath,
		Phase:      phase,
		Source:     BackingSource(params.Backing),
		Members:    members,
		underlying: underlying,
		text:       params.Text,
		sql:        params.SQL,
		stringer:   params.Stringer,
	}
	if err := e.assignBacking(values); err != nil {
		return nil, err
	}
	return e, nil
}

func phaseNames() string {
	names := make([]string, 0, 4)
	for _, p := range enum.Phases() {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}
