package plugin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/donutnomad/enumshift/internal/utils"
	"github.com/donutnomad/gg"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GeneratedHeader 生成文件的头注释
const GeneratedHeader = "Code generated by enumshift. DO NOT EDIT."

// Run 运行代码生成
// 1. 扫描指定路径的注解
// 2. 将目标分发给对应的生成器
// 3. 执行生成器
// 4. 合并同一文件的 gg 定义并写入文件
func Run(ctx context.Context, registry *Registry, patterns ...string) error {
	opts := &RunOptions{
		Registry: registry,
		Patterns: patterns,
	}
	return RunWithOptions(ctx, opts)
}

// RunOptions 运行选项
type RunOptions struct {
	Registry *Registry
	Patterns []string
	Verbose  bool
	Output   string      // 命令行指定的默认输出路径（最低优先级）
	Async    bool        // 是否异步执行生成器
	Workers  int         // 扫描并发数，<=0 时使用 CPU 核数
	Check    bool        // 只检查生成文件是否过期，不写入
	Logger   *zap.Logger // 日志，nil 时不输出
	Stdout   io.Writer   // check 模式下 diff 的输出位置，nil 时使用 os.Stdout
}

// RunStats 运行统计信息
type RunStats struct {
	ScanDuration     time.Duration // 扫描耗时
	GenerateDuration time.Duration // 生成耗时
	TotalDuration    time.Duration // 总耗时
	TargetCount      int           // 目标数量
	FileCount        int           // 生成文件数量
	Stale            []string      // check 模式下内容过期的文件
}

// RunWithOptions 带选项运行
func RunWithOptions(ctx context.Context, opts *RunOptions) error {
	_, err := RunWithOptionsAndStats(ctx, opts)
	return err
}

// RunWithOptionsAndStats 带选项运行并返回统计信息
func RunWithOptionsAndStats(ctx context.Context, opts *RunOptions) (*RunStats, error) {
	totalStart := time.Now()
	stats := &RunStats{}

	registry := opts.Registry
	if registry == nil {
		return nil, fmt.Errorf("未指定生成器注册表")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	// 获取所有已注册的注解
	annotations := registry.Annotations()
	if len(annotations) == 0 {
		return nil, fmt.Errorf("没有已注册的生成器")
	}

	// 扫描
	scanStart := time.Now()
	scanner := NewScanner(
		WithAnnotationFilter(annotations...),
		WithScannerVerbose(opts.Verbose),
		WithScannerLogger(logger),
		WithWorkers(opts.Workers),
	)
	result, err := scanner.Scan(ctx, opts.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("扫描失败: %w", err)
	}
	stats.ScanDuration = time.Since(scanStart)

	if result.Len() == 0 {
		logger.Debug("没有找到任何带注解的目标")
		stats.TotalDuration = time.Since(totalStart)
		return stats, nil
	}

	stats.TargetCount = result.Len()
	logger.Debug("扫描完成",
		zap.Int("targets", stats.TargetCount),
		zap.Duration("elapsed", stats.ScanDuration))

	generateStart := time.Now()

	// 分发目标
	dispatch := registry.DispatchTargets(result)

	// 收集所有 gg 定义，按输出路径分组
	// key: 输出文件路径, value: []*gg.Generator (多个生成器可能输出到同一文件)
	fileDefinitions := make(map[string][]*gg.Generator)
	var allErrors []error

	// 按优先级排序生成器名称（优先级数字越小越靠前）
	genNames := slices.Collect(maps.Keys(dispatch))
	slices.SortFunc(genNames, func(a, b string) int {
		genA, _ := registry.GetByName(a)
		genB, _ := registry.GetByName(b)
		return compareGenerators(genA, genB)
	})

	// 收集生成器名称，用于添加分隔符
	// key: 输出文件路径, value: 生成器名称列表（按优先级顺序）
	fileGenNames := make(map[string][]string)

	// 先串行解析所有目标的参数（避免并发修改共享数据）
	for _, genName := range genNames {
		gen, ok := registry.GetByName(genName)
		if !ok {
			continue
		}
		// 参数无效的目标不再交给生成器
		valid, errs := parseTargetParams(gen, dispatch[genName])
		dispatch[genName] = valid
		allErrors = append(allErrors, errs...)
	}

	// genResultItem 存储单个生成器的执行结果
	type genResultItem struct {
		genName string
		result  *GenerateResult
		err     error
	}

	// 执行生成器的函数
	executeGenerator := func(genName string) genResultItem {
		targets := dispatch[genName]
		gen, ok := registry.GetByName(genName)
		if !ok {
			return genResultItem{genName: genName}
		}

		genLogger := logger.With(zap.String("generator", genName))
		genLogger.Debug("执行生成器", zap.Int("targets", len(targets)))

		genCtx := &GenerateContext{
			Targets:        targets,
			PackageConfigs: result.PackageConfigs,
			DefaultOutput:  opts.Output,
			Verbose:        opts.Verbose,
			Logger:         genLogger,
		}

		start := time.Now()
		genResult, err := gen.Generate(genCtx)
		genLogger.Debug("生成器执行完成", zap.Duration("elapsed", time.Since(start)))

		return genResultItem{genName: genName, result: genResult, err: err}
	}

	// 结果按 genNames 的顺序存放，合并时优先级高的在前
	items := make([]genResultItem, len(genNames))
	if opts.Async {
		var g errgroup.Group
		for i, genName := range genNames {
			g.Go(func() error {
				items[i] = executeGenerator(genName)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, genName := range genNames {
			items[i] = executeGenerator(genName)
		}
	}

	for _, item := range items {
		if item.err != nil {
			allErrors = append(allErrors, fmt.Errorf("生成器 %s 执行失败: %w", item.genName, item.err))
			continue
		}
		if item.result == nil {
			continue
		}

		// 收集 gg 定义，按文件分组
		for path, def := range item.result.Definitions {
			fileDefinitions[path] = append(fileDefinitions[path], def)
			fileGenNames[path] = append(fileGenNames[path], item.genName)
		}
		allErrors = append(allErrors, item.result.Errors...)
	}

	// 按路径排序，保证输出顺序稳定
	paths := slices.Sorted(maps.Keys(fileDefinitions))

	// 合并同一文件的定义并写入
	for _, path := range paths {
		merged, err := mergeDefinitionsWithSeparator(fileDefinitions[path], fileGenNames[path])
		if err != nil {
			allErrors = append(allErrors, fmt.Errorf("合并文件 %s 的定义失败: %w", path, err))
			continue
		}

		if opts.Check {
			diff, err := diffGGFile(path, merged)
			if err != nil {
				allErrors = append(allErrors, fmt.Errorf("检查文件 %s 失败: %w", path, err))
				continue
			}
			if diff != "" {
				stats.Stale = append(stats.Stale, path)
				_, _ = fmt.Fprint(stdout, diff)
			}
			continue
		}

		if err := writeGGFile(path, merged); err != nil {
			allErrors = append(allErrors, fmt.Errorf("写入文件 %s 失败: %w", path, err))
		} else {
			stats.FileCount++
			logger.Info("生成文件", zap.String("path", path))
		}
	}

	stats.GenerateDuration = time.Since(generateStart)
	stats.TotalDuration = time.Since(totalStart)

	if len(allErrors) > 0 {
		for _, e := range allErrors {
			logger.Error("生成失败", zap.Error(e))
		}
		return stats, fmt.Errorf("生成过程中出现 %d 个错误", len(allErrors))
	}

	if len(stats.Stale) > 0 {
		return stats, fmt.Errorf("%d 个生成文件已过期，请重新运行 gen", len(stats.Stale))
	}

	return stats, nil
}

// parseTargetParams 将目标上属于 gen 的注解参数解析到参数结构体
// 返回解析成功的目标
func parseTargetParams(gen Generator, targets []*AnnotatedTarget) ([]*AnnotatedTarget, []error) {
	var errs []error
	paramDefs := gen.ParamDefs()
	valid := make([]*AnnotatedTarget, 0, len(targets))

	for _, target := range targets {
		// 创建参数结构体实例
		paramsProto := gen.NewParams()
		if paramsProto == nil {
			valid = append(valid, target) // 该生成器不需要参数
			continue
		}

		// 找到目标上属于当前生成器的注解
		var targetAnn *Annotation
		for _, supportedAnn := range gen.Annotations() {
			if targetAnn = GetAnnotation(target.Annotations, supportedAnn); targetAnn != nil {
				break
			}
		}
		if targetAnn == nil {
			valid = append(valid, target)
			continue
		}

		// 解析注解参数到结构体
		if err := ParseAnnotationParams(targetAnn, paramsProto, paramDefs); err != nil {
			errs = append(errs, fmt.Errorf("解析 %s 的参数失败: %w", target.Target.Name, err))
			continue
		}
		// 存储解析后的参数（解引用指针）
		val := reflect.ValueOf(paramsProto)
		if val.Kind() != reflect.Ptr {
			errs = append(errs, fmt.Errorf("NewParams() 必须返回指针类型, 得到: %T", paramsProto))
			continue
		}
		target.ParsedParams = val.Elem().Interface()
		valid = append(valid, target)
	}

	return valid, errs
}

// mergeDefinitionsWithSeparator 合并多个 gg.Generator 定义到一个文件，并添加分隔符
func mergeDefinitionsWithSeparator(definitions []*gg.Generator, genNames []string) (*gg.Generator, error) {
	if len(definitions) == 0 {
		return nil, fmt.Errorf("没有定义需要合并")
	}

	// 创建新的 generator 用于合并
	merged := gg.New()
	// 头注释与 package 之间空一行，避免成为包文档
	merged.SetHeader("%s\n", GeneratedHeader)

	// 所有定义必须属于同一个包
	pkgNames := lo.Uniq(lo.FilterMap(definitions, func(def *gg.Generator, _ int) (string, bool) {
		return def.PackageName(), def.PackageName() != ""
	}))
	if len(pkgNames) > 1 {
		return nil, fmt.Errorf("包名不一致: %s", strings.Join(pkgNames, " vs "))
	}
	if len(pkgNames) == 1 {
		merged.SetPackage(pkgNames[0])
	}

	// imports 与别名交给 Merge 处理
	for i, def := range definitions {
		genName := "unknown"
		if i < len(genNames) {
			genName = genNames[i]
		}
		merged.Body().AddLine()
		merged.Body().AddString(fmt.Sprintf("// ================ %s ================", genName))
		merged.Body().AddLine()
		merged.Merge(def)
	}

	return merged, nil
}

// writeGGFile 将 gg 定义写入文件
func writeGGFile(path string, gen *gg.Generator) error {
	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	// 写入文件并格式化
	return utils.WriteFormat(path, gen.Bytes())
}

// diffGGFile 对比磁盘上的文件与即将生成的内容，返回 unified diff，一致时返回空字符串
func diffGGFile(path string, gen *gg.Generator) (string, error) {
	want, err := utils.Format(path, gen.Bytes())
	if err != nil {
		return "", err
	}

	have, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if bytes.Equal(have, want) {
		return "", nil
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(have)),
		B:        difflib.SplitLines(string(want)),
		FromFile: path,
		ToFile:   path + " (generated)",
		Context:  3,
	})
}

// GetOutputPath 根据注解参数和默认规则计算输出路径
// 优先级：注解参数 > 包级插件配置 > 包级默认配置 > 命令行参数 > 默认文件名
// 模板变量：
//   - $FILE: 源文件名（不含 .go 后缀）
//   - $PACKAGE: 包名
func GetOutputPath(target *Target, ann *Annotation, defaultFileName string, pkgConfig *PackageConfig, pluginName string, cmdOutput string) string {
	var output string

	// 1. 优先使用注解参数
	if ann != nil {
		output = ann.GetParam("output")
	}

	// 2. 其次使用包级配置
	if output == "" && pkgConfig != nil {
		output = pkgConfig.GetPluginOutput(strings.ToLower(pluginName))
	}

	// 3. 再次使用命令行参数
	if output == "" && cmdOutput != "" {
		output = cmdOutput
	}

	// 4. 如果都没有，使用默认输出
	if output == "" {
		return GetDefaultOutputPath(target, defaultFileName)
	}

	// 处理模板变量
	output = replaceTemplateVars(output, target)

	// 确保有 .go 后缀
	if !strings.HasSuffix(output, ".go") {
		output += ".go"
	}

	if filepath.IsAbs(output) {
		return output
	}
	// 相对于源文件目录
	return filepath.Join(filepath.Dir(target.FilePath), output)
}

// replaceTemplateVars 替换模板变量
// 支持的变量：
//   - $FILE: 源文件名（不含 .go 后缀）
//   - $PACKAGE: 包名
func replaceTemplateVars(template string, target *Target) string {
	fileName := strings.TrimSuffix(filepath.Base(target.FilePath), ".go")
	template = strings.ReplaceAll(template, "$FILE", fileName)
	template = strings.ReplaceAll(template, "$PACKAGE", target.PackageName)
	return template
}

// GetDefaultOutputPath 获取包级别的默认输出路径
// 同一个包内的所有注解默认输出到同一个文件
func GetDefaultOutputPath(target *Target, defaultFileName string) string {
	if defaultFileName == "" {
		defaultFileName = "generate.go"
	}
	defaultFileName = replaceTemplateVars(defaultFileName, target)
	return filepath.Join(filepath.Dir(target.FilePath), defaultFileName)
}
