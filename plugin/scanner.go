package plugin

import (
	"bufio"
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Scanner 两阶段并行注解扫描器
// 第一阶段：快速文本匹配，找出可能包含注解的文件
// 第二阶段：对匹配的文件进行 AST 解析
type Scanner struct {
	workers int
	verbose bool
	logger  *zap.Logger

	// 注解过滤器（可选）
	annotationFilter []string
}

// ScannerOption 扫描器选项
type ScannerOption func(*Scanner)

func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithScannerVerbose(v bool) ScannerOption {
	return func(s *Scanner) {
		s.verbose = v
	}
}

func WithScannerLogger(l *zap.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithAnnotationFilter(annotations ...string) ScannerOption {
	return func(s *Scanner) {
		s.annotationFilter = annotations
	}
}

func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		workers: runtime.NumCPU(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// quickMatchRegex 快速匹配注解的正则
// 匹配 @Name 或 @Name(...) 模式
var quickMatchRegex = regexp.MustCompile(`@(\w+)(?:\([^)]*\))?`)

// fileResult 单个文件的解析结果
type fileResult struct {
	structs    []*AnnotatedTarget
	interfaces []*AnnotatedTarget
	types      []*AnnotatedTarget
	funcs      []*AnnotatedTarget
	methods    []*AnnotatedTarget
	vars       []*AnnotatedTarget
	consts     []*AnnotatedTarget
	pkgConfig  *PackageConfig
	file       string
	err        error
}

// Scan 扫描指定路径
// 支持: ./... ./pkg/... ./pkg /abs/path/...
func (s *Scanner) Scan(ctx context.Context, patterns ...string) (*ScanResult, error) {
	// 收集所有文件
	allFiles, err := s.collectFiles(patterns)
	if err != nil {
		return nil, err
	}

	if len(allFiles) == 0 {
		return &ScanResult{}, nil
	}

	// ========== 第一阶段：快速匹配 ==========
	matchedFiles, err := s.quickMatch(ctx, allFiles)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("快速匹配完成",
		zap.Int("files", len(allFiles)),
		zap.Int("matched", len(matchedFiles)))

	if len(matchedFiles) == 0 {
		return &ScanResult{}, nil
	}

	// ========== 第二阶段：AST 解析 ==========
	return s.parseFiles(ctx, matchedFiles)
}

// runWorkers 启动 workers 个工作者并发处理 files，结果写入返回的 channel
// ctx 取消后不再派发新文件，所有工作者退出后 channel 关闭
func runWorkers[R any](ctx context.Context, workers int, files []string, fn func(string) R) <-chan R {
	resultCh := make(chan R, len(files))
	fileCh := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileCh {
				resultCh <- fn(file)
			}
		}()
	}

	// 发送文件
	go func() {
		defer close(fileCh)
		for _, file := range files {
			select {
			case <-ctx.Done():
				return
			case fileCh <- file:
			}
		}
	}()

	// 等待完成
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	return resultCh
}

// quickMatch 第一阶段：快速文本匹配
// 并行读取文件，检查是否包含 @xxx 模式
func (s *Scanner) quickMatch(ctx context.Context, files []string) ([]string, error) {
	type matchResult struct {
		file    string
		matched bool
		err     error
	}

	resultCh := runWorkers(ctx, s.workers, files, func(file string) matchResult {
		matched, err := s.QuickMatchFile(file)
		return matchResult{file: file, matched: matched, err: err}
	})

	// 收集匹配的文件
	var matchedFiles []string
	for r := range resultCh {
		if r.err != nil {
			s.logger.Debug("跳过无法读取的文件", zap.String("file", r.file), zap.Error(r.err))
			continue
		}
		if r.matched {
			matchedFiles = append(matchedFiles, r.file)
		}
	}

	return matchedFiles, ctx.Err()
}

// QuickMatchFile 快速检查文件是否包含注解或 go:enumshift 配置
// 用于 dev 模式判断文件是否需要触发代码生成
func (s *Scanner) QuickMatchFile(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// 只检查注释行
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "/*") {
			continue
		}

		// 检查 go:enumshift: 配置（支持 //go:enumshift: 和 // go:enumshift:）
		if strings.Contains(trimmed, "go:enumshift:") {
			return true, nil
		}

		// 查找 @xxx 模式
		matches := quickMatchRegex.FindAllStringSubmatch(line, -1)
		for _, match := range matches {
			if len(match) > 1 {
				annName := match[1]
				// 如果有过滤器，检查是否匹配
				if len(s.annotationFilter) > 0 {
					for _, filter := range s.annotationFilter {
						if annName == filter {
							return true, nil
						}
					}
				} else {
					return true, nil
				}
			}
		}
	}

	return false, scanner.Err()
}

// parseFiles 第二阶段：AST 解析
func (s *Scanner) parseFiles(ctx context.Context, files []string) (*ScanResult, error) {
	resultCh := runWorkers(ctx, s.workers, files, s.parseFile)

	// 收集结果
	result := &ScanResult{
		PackageConfigs: make(map[string]*PackageConfig),
	}
	for r := range resultCh {
		if r.err != nil {
			s.logger.Warn("解析文件失败", zap.String("file", r.file), zap.Error(r.err))
			continue
		}
		result.Structs = append(result.Structs, r.structs...)
		result.Interfaces = append(result.Interfaces, r.interfaces...)
		result.Types = append(result.Types, r.types...)
		result.Funcs = append(result.Funcs, r.funcs...)
		result.Methods = append(result.Methods, r.methods...)
		result.Vars = append(result.Vars, r.vars...)
		result.Consts = append(result.Consts, r.consts...)
		if r.pkgConfig != nil {
			s.mergePackageConfig(result.PackageConfigs, r.pkgConfig)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// mergePackageConfig 合并同一包内多个文件的配置，后发现的配置覆盖先前的
func (s *Scanner) mergePackageConfig(configs map[string]*PackageConfig, cfg *PackageConfig) {
	pkgDir := cfg.PackageDir
	existing, ok := configs[pkgDir]
	if !ok {
		configs[pkgDir] = cfg
		return
	}

	if cfg.DefaultOutput != "" {
		if existing.DefaultOutput != "" && existing.DefaultOutput != cfg.DefaultOutput {
			s.logger.Warn("包中存在多个不同的 go:enumshift 默认输出配置，使用后发现的配置",
				zap.String("package", pkgDir))
		}
		existing.DefaultOutput = cfg.DefaultOutput
	}
	for k, v := range cfg.PluginOutputs {
		if existingV, ok := existing.PluginOutputs[k]; ok && existingV != v {
			s.logger.Warn("插件存在多个不同的输出配置，使用后发现的配置",
				zap.String("package", pkgDir), zap.String("plugin", k))
		}
		existing.PluginOutputs[k] = v
	}
}

// parseFile AST 解析单个文件
func (s *Scanner) parseFile(filePath string) (result fileResult) {
	result.file = filePath

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		result.err = err
		return
	}

	packageName := file.Name.Name

	// 解析包级 go:enumshift: 配置
	result.pkgConfig = s.parsePackageConfig(file, filePath)

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				s.parseTypeDecl(filePath, packageName, d, &result)
			case token.VAR:
				s.parseVarConstDecl(filePath, packageName, d, TargetVar, &result)
			case token.CONST:
				s.parseVarConstDecl(filePath, packageName, d, TargetConst, &result)
			}
		case *ast.FuncDecl:
			s.parseFuncDecl(filePath, packageName, d, &result)
		}
	}

	return
}

// specAnnotations 返回类型声明的注解
// 分组声明 type ( ... ) 中优先使用各自 spec 的注释
func (s *Scanner) specAnnotations(decl *ast.GenDecl, typeSpec *ast.TypeSpec) []*Annotation {
	var docText string
	if typeSpec.Doc != nil {
		docText = typeSpec.Doc.Text()
	} else if decl.Doc != nil && !decl.Lparen.IsValid() {
		docText = decl.Doc.Text()
	}
	return s.filter(ParseAnnotations(docText))
}

func (s *Scanner) filter(annotations []*Annotation) []*Annotation {
	if len(s.annotationFilter) > 0 && len(annotations) > 0 {
		return FilterByNames(annotations, s.annotationFilter...)
	}
	return annotations
}

// parseTypeDecl 解析类型声明
func (s *Scanner) parseTypeDecl(filePath, packageName string, decl *ast.GenDecl, result *fileResult) {
	for _, spec := range decl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		annotations := s.specAnnotations(decl, typeSpec)

		target := &Target{
			Name:        typeSpec.Name.Name,
			PackageName: packageName,
			FilePath:    filePath,
			Position:    typeSpec.Pos(),
			Node:        typeSpec,
		}

		switch t := typeSpec.Type.(type) {
		case *ast.StructType:
			if len(annotations) == 0 {
				continue
			}
			target.Kind = TargetStruct
			result.structs = append(result.structs, &AnnotatedTarget{
				Target:      target,
				Annotations: annotations,
			})

		case *ast.InterfaceType:
			target.Kind = TargetInterface
			// 对于接口，还需要检查其方法的注解
			methodAnnotations := s.parseInterfaceMethodAnnotations(t)

			// 合并接口级注解和方法级注解
			allAnnotations := append([]*Annotation{}, annotations...)
			allAnnotations = append(allAnnotations, methodAnnotations...)

			// 如果有任何注解，则添加到结果中
			if len(allAnnotations) > 0 {
				result.interfaces = append(result.interfaces, &AnnotatedTarget{
					Target:      target,
					Annotations: allAnnotations,
				})
			}

		default:
			// type Mode string / type Level int 等具名类型，别名除外
			if len(annotations) == 0 || typeSpec.Assign.IsValid() {
				continue
			}
			target.Kind = TargetType
			result.types = append(result.types, &AnnotatedTarget{
				Target:      target,
				Annotations: annotations,
			})
		}
	}
}

// parseInterfaceMethodAnnotations 解析接口方法的注解
func (s *Scanner) parseInterfaceMethodAnnotations(interfaceType *ast.InterfaceType) []*Annotation {
	var annotations []*Annotation

	if interfaceType.Methods == nil {
		return annotations
	}

	for _, method := range interfaceType.Methods.List {
		if method.Doc == nil {
			continue
		}
		annotations = append(annotations, s.filter(ParseAnnotations(method.Doc.Text()))...)
	}

	return annotations
}

// parseFuncDecl 解析函数声明
func (s *Scanner) parseFuncDecl(filePath, packageName string, decl *ast.FuncDecl, result *fileResult) {
	var docText string
	if decl.Doc != nil {
		docText = decl.Doc.Text()
	}

	annotations := s.filter(ParseAnnotations(docText))
	if len(annotations) == 0 {
		return
	}

	target := &Target{
		Name:        decl.Name.Name,
		PackageName: packageName,
		FilePath:    filePath,
		Position:    decl.Pos(),
		Node:        decl,
	}

	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		target.Kind = TargetMethod
		recv := decl.Recv.List[0]

		if len(recv.Names) > 0 {
			target.ReceiverName = recv.Names[0].Name
		}
		target.ReceiverType = exprToString(recv.Type)

		result.methods = append(result.methods, &AnnotatedTarget{
			Target:      target,
			Annotations: annotations,
		})
	} else {
		target.Kind = TargetFunc
		result.funcs = append(result.funcs, &AnnotatedTarget{
			Target:      target,
			Annotations: annotations,
		})
	}
}

// parseVarConstDecl 解析 var/const 声明
// 分组声明中每个 spec 可以有自己的注解；没有时继承整个声明的注解
func (s *Scanner) parseVarConstDecl(filePath, packageName string, decl *ast.GenDecl, kind TargetKind, result *fileResult) {
	var declAnnotations []*Annotation
	if decl.Doc != nil {
		declAnnotations = s.filter(ParseAnnotations(decl.Doc.Text()))
	}

	for _, spec := range decl.Specs {
		valueSpec, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}

		annotations := declAnnotations
		if valueSpec.Doc != nil {
			if own := s.filter(ParseAnnotations(valueSpec.Doc.Text())); len(own) > 0 {
				annotations = own
			}
		}
		if len(annotations) == 0 {
			continue
		}

		for _, name := range valueSpec.Names {
			if name.Name == "_" {
				continue // 跳过匿名变量
			}

			annotatedTarget := &AnnotatedTarget{
				Target: &Target{
					Kind:        kind,
					Name:        name.Name,
					PackageName: packageName,
					FilePath:    filePath,
					Position:    valueSpec.Pos(),
					Node:        valueSpec,
				},
				Annotations: annotations,
			}

			if kind == TargetVar {
				result.vars = append(result.vars, annotatedTarget)
			} else {
				result.consts = append(result.consts, annotatedTarget)
			}
		}
	}
}

// collectFiles 收集所有需要扫描的文件
func (s *Scanner) collectFiles(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		recursive := strings.HasSuffix(pattern, "/...")
		if recursive {
			pattern = strings.TrimSuffix(pattern, "/...")
		}

		absPath, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if strings.HasSuffix(absPath, ".go") && !seen[absPath] {
				seen[absPath] = true
				files = append(files, absPath)
			}
			continue
		}

		err = filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() {
				name := info.Name()
				if path != absPath && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
					name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				if !recursive && path != absPath {
					return filepath.SkipDir
				}
				return nil
			}

			if IsSourceFile(path) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// IsSourceFile 是否为需要扫描的源文件（排除测试文件和生成文件）
func IsSourceFile(path string) bool {
	return strings.HasSuffix(path, ".go") &&
		!strings.HasSuffix(path, "_test.go") &&
		!strings.HasSuffix(path, "_gen.go")
}

func exprToString(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return "*" + exprToString(e.X)
	case *ast.SelectorExpr:
		return exprToString(e.X) + "." + e.Sel.Name
	case *ast.IndexExpr:
		return exprToString(e.X) + "[" + exprToString(e.Index) + "]"
	default:
		return ""
	}
}

// 默认扫描器
var defaultScanner = NewScanner()

func Scan(ctx context.Context, patterns ...string) (*ScanResult, error) {
	return defaultScanner.Scan(ctx, patterns...)
}

func ScanWithFilter(ctx context.Context, annotations []string, patterns ...string) (*ScanResult, error) {
	scanner := NewScanner(WithAnnotationFilter(annotations...))
	return scanner.Scan(ctx, patterns...)
}

// directiveRegex 匹配 go:enumshift: 指令
// 支持两种格式：//go:enumshift: 和 // go:enumshift:
var directiveRegex = regexp.MustCompile(`go:enumshift:\s*(.*)`)

// parsePackageConfig 解析包级 go:enumshift: 配置
// 支持格式:
//
//	//go:enumshift: -output `$FILE_enum_gen`
//	// go:enumshift: plugin:enum -output `enums_gen`
func (s *Scanner) parsePackageConfig(file *ast.File, filePath string) *PackageConfig {
	var directiveLines []string

	// 收集所有 go:enumshift: 注释
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			text := strings.TrimPrefix(c.Text, "//")
			text = strings.TrimPrefix(text, "/*")
			text = strings.TrimSuffix(text, "*/")
			text = strings.TrimSpace(text)

			if matches := directiveRegex.FindStringSubmatch(text); len(matches) > 1 {
				directiveLines = append(directiveLines, matches[1])
			}
		}
	}

	if len(directiveLines) == 0 {
		return nil
	}

	// 检查是否有多个 go:enumshift: 定义
	if len(directiveLines) > 1 {
		s.logger.Warn("文件定义了多个 go:enumshift: 指令，将被忽略", zap.String("file", filePath))
		return nil
	}

	return parseDirectiveLine(directiveLines[0], filePath)
}

// parseDirectiveLine 解析单行 go:enumshift: 配置
// 格式:
//
//	-output `xxx`                                    // 默认输出
//	plugin:enum -output `xxx` plugin:other -output `yyy`  // 插件特定输出
func parseDirectiveLine(line string, filePath string) *PackageConfig {
	pkgDir := filepath.Dir(filePath)
	config := &PackageConfig{
		PackageDir:    pkgDir,
		PluginOutputs: make(map[string]string),
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	parts := splitDirectiveArgs(line)

	var currentPlugin string
	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "plugin:") {
			// 切换到特定插件
			currentPlugin = strings.ToLower(strings.TrimPrefix(part, "plugin:"))
		} else if part == "-output" && i+1 < len(parts) {
			i++
			output := trimQuotes(parts[i])
			if currentPlugin == "" {
				config.DefaultOutput = output
			} else {
				config.PluginOutputs[currentPlugin] = output
			}
		}
	}

	// 如果没有任何配置，返回 nil
	if config.DefaultOutput == "" && len(config.PluginOutputs) == 0 {
		return nil
	}

	return config
}

// splitDirectiveArgs 分割 go:enumshift 参数，支持引号内的空格
func splitDirectiveArgs(line string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(line); i++ {
		c := line[i]

		if !inQuote && (c == '`' || c == '"' || c == '\'') {
			inQuote = true
			quoteChar = c
			current.WriteByte(c)
		} else if inQuote && c == quoteChar {
			inQuote = false
			current.WriteByte(c)
			quoteChar = 0
		} else if !inQuote && c == ' ' {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteByte(c)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// trimQuotes 去除引号
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '`' && s[len(s)-1] == '`') ||
			(s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
