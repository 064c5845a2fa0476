package enumgen_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/donutnomad/enumshift/enum"
	"github.com/donutnomad/enumshift/enumgen"
	"github.com/donutnomad/enumshift/internal/utils"
	"github.com/donutnomad/enumshift/plugin"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

// scanContext 扫描 testdata 下的目录并构造生成上下文
func scanContext(t *testing.T, dir string) *plugin.GenerateContext {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", dir))
	require.NoError(t, err)

	scanner := plugin.NewScanner(plugin.WithAnnotationFilter("Enum"))
	result, err := scanner.Scan(context.Background(), absPath)
	require.NoError(t, err)

	return &plugin.GenerateContext{
		Targets:        result.All(),
		PackageConfigs: result.PackageConfigs,
		Verbose:        testing.Verbose(),
	}
}

// generate 运行生成器，返回 输出文件名 -> 格式化后的代码
func generate(t *testing.T, gen *enumgen.EnumGenerator, ctx *plugin.GenerateContext) (map[string]string, []error) {
	t.Helper()

	result, err := gen.Generate(ctx)
	require.NoError(t, err)

	files := make(map[string]string, len(result.Definitions))
	for path, def := range result.Definitions {
		// 生成的代码必须是合法的 Go 源码
		src, err := utils.Format(path, def.Bytes())
		require.NoError(t, err, "生成的 %s 无法格式化:\n%s", path, def.Bytes())
		files[filepath.Base(path)] = string(src)
	}
	return files, result.Errors
}

func TestGenerateStringEnumDual(t *testing.T) {
	files, errs := generate(t, enumgen.NewEnumGenerator(), scanContext(t, "basic"))
	require.Empty(t, errs)
	require.Len(t, files, 1)

	code, ok := files["mode_enum_gen.go"]
	require.True(t, ok, "缺少 mode_enum_gen.go, 实际: %v", files)

	for _, want := range []string{
		"package basic",
		`"github.com/donutnomad/enumshift/enum"`,
		`"database/sql/driver"`,
		`enum.Entry[SearchMode, string]{Value: SearchModePartial, Backing: "partial", Name: "Partial"}`,
		`enum.Entry[SearchMode, string]{Value: SearchModeFull, Backing: "full", Name: "Full"}`,
		"func SearchModeValues() []SearchMode",
		"func (v SearchMode) IsValid() bool",
		"func (v SearchMode) String() string",
		"func ParseSearchMode(v string) (SearchMode, error)",
		"func MatchSearchMode[R any](v SearchMode, onPartial func() R, onFull func() R) (R, error)",
		"func (v SearchMode) MarshalText() ([]byte, error)",
		"func (v *SearchMode) UnmarshalText(text []byte) error",
		"func (v SearchMode) Value() (driver.Value, error)",
		"func (v *SearchMode) Scan(src any) error",
		"func (SearchMode) GormDataType() string",
		`return "string"`,
		"type SearchModeInput = enum.Input[SearchMode, string]",
		"func SearchModeOf(v SearchMode) SearchModeInput",
		"func SearchModeFromBacking(v string) SearchModeInput",
		"func ResolveSearchMode(in SearchModeInput) (SearchMode, error)",
	} {
		assert.Contains(t, code, want)
	}

	// dual 阶段原始值入口尚未废弃
	assert.NotContains(t, code, "Deprecated:")
	// 没有注解的类型不生成
	assert.NotContains(t, code, "Plain")
}

func TestGenerateIntEnumFinalize(t *testing.T) {
	files, errs := generate(t, enumgen.NewEnumGenerator(), scanContext(t, "sorting"))
	require.Empty(t, errs)

	code, ok := files["order_enum_gen.go"]
	require.True(t, ok, "缺少 order_enum_gen.go, 实际: %v", files)

	t.Run("backing=name", func(t *testing.T) {
		assert.Contains(t, code, `enum.Entry[SortOrder, string]{Value: SortOrderAscending, Backing: "ascending", Name: "Ascending"}`)
		assert.Contains(t, code, "func ParseSortOrder(v string) (SortOrder, error)")
		assert.Contains(t, code, "func MatchSortOrder[R any](v SortOrder, onAscending func() R, onDescending func() R) (R, error)")
		// finalize 阶段不再有联合输入
		assert.NotContains(t, code, "SortOrderInput")
		assert.NotContains(t, code, "SortOrderFromBacking")
	})

	t.Run("deprecate", func(t *testing.T) {
		assert.Contains(t, code, "enum.Entry[Priority, uint8]{Value: PriorityLow, Backing: 10, Name: \"Low\"}")
		assert.Contains(t, code, "type PriorityInput = enum.Input[Priority, uint8]")
		assert.Contains(t, code, "// Deprecated: pass a Priority through PriorityOf instead.")
		assert.Contains(t, code, "func PriorityFromBacking(v uint8) PriorityInput")
		// text=false, stringer=false
		assert.NotContains(t, code, "func (v Priority) String() string")
		assert.NotContains(t, code, "func (v Priority) MarshalText()")
	})

	// 两个类型都没有开启 sql
	assert.NotContains(t, code, "database/sql/driver")
}

func TestGenerateGroupedTypeDecl(t *testing.T) {
	files, errs := generate(t, enumgen.NewEnumGenerator(), scanContext(t, "grouped"))
	require.Empty(t, errs)

	code := files["grouped_enum_gen.go"]
	assert.Contains(t, code, "func MatchColor[R any](v Color, onRed func() R, onBlue func() R) (R, error)")
	assert.Contains(t, code, "func MatchSize[R any](v Size, onSmall func() R, onLarge func() R) (R, error)")
	assert.Contains(t, code, "type SizeInput = enum.Input[Size, int]")
	// introduce 阶段只有原始值入口
	assert.NotContains(t, code, "ColorInput")
	assert.NotContains(t, code, "Shape")
}

func TestGenerateInvalid(t *testing.T) {
	files, errs := generate(t, enumgen.NewEnumGenerator(), scanContext(t, "invalid"))
	assert.Empty(t, files)
	require.Len(t, errs, 6, "错误: %v", errs)

	joined := fmt.Sprint(errs)
	for _, want := range []string{
		"Dup 的原始值重复",
		"Weight 的底层类型 float64 不是字符串或整数",
		"Empty 没有任何 Empty 类型的常量",
		`无效的 phase "rollout"`,
		`未知的 backing 来源 "label"`,
		"Clash 的成员 ClashFoo 和 foo 对应同一个处理函数参数 onFoo",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestCollect(t *testing.T) {
	enums, errs := enumgen.NewEnumGenerator().Collect(scanContext(t, "sorting"))
	require.Empty(t, errs)
	require.Len(t, enums, 2)

	// 同一文件内按类型名排序
	assert.Equal(t, "Priority", enums[0].Type)
	assert.Equal(t, "SortOrder", enums[1].Type)

	order := enums[1]
	assert.Equal(t, enum.PhaseFinalize, order.Phase)
	assert.Equal(t, enumgen.BackingFromName, order.Source)
	assert.Equal(t, "string", order.BackingType)
	assert.True(t, order.IsStringBacked())
	assert.True(t, strings.HasSuffix(order.PkgPath, "enumgen/testdata/sorting"), order.PkgPath)
	assert.Equal(t, "SortOrder", strings.TrimPrefix(order.Key(), order.PkgPath+"."))

	require.Len(t, order.Members, 2)
	assert.Equal(t, "SortOrderAscending", order.Members[0].Const)
	assert.Equal(t, "ascending", order.Label(order.Members[0]))

	priority := enums[0]
	assert.Equal(t, "uint8", priority.BackingType)
	assert.Equal(t, "10", priority.Members[0].Backing)
	assert.Equal(t, "Low", priority.Label(priority.Members[0]))
}

// fakeLock 记录调用，并拒绝指定的类型
type fakeLock struct {
	reject   map[string]bool
	recorded map[string]enum.Phase
}

func (l *fakeLock) Check(key string, phase enum.Phase) error {
	if l.reject[key] {
		return fmt.Errorf("阶段不能回退到 %s", phase)
	}
	return nil
}

func (l *fakeLock) Record(key string, phase enum.Phase) {
	l.recorded[key] = phase
}

func TestGenerateWithPhaseLock(t *testing.T) {
	ctx := scanContext(t, "sorting")

	enums, errs := enumgen.NewEnumGenerator().Collect(ctx)
	require.Empty(t, errs)
	require.Len(t, enums, 2)

	lock := &fakeLock{
		reject:   map[string]bool{enums[0].Key(): true},
		recorded: make(map[string]enum.Phase),
	}

	files, errs := generate(t, enumgen.NewEnumGenerator(enumgen.WithPhaseLock(lock)), ctx)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Priority: 阶段不能回退到 deprecate")

	// 被拒绝的类型不生成，也不记录
	code := files["order_enum_gen.go"]
	assert.Contains(t, code, "MatchSortOrder")
	assert.NotContains(t, code, "MatchPriority")
	assert.Equal(t, map[string]enum.Phase{enums[1].Key(): enum.PhaseFinalize}, lock.recorded)
}

func TestParamDefs(t *testing.T) {
	gen := enumgen.NewEnumGenerator()
	assert.Equal(t, "enum", gen.Name())
	assert.Equal(t, []string{"Enum"}, gen.Annotations())
	assert.Equal(t, []plugin.TargetKind{plugin.TargetType}, gen.SupportedTargets())

	names := make([]string, 0)
	for _, def := range gen.ParamDefs() {
		names = append(names, def.Name)
	}
	assert.ElementsMatch(t, []string{"phase", "backing", "text", "sql", "stringer"}, names)
}

const exhaustiveSource = `package exhaustive

// @Enum(phase=finalize)
type Mode string

const (
	ModeA Mode = "a"
	ModeB Mode = "b"
)
`

// 调用点只处理了 ModeA 和 ModeB
const exhaustiveCallSite = `package exhaustive

func describe(m Mode) (string, error) {
	return MatchMode(m,
		func() string { return "a" },
		func() string { return "b" },
	)
}
`

// generateInto 生成并写入 dir 下的文件
func generateInto(t *testing.T, dir string) {
	t.Helper()

	// 每次使用新的生成器，避免复用已缓存的包信息
	result, err := enumgen.NewEnumGenerator().Generate(scanContext(t, filepath.Base(dir)))
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Definitions, 1)
	for path, def := range result.Definitions {
		require.NoError(t, utils.WriteFormat(path, def.Bytes()))
	}
}

// typeErrors 对 dir 中的包做类型检查，返回全部错误信息
func typeErrors(t *testing.T, dir string) []string {
	t.Helper()

	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Dir:  dir,
	}, ".")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	return lo.Map(pkgs[0].Errors, func(e packages.Error, _ int) string { return e.Msg })
}

func TestMatchIsExhaustive(t *testing.T) {
	dir, err := os.MkdirTemp("testdata", "exhaustive-")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	dir, err = filepath.Abs(dir)
	require.NoError(t, err)

	writeSource := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	writeSource("mode.go", exhaustiveSource)
	writeSource("use.go", exhaustiveCallSite)

	generateInto(t, dir)
	assert.Empty(t, typeErrors(t, dir))

	// 新增成员后重新生成，未处理新成员的调用点不再通过类型检查
	writeSource("mode_c.go", "package exhaustive\n\nconst ModeC Mode = \"c\"\n")
	generateInto(t, dir)

	code, err := os.ReadFile(filepath.Join(dir, "mode_enum_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(code), "onA func() R, onB func() R, onC func() R")

	errs := typeErrors(t, dir)
	require.NotEmpty(t, errs)
	assert.Contains(t, strings.Join(errs, "\n"), "not enough arguments in call to MatchMode")
}
