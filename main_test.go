package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/donutnomad/enumshift/enum"
	"github.com/donutnomad/enumshift/internal/inventory"
	"github.com/donutnomad/enumshift/internal/phaselock"
	"github.com/donutnomad/enumshift/plugin"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const modeSource = `package shop

// SearchMode 搜索模式
// @Enum(phase=%s)
type SearchMode string

const (
	SearchModePartial SearchMode = "partial"
	SearchModeFull    SearchMode = "full"
)
`

// newShopModule 在临时目录创建一个只包含一个枚举的模块
func newShopModule(t *testing.T, phase string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/shop\n\ngo 1.25\n")
	writeShopSource(t, dir, phase)
	return dir
}

func writeShopSource(t *testing.T, dir, phase string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "mode.go"), fmt.Sprintf(modeSource, phase))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, configName+".yaml"), "output: $PACKAGE_enums.go\nworkers: 2\ndebounce: 500ms\n")
	t.Chdir(dir)

	t.Setenv("ENUMSHIFT_WORKERS", "4")
	t.Setenv("ENUMSHIFT_LOCK", "")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--async=false"}))

	v, err := newViper(cmd)
	require.NoError(t, err)
	cfg := configFrom(v)

	assert.Equal(t, "$PACKAGE_enums.go", cfg.Output) // 配置文件
	assert.Equal(t, 4, cfg.Workers)                  // 环境变量覆盖配置文件
	assert.Equal(t, "", cfg.Lock)                    // 空环境变量禁用阶段锁
	assert.False(t, cfg.Async)                       // 命令行参数
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)

	cfg.NoOutput = true
	assert.Equal(t, "", cfg.output())
}

func TestConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	v, err := newViper(cmd)
	require.NoError(t, err)

	cfg := configFrom(v)
	assert.Equal(t, phaselock.DefaultFile, cfg.Lock)
	assert.True(t, cfg.Async)
	assert.Equal(t, 2*time.Second, cfg.Debounce)
	assert.Equal(t, "", cfg.output())

	opts := cfg.runOptions(newRegistry(nil), []string{"./..."}, zap.NewNop())
	assert.Equal(t, []string{"./..."}, opts.Patterns)
	assert.Equal(t, []string{"Enum"}, opts.Registry.Annotations())
}

func TestGenAndCheck(t *testing.T) {
	dir := newShopModule(t, "dual")
	lockPath := filepath.Join(dir, phaselock.DefaultFile)

	out, err := execute(t, "check", "--lock", lockPath, dir)
	require.Error(t, err, out)
	assert.Contains(t, out, "mode_enum_gen.go (generated)")

	_, err = execute(t, "--lock", lockPath, dir)
	require.NoError(t, err)

	gen, err := os.ReadFile(filepath.Join(dir, "mode_enum_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(gen), plugin.GeneratedHeader)
	assert.Contains(t, string(gen), "func ResolveSearchMode(in SearchModeInput) (SearchMode, error) {")

	lock, err := phaselock.Load(lockPath)
	require.NoError(t, err)
	phase, ok := lock.Phase("example.com/shop.SearchMode")
	require.True(t, ok)
	assert.Equal(t, enum.PhaseDualAccept, phase)

	// 生成后 check 通过
	_, err = execute(t, "check", "--lock", lockPath, dir)
	require.NoError(t, err)

	// 源码变化后 check 失败
	writeShopSource(t, dir, "deprecate")
	_, err = execute(t, "check", "--lock", lockPath, dir)
	require.Error(t, err)
}

// 仓库中提交的生成文件必须与生成器输出一致
func TestExamplesUpToDate(t *testing.T) {
	out, err := execute(t, "check", "--lock=", "./examples/...")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "(generated)")
}

func TestGenRejectsPhaseRegression(t *testing.T) {
	dir := newShopModule(t, "deprecate")
	lockPath := filepath.Join(dir, phaselock.DefaultFile)

	_, err := execute(t, "gen", "--lock", lockPath, dir)
	require.NoError(t, err)

	writeShopSource(t, dir, "introduce")
	_, err = execute(t, "gen", "--lock", lockPath, dir)
	require.Error(t, err)

	// 失败的运行不更新锁文件
	lock, err := phaselock.Load(lockPath)
	require.NoError(t, err)
	phase, _ := lock.Phase("example.com/shop.SearchMode")
	assert.Equal(t, enum.PhaseDeprecate, phase)

	// 禁用阶段锁后可以回退
	_, err = execute(t, "gen", "--lock=", dir)
	require.NoError(t, err)
}

func TestDescribe(t *testing.T) {
	dir := newShopModule(t, "deprecate")
	cfg := &config{Workers: 2}

	var buf bytes.Buffer
	require.NoError(t, describe(context.Background(), []string{dir}, inventory.FormatJSON, cfg, zap.NewNop(), dir, &buf))

	var entries []inventory.Entry
	require.NoError(t, sonic.ConfigStd.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "SearchMode", entries[0].Type)
	assert.Equal(t, "deprecate", entries[0].Phase)
	assert.Equal(t, "mode.go", entries[0].File)
	assert.Len(t, entries[0].Members, 2)

	buf.Reset()
	require.NoError(t, describe(context.Background(), []string{dir}, inventory.FormatMarkdown, cfg, zap.NewNop(), dir, &buf))
	assert.Contains(t, buf.String(), "SearchMode")
}

func TestDescribeReportsInvalid(t *testing.T) {
	dir := newShopModule(t, "rollout")

	var buf bytes.Buffer
	err := describe(context.Background(), []string{dir}, inventory.FormatJSON, &config{}, zap.NewNop(), dir, &buf)
	assert.EqualError(t, err, "1 个枚举解析失败")
	assert.JSONEq(t, "[]", buf.String())
}

func TestCollectWatchDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a/b", ".git", "_build", "vendor/x", "testdata", "c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
	}
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")

	dirs, err := collectWatchDirs([]string{root + "/..."})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		root,
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "c"),
	}, dirs)

	// 非递归，重复路径只保留一次，文件被忽略
	dirs, err = collectWatchDirs([]string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a"),
		filepath.Join(root, "main.go"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a")}, dirs)

	_, err = collectWatchDirs([]string{filepath.Join(root, "missing")})
	assert.Error(t, err)
}

// recorder 记录每个目录被生成的次数
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recorder) generate(ctx context.Context, pkgDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[pkgDir]++
	return nil
}

func (r *recorder) count(dir string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[dir]
}

func newTestRunner(ctx context.Context, debounce time.Duration, rec *recorder, out *bytes.Buffer) *devRunner {
	return &devRunner{
		scanner:     plugin.NewScanner(plugin.WithAnnotationFilter("Enum")),
		logger:      zap.NewNop(),
		out:         out,
		debounce:    debounce,
		generate:    rec.generate,
		ctx:         ctx,
		pendingDirs: make(map[string]*time.Timer),
	}
}

func TestScheduleGenerateDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{calls: make(map[string]int)}
	r := newTestRunner(context.Background(), 20*time.Millisecond, rec, &bytes.Buffer{})

	for range 5 {
		r.scheduleGenerate("/src/search")
	}
	r.scheduleGenerate("/src/sorting")

	assert.Eventually(t, func() bool {
		return rec.count("/src/search") == 1 && rec.count("/src/sorting") == 1
	}, time.Second, 5*time.Millisecond)

	r.stop()
	assert.Equal(t, 1, rec.count("/src/search"))
}

func TestScheduleGenerateSharesLock(t *testing.T) {
	defer goleak.VerifyNone(t)

	lockPath := filepath.Join(t.TempDir(), phaselock.DefaultFile)
	var active, maxActive int
	var mu sync.Mutex

	// 与 runDev 相同：读锁文件，生成，再写回
	generate := func(ctx context.Context, pkgDir string) error {
		mu.Lock()
		active++
		maxActive = max(maxActive, active)
		mu.Unlock()
		defer func() {
			mu.Lock()
			active--
			mu.Unlock()
		}()

		lock, err := phaselock.Load(lockPath)
		if err != nil {
			return err
		}
		time.Sleep(20 * time.Millisecond)
		lock.Record("example.com/shop/"+filepath.Base(pkgDir)+".Mode", enum.PhaseDualAccept)
		return lock.Save()
	}

	var out bytes.Buffer
	r := newTestRunner(context.Background(), time.Millisecond, &recorder{calls: make(map[string]int)}, &out)
	r.generate = generate

	dirs := []string{"/src/a", "/src/b", "/src/c"}
	for _, dir := range dirs {
		r.scheduleGenerate(dir)
	}
	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.pendingDirs) == 0
	}, time.Second, 5*time.Millisecond)
	r.stop()

	assert.Empty(t, out.String())
	assert.Equal(t, 1, maxActive)

	lock, err := phaselock.Load(lockPath)
	require.NoError(t, err)
	for _, dir := range dirs {
		_, ok := lock.Phase("example.com/shop/" + filepath.Base(dir) + ".Mode")
		assert.True(t, ok, dir)
	}
}

func TestStopCancelsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{calls: make(map[string]int)}
	r := newTestRunner(context.Background(), time.Hour, rec, &bytes.Buffer{})

	r.scheduleGenerate("/src/search")
	r.stop()

	assert.Zero(t, rec.count("/src/search"))
	assert.Empty(t, r.pendingDirs)
}

func TestHandleEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := newShopModule(t, "dual")
	rec := &recorder{calls: make(map[string]int)}
	var out bytes.Buffer
	r := newTestRunner(context.Background(), time.Millisecond, rec, &out)

	// 删除事件和生成文件都被忽略
	r.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "mode.go"), Op: fsnotify.Remove})
	writeFile(t, filepath.Join(dir, "mode_enum_gen.go"), "package shop\n")
	r.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "mode_enum_gen.go"), Op: fsnotify.Write})

	// 没有注解的文件被忽略
	writeFile(t, filepath.Join(dir, "plain.go"), "package shop\n\ntype Plain int\n")
	r.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "plain.go"), Op: fsnotify.Create})

	// 语法错误不触发生成
	writeFile(t, filepath.Join(dir, "broken.go"), "package shop\n\n// @Enum\ntype Broken string\n\nfunc (\n")
	r.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "broken.go"), Op: fsnotify.Write})
	assert.Contains(t, out.String(), "语法错误")

	r.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "mode.go"), Op: fsnotify.Write})
	assert.Eventually(t, func() bool { return rec.count(dir) == 1 }, time.Second, 5*time.Millisecond)

	r.stop()
	assert.Equal(t, 1, rec.count(dir))
}

func TestDevStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := newShopModule(t, "dual")
	rec := &recorder{calls: make(map[string]int)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- dev(ctx, []string{dir}, time.Millisecond, zap.NewNop(), &out, rec.generate)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dev 没有在取消后退出")
	}
	assert.Contains(t, out.String(), "监听 1 个目录")
}
