package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/donutnomad/enumshift/plugin"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"
)

// generateFunc 对单个包目录执行生成
type generateFunc func(ctx context.Context, pkgDir string) error

// devRunner 处理文件变动的核心逻辑
type devRunner struct {
	watcher  *fsnotify.Watcher
	scanner  *plugin.Scanner
	logger   *zap.Logger
	out      io.Writer
	debounce time.Duration
	generate generateFunc
	ctx      context.Context // 用于响应退出信号

	// genMu 串行执行生成，每次生成都会读写整个锁文件
	genMu sync.Mutex

	// 防抖动相关
	mu          sync.Mutex
	wg          sync.WaitGroup
	pendingDirs map[string]*time.Timer // key: 包目录路径
}

func newDevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dev [路径...]",
		Short: "开发模式，监听文件变动自动生成",
		RunE:  runDev,
	}
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	generate := func(ctx context.Context, pkgDir string) error {
		// 每次重新读取锁文件，其它进程可能已经更新过
		lock, err := loadLock(cfg.Lock)
		if err != nil {
			return err
		}

		opts := cfg.runOptions(newRegistry(lock), []string{pkgDir}, logger)
		stats, err := plugin.RunWithOptionsAndStats(ctx, opts)
		if err != nil {
			return err
		}
		if lock != nil {
			if err := lock.Save(); err != nil {
				return err
			}
		}

		if stats != nil && stats.FileCount > 0 {
			_, _ = fmt.Fprintf(out, "生成完成: %d 个文件 (耗时: %v)\n", stats.FileCount, stats.TotalDuration)
		}
		return nil
	}

	return dev(ctx, defaultPatterns(args), cfg.Debounce, logger, out, generate)
}

// dev 启动开发模式，直到 ctx 取消
func dev(ctx context.Context, patterns []string, debounce time.Duration, logger *zap.Logger, out io.Writer, generate generateFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	registry := newRegistry(nil)
	runner := &devRunner{
		watcher:     watcher,
		scanner:     plugin.NewScanner(plugin.WithAnnotationFilter(registry.Annotations()...)),
		logger:      logger,
		out:         out,
		debounce:    debounce,
		generate:    generate,
		ctx:         ctx,
		pendingDirs: make(map[string]*time.Timer),
	}
	defer runner.stop()

	// 收集并添加监听目录
	dirs, err := collectWatchDirs(patterns)
	if err != nil {
		return fmt.Errorf("收集监听目录失败: %w", err)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("没有找到需要监听的目录")
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("添加监听目录失败 %s: %w", dir, err)
		}
		logger.Debug("监听目录", zap.String("dir", dir))
	}

	_, _ = fmt.Fprintf(out, "开发模式已启动，监听 %d 个目录\n", len(dirs))
	_, _ = fmt.Fprintln(out, "按 Ctrl+C 退出")

	return runner.watchLoop(ctx)
}

// stop 取消所有待处理的定时器，并等待正在执行的生成结束
func (r *devRunner) stop() {
	r.mu.Lock()
	for dir, timer := range r.pendingDirs {
		if timer.Stop() {
			r.wg.Done()
		}
		delete(r.pendingDirs, dir)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// watchLoop 事件处理循环
func (r *devRunner) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(event)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("监听错误", zap.Error(err))
		}
	}
}

// handleEvent 处理文件事件
func (r *devRunner) handleEvent(event fsnotify.Event) {
	// 只关注 Write 和 Create 事件
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	filePath := event.Name
	if !strings.HasSuffix(filePath, ".go") || !plugin.IsSourceFile(filePath) {
		return
	}

	log := r.logger.With(zap.String("file", filePath))
	log.Debug("检测到文件变化")

	// 检查文件是否包含注解
	hasAnnotation, err := r.scanner.QuickMatchFile(filePath)
	if err != nil {
		log.Debug("检查注解失败", zap.Error(err))
		return
	}
	if !hasAnnotation {
		log.Debug("跳过文件（无注解）")
		return
	}

	// 检查语法错误
	if err := checkSyntax(filePath); err != nil {
		_, _ = fmt.Fprintf(r.out, "语法错误 %s: %v\n", filePath, err)
		return
	}

	r.scheduleGenerate(filepath.Dir(filePath))
}

// scheduleGenerate 防抖动调度生成，同一目录在 debounce 内的多次变动只触发一次
func (r *devRunner) scheduleGenerate(pkgDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 取消之前的 timer
	if timer, exists := r.pendingDirs[pkgDir]; exists {
		if timer.Stop() {
			r.wg.Done()
		}
	}

	r.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(r.debounce, func() {
		defer r.wg.Done()

		r.mu.Lock()
		if r.pendingDirs[pkgDir] == timer {
			delete(r.pendingDirs, pkgDir)
		}
		r.mu.Unlock()

		// 检查 context 是否已取消
		if r.ctx.Err() != nil {
			return
		}

		r.runGenerate(pkgDir)
	})
	r.pendingDirs[pkgDir] = timer
}

// runGenerate 执行一次生成，不同目录的生成也不会并发
func (r *devRunner) runGenerate(pkgDir string) {
	r.genMu.Lock()
	defer r.genMu.Unlock()

	if r.ctx.Err() != nil {
		return
	}

	r.logger.Debug("触发代码生成", zap.String("dir", pkgDir))
	if err := r.generate(r.ctx, pkgDir); err != nil {
		_, _ = fmt.Fprintf(r.out, "生成失败: %v\n", err)
	}
}

// checkSyntax 检查文件语法
func checkSyntax(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	_, err = imports.Process(filePath, content, &imports.Options{
		Fragment:   true,
		AllErrors:  true,
		Comments:   true,
		FormatOnly: true, // 只检查语法，不修改 imports
	})

	return err
}

// collectWatchDirs 收集所有需要监听的目录
func collectWatchDirs(patterns []string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		recursive := strings.HasSuffix(pattern, "/...")
		baseDir := strings.TrimSuffix(pattern, "/...")

		absDir, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(absDir)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			continue
		}

		if !recursive {
			if !seen[absDir] {
				seen[absDir] = true
				dirs = append(dirs, absDir)
			}
			continue
		}

		// 递归收集所有子目录
		err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}

			// 跳过隐藏目录、下划线目录、vendor 和 testdata，与扫描器保持一致
			name := d.Name()
			if path != absDir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}

			if !seen[path] {
				seen[path] = true
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return dirs, nil
}
