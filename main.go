package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/donutnomad/enumshift/enumgen"
	"github.com/donutnomad/enumshift/internal/phaselock"
	"github.com/donutnomad/enumshift/plugin"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const rootLong = `enumshift - 为 Go 具名类型生成强类型枚举，并按 Expand & Contract 分阶段迁移 API 参数

路径:
  支持 Go 包路径模式，如:
    ./...          递归扫描当前目录及子目录（默认）
    ./pkg/...      递归扫描指定目录
    ./search       只扫描一个目录

配置:
  命令行参数 > 环境变量 ENUMSHIFT_* > 当前目录下的 .enumshift.yaml

模板变量:
  $FILE     - 源文件名（不含 .go 后缀）
  $PACKAGE  - 包名

示例:
  enumshift                                 扫描当前目录（默认 ./...）
  enumshift -v ./search/...                 详细模式扫描 search 目录
  enumshift check ./...                     CI 中检查生成文件是否过期
  enumshift dev ./...                       开发模式，监听文件变动
  enumshift describe -f json ./...          输出枚举清单
  ENUMSHIFT_LOCK= enumshift ./...           不使用阶段锁
`

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "enumshift [路径...]",
		Short:         "强类型枚举生成与参数迁移工具",
		Long:          rootLong + "\n支持的注解:\n" + plugin.FormatHelpText(newRegistry(nil)),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 默认命令是 gen
			return runGen(cmd, args, false)
		},
	}

	bindFlags(root)

	root.AddCommand(
		&cobra.Command{
			Use:   "gen [路径...]",
			Short: "执行代码生成（默认）",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGen(cmd, args, false)
			},
		},
		&cobra.Command{
			Use:   "check [路径...]",
			Short: "检查生成文件是否过期，不写入任何文件",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGen(cmd, args, true)
			},
		},
		newDevCmd(),
		newDescribeCmd(),
	)

	return root
}

// newRegistry 创建注册表；lock 为 nil 时不检查阶段回退
func newRegistry(lock *phaselock.Lock) *plugin.Registry {
	var opts []enumgen.Option
	if lock != nil {
		opts = append(opts, enumgen.WithPhaseLock(lock))
	}

	registry := plugin.NewRegistry()
	registry.MustRegister(enumgen.NewEnumGenerator(opts...))
	return registry
}

// newLogger -v 时使用开发模式的控制台日志，否则使用生产配置
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// loadLock 读取阶段锁，路径为空时禁用
func loadLock(path string) (*phaselock.Lock, error) {
	if path == "" {
		return nil, nil
	}
	return phaselock.Load(path)
}

func defaultPatterns(args []string) []string {
	if len(args) == 0 {
		return []string{"./..."}
	}
	return args
}

func runGen(cmd *cobra.Command, args []string, check bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	lock, err := loadLock(cfg.Lock)
	if err != nil {
		return err
	}
	registry := newRegistry(lock)

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		printGenerators(out, registry)
	}

	opts := cfg.runOptions(registry, defaultPatterns(args), logger)
	opts.Check = check
	opts.Stdout = out

	stats, err := plugin.RunWithOptionsAndStats(cmd.Context(), opts)
	if err != nil {
		return err
	}

	// check 模式不更新锁文件
	if lock != nil && !check {
		if err := lock.Save(); err != nil {
			return err
		}
	}

	if stats != nil && (stats.FileCount > 0 || cfg.Verbose) {
		verb := "生成"
		if check {
			verb = "检查"
		}
		_, _ = fmt.Fprintf(out, "\n统计: 扫描 %d 个目标, %s %d 个文件\n", stats.TargetCount, verb, stats.FileCount)
		_, _ = fmt.Fprintf(out, "耗时: 扫描 %v, 生成 %v, 总计 %v\n", stats.ScanDuration, stats.GenerateDuration, stats.TotalDuration)
	}
	return nil
}

func printGenerators(w io.Writer, registry *plugin.Registry) {
	_, _ = fmt.Fprintf(w, "已注册 %d 个生成器:\n", len(registry.Generators()))
	for _, gen := range registry.Generators() {
		anns := lo.Map(gen.Annotations(), func(item string, index int) string {
			return "@" + item
		})
		_, _ = fmt.Fprintf(w, "  - %s (%s)\n", gen.Name(), strings.Join(anns, ","))
	}
	_, _ = fmt.Fprintln(w)
}
