package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/donutnomad/enumshift/internal/phaselock"
	"github.com/donutnomad/enumshift/plugin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	configName = ".enumshift"
	envPrefix  = "ENUMSHIFT"
)

// config 命令行参数、环境变量与配置文件合并后的配置
type config struct {
	Verbose  bool
	Output   string // 默认输出路径
	NoOutput bool   // 禁用默认输出
	Async    bool
	Workers  int
	Lock     string // 阶段锁文件，空字符串表示禁用
	Debounce time.Duration
}

// bindFlags 注册全局参数
func bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "详细输出")
	flags.String("output", "", "默认输出路径（支持模板变量 $FILE, $PACKAGE），为空时每个源文件生成 $FILE_enum_gen.go")
	flags.Bool("no-output", false, "忽略 --output 与配置文件中的 output")
	flags.Bool("async", true, "异步执行生成器")
	flags.Int("workers", 0, "扫描并发数，0 表示使用 CPU 核数")
	flags.String("lock", phaselock.DefaultFile, "阶段锁文件，设为空字符串禁用")
	flags.Duration("debounce", 2*time.Second, "dev 模式下的防抖动时间")
}

// newViper 按 参数 > 环境变量 > 配置文件 > 默认值 的优先级读取配置
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("绑定参数失败: %w", err)
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	return v, nil
}

func loadConfig(cmd *cobra.Command) (*config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	return configFrom(v), nil
}

func configFrom(v *viper.Viper) *config {
	return &config{
		Verbose:  v.GetBool("verbose"),
		Output:   v.GetString("output"),
		NoOutput: v.GetBool("no-output"),
		Async:    v.GetBool("async"),
		Workers:  v.GetInt("workers"),
		Lock:     v.GetString("lock"),
		Debounce: v.GetDuration("debounce"),
	}
}

// output 确定默认输出路径：--no-output 时为空
func (c *config) output() string {
	if c.NoOutput {
		return ""
	}
	return c.Output
}

func (c *config) runOptions(registry *plugin.Registry, patterns []string, logger *zap.Logger) *plugin.RunOptions {
	return &plugin.RunOptions{
		Registry: registry,
		Patterns: patterns,
		Verbose:  c.Verbose,
		Output:   c.output(),
		Async:    c.Async,
		Workers:  c.Workers,
		Logger:   logger,
		Stdout:   io.Discard,
	}
}
