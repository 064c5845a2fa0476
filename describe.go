package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/donutnomad/enumshift/enumgen"
	"github.com/donutnomad/enumshift/internal/inventory"
	"github.com/donutnomad/enumshift/plugin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDescribeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe [路径...]",
		Short: "输出带注解枚举的清单（阶段、成员、原始值）",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := inventory.ParseFormat(format)
			if err != nil {
				return err
			}
			return runDescribe(cmd, defaultPatterns(args), f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(inventory.FormatMarkdown), "输出格式: json 或 markdown")
	return cmd
}

func runDescribe(cmd *cobra.Command, patterns []string, format inventory.Format) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	root, err := os.Getwd()
	if err != nil {
		return err
	}

	return describe(cmd.Context(), patterns, format, cfg, logger, root, cmd.OutOrStdout())
}

// describe 扫描并汇总枚举；解析失败的枚举跳过，最后返回失败数量
func describe(ctx context.Context, patterns []string, format inventory.Format, cfg *config, logger *zap.Logger, root string, out io.Writer) error {
	gen := enumgen.NewEnumGenerator()

	scanner := plugin.NewScanner(
		plugin.WithAnnotationFilter(gen.Annotations()...),
		plugin.WithScannerLogger(logger),
		plugin.WithWorkers(cfg.Workers),
	)
	result, err := scanner.Scan(ctx, patterns...)
	if err != nil {
		return fmt.Errorf("扫描失败: %w", err)
	}

	enums, errs := gen.Collect(&plugin.GenerateContext{
		Targets:        result.All(),
		PackageConfigs: result.PackageConfigs,
		DefaultOutput:  cfg.output(),
		Verbose:        cfg.Verbose,
		Logger:         logger,
	})

	if err := inventory.Write(out, format, inventory.FromEnums(enums, root)); err != nil {
		return err
	}

	for _, err := range errs {
		logger.Warn("解析枚举失败", zap.Error(err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d 个枚举解析失败", len(errs))
	}
	return nil
}
