package plugin

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// maxParamExamples 每个生成器最多展示的参数示例数
const maxParamExamples = 2

// FormatHelpText 为所有注册的生成器生成帮助文本
func FormatHelpText(registry *Registry) string {
	generators := registry.Generators()
	if len(generators) == 0 {
		return "  (暂无已注册的生成器)\n"
	}

	var sb strings.Builder
	for _, gen := range generators {
		if len(gen.Annotations()) == 0 {
			continue
		}
		writeGeneratorHelp(&sb, gen)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeGeneratorHelp(sb *strings.Builder, gen Generator) {
	ann := gen.Annotations()[0]
	kinds := lo.Map(gen.SupportedTargets(), func(k TargetKind, _ int) string { return k.String() })

	fmt.Fprintf(sb, "  @%s - %s\n", ann, gen.Name())
	fmt.Fprintf(sb, "    目标: %s\n", strings.Join(kinds, ", "))

	sb.WriteString("    参数:\n")
	sb.WriteString("      output - 输出文件路径（支持模板变量）\n")
	for _, param := range gen.ParamDefs() {
		fmt.Fprintf(sb, "      %s", param.Name)
		if param.Required {
			sb.WriteString(" (必填)")
		}
		if param.Default != "" {
			fmt.Fprintf(sb, " [默认: %s]", param.Default)
		}
		fmt.Fprintf(sb, " - %s\n", param.Description)
	}

	sb.WriteString("    示例:\n")
	fmt.Fprintf(sb, "      @%s\n", ann)
	fmt.Fprintf(sb, "      @%s(output=$FILE_%s_gen.go)\n", ann, gen.Name())
	fmt.Fprintf(sb, "      @%s(output=$PACKAGE_%s_gen.go)\n", ann, gen.Name())

	withDefault := lo.Filter(gen.ParamDefs(), func(p ParamDef, _ int) bool { return p.Default != "" })
	for _, param := range lo.Slice(withDefault, 0, maxParamExamples) {
		fmt.Fprintf(sb, "      @%s(%s=%s)\n", ann, param.Name, param.Default)
	}
}
