// Package inventory 汇总带注解的枚举，输出为 JSON 或 Markdown。
package inventory

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bytedance/sonic"
	"github.com/donutnomad/enumshift/enumgen"
	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

// Format 输出格式
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat 解析输出格式，md 是 markdown 的简写
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("未知的输出格式 %q (必须是 json 或 markdown)", s)
}

// Entry 一个枚举的汇总信息
type Entry struct {
	Type        string   `json:"type"`
	Package     string   `json:"package"`
	PkgPath     string   `json:"pkg_path"`
	File        string   `json:"file"`
	Output      string   `json:"output"`
	Phase       string   `json:"phase"`
	Next        string   `json:"next_phase,omitempty"`
	BackingType string   `json:"backing_type"`
	Source      string   `json:"backing_source"`
	Accepts     []string `json:"accepts"` // 调用点接受的输入: typed / primitive
	Deprecated  bool     `json:"primitive_deprecated"`
	Members     []Member `json:"members"`
}

// Member 枚举成员
type Member struct {
	Const   string `json:"const"`
	Name    string `json:"name"`
	Backing string `json:"backing"`
}

// FromEnums 转换为汇总信息，文件路径相对于 root
func FromEnums(enums []*enumgen.Enum, root string) []Entry {
	return lo.Map(enums, func(e *enumgen.Enum, _ int) Entry {
		entry := Entry{
			Type:        e.Type,
			Package:     e.Package,
			PkgPath:     e.PkgPath,
			File:        relPath(root, e.File),
			Output:      relPath(root, e.Output),
			Phase:       e.Phase.String(),
			BackingType: e.BackingType,
			Source:      string(e.Source),
			Deprecated:  e.Phase.PrimitiveDeprecated(),
			Accepts:     []string{},
			Members: lo.Map(e.Members, func(m *enumgen.Member, _ int) Member {
				return Member{Const: m.Const, Name: m.Name, Backing: m.Backing}
			}),
		}
		if next, ok := e.Phase.Next(); ok {
			entry.Next = next.String()
		}
		if e.Phase.AcceptsTyped() {
			entry.Accepts = append(entry.Accepts, "typed")
		}
		if e.Phase.AcceptsPrimitive() {
			entry.Accepts = append(entry.Accepts, "primitive")
		}
		return entry
	})
}

func relPath(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// Write 按格式输出
func Write(w io.Writer, format Format, entries []Entry) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, entries)
	case FormatMarkdown:
		return WriteMarkdown(w, entries)
	}
	return fmt.Errorf("未知的输出格式 %q", format)
}

// WriteJSON 输出 JSON 数组
func WriteJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 JSON 失败: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

const markdownTemplate = `# 枚举清单

共 {{ len . }} 个枚举。
{{- range . }}

## {{ .Type }}

- 包: ` + "`{{ .PkgPath }}`" + `
- 文件: ` + "`{{ .File }}`" + `
- 阶段: {{ .Phase }}{{ if .Next }} (下一阶段: {{ .Next }}){{ else }} (已完成){{ end }}
- 原始值: {{ .BackingType }}, 来源 {{ .Source }}
- 调用点接受: {{ .Accepts | join ", " | default "-" }}
{{- if .Deprecated }}
- 原始值入口已废弃
{{- end }}

{{ table .Members }}
{{- end }}
`

var markdownTmpl = template.Must(template.New("inventory").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"table": memberTable}).
	Parse(markdownTemplate))

// WriteMarkdown 输出 Markdown 文档
func WriteMarkdown(w io.Writer, entries []Entry) error {
	if err := markdownTmpl.Execute(w, entries); err != nil {
		return fmt.Errorf("渲染 Markdown 失败: %w", err)
	}
	return nil
}

// memberTable 渲染成员表格，列宽按显示宽度对齐
func memberTable(members []Member) string {
	rows := [][]string{{"常量", "成员", "原始值"}}
	for _, m := range members {
		rows = append(rows, []string{"`" + m.Const + "`", m.Name, "`" + m.Backing + "`"})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i, cell := range cells {
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	writeRow(lo.Map(widths, func(w int, _ int) string { return strings.Repeat("-", w) }))
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
