package plugin

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// annotationRegex 匹配行首或空白后的 @Name 或 @Name(params)
// ops@example.com 这类文本中的 @ 不是注解
var annotationRegex = regexp.MustCompile(`(?:^|\s)@(\w+)(?:\(([^)]*)\))?`)

// paramRegex 匹配参数:
// - key=`value` (反引号格式)
// - key="value" (双引号格式)
// - key=value (普通格式)
var paramRegex = regexp.MustCompile("(\\w+)\\s*=\\s*`([^`]*)`|(\\w+)\\s*=\\s*\"([^\"]*)\"|(\\w+)\\s*=\\s*([^,\\s]+)")

// ParseAnnotations 从注释文本中解析所有注解，参数名统一为小写
func ParseAnnotations(comment string) []*Annotation {
	var annotations []*Annotation

	for _, line := range strings.Split(comment, "\n") {
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimSpace(line)

		for _, match := range annotationRegex.FindAllStringSubmatch(line, -1) {
			annotations = append(annotations, &Annotation{
				Name:   match[1],
				Params: parseParams(match[2]),
				Raw:    strings.TrimSpace(match[0]),
			})
		}
	}

	return annotations
}

func parseParams(content string) map[string]string {
	params := make(map[string]string)
	if content == "" {
		return params
	}

	for _, m := range paramRegex.FindAllStringSubmatch(content, -1) {
		// 三种格式各占一组 (key, value)
		for i := 1; i+1 < len(m); i += 2 {
			if m[i] != "" {
				params[strings.ToLower(m[i])] = m[i+1]
				break
			}
		}
	}

	return params
}

// FilterByNames 保留指定名称的注解，names 为空时原样返回
func FilterByNames(annotations []*Annotation, names ...string) []*Annotation {
	if len(names) == 0 {
		return annotations
	}
	return lo.Filter(annotations, func(ann *Annotation, _ int) bool {
		return slices.Contains(names, ann.Name)
	})
}

// HasAnnotation 检查是否包含指定注解
func HasAnnotation(annotations []*Annotation, name string) bool {
	return GetAnnotation(annotations, name) != nil
}

// GetAnnotation 获取第一个指定名称的注解
func GetAnnotation(annotations []*Annotation, name string) *Annotation {
	ann, _ := lo.Find(annotations, func(ann *Annotation) bool {
		return ann.Name == name
	})
	return ann
}

// GetParam 获取注解参数，参数名不区分大小写
func (a *Annotation) GetParam(key string) string {
	return a.Params[strings.ToLower(key)]
}

// String 返回规范形式，参数按名称排序，例如 @Enum(phase=dual, sql=true)
func (a *Annotation) String() string {
	if len(a.Params) == 0 {
		return "@" + a.Name
	}
	pairs := lo.Map(slices.Sorted(maps.Keys(a.Params)), func(k string, _ int) string {
		return k + "=" + a.Params[k]
	})
	return "@" + a.Name + "(" + strings.Join(pairs, ", ") + ")"
}
