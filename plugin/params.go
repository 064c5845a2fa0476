package plugin

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// ParseParamsFromStruct 从结构体的tag解析参数定义
// 支持的tag: name, required, default, description
//
// 示例:
//
//	type EnumParams struct {
//	    Phase   string `param:"name=phase,required=false,default=introduce,description=迁移阶段"`
//	    Backing string `param:"name=backing,required=false,default=value,description=原始值来源"`
//	    SQL     bool   `param:"name=sql,required=false,default=false,description=生成 Value / Scan"`
//	}
//
//	params := plugin.ParseParamsFromStruct(EnumParams{})
func ParseParamsFromStruct(v any) []ParamDef {
	val := reflect.ValueOf(v)
	typ := val.Type()

	// 如果是指针,解引用
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	// 必须是结构体
	if typ.Kind() != reflect.Struct {
		return nil
	}

	var params []ParamDef

	// 遍历所有字段
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		// 获取 param tag
		tag := field.Tag.Get("param")
		if tag == "" {
			continue
		}

		// 解析tag
		paramDef := parseParamTag(tag)
		if paramDef.Name != "" {
			params = append(params, paramDef)
		}
	}

	return params
}

// parseParamTag 解析 param tag 字符串
// 格式: name=xxx,required=true,default=xxx,description=xxx
func parseParamTag(tag string) ParamDef {
	var param ParamDef

	// 简单的键值对解析
	pairs := splitTag(tag)
	for key, value := range pairs {
		switch key {
		case "name":
			param.Name = value
		case "required":
			param.Required = value == "true"
		case "default":
			param.Default = value
		case "description":
			param.Description = value
		}
	}

	return param
}

// splitTag 分割tag字符串为键值对
// 格式: key1=value1,key2=value2,...，值中的逗号用 \, 转义
func splitTag(tag string) map[string]string {
	result := make(map[string]string)

	var key, value strings.Builder
	cur := &key
	escaped := false

	flush := func() {
		if key.Len() > 0 {
			result[key.String()] = value.String()
		}
		key.Reset()
		value.Reset()
		cur = &key
	}

	// 按字节处理，多字节字符原样写入
	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case escaped:
			cur.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '=' && cur == &key:
			cur = &value
		case ch == ',':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()

	return result
}

// ParseParamBool 解析参数为bool值
func ParseParamBool(value string) bool {
	b, _ := cast.ToBoolE(value)
	return b
}

// commonParams 所有生成器共用的参数，不需要在参数结构体中声明
var commonParams = map[string]bool{"output": true}

// ParseAnnotationParams 将注解的参数解析到目标结构体中
// annotation: 注解对象，包含参数键值对
// target: 目标结构体（必须是指针）
// paramDefs: 参数定义列表，用于应用默认值
//
// 未声明的参数和缺失的必填参数都会返回错误，避免拼写错误被静默忽略
//
// 示例:
//
//	var params EnumParams
//	err := plugin.ParseAnnotationParams(annotation, &params, paramDefs)
func ParseAnnotationParams(annotation *Annotation, target any, paramDefs []ParamDef) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("参数目标必须是非 nil 指针, 得到: %T", target)
	}

	val = val.Elem()
	typ := val.Type()

	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("参数目标必须指向结构体, 得到: %T", target)
	}

	// 创建参数定义的映射，方便查找默认值
	defMap := make(map[string]ParamDef)
	for _, def := range paramDefs {
		defMap[def.Name] = def
	}

	known := make(map[string]bool)

	// 遍历结构体字段
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		// 解析 param tag 获取参数名
		tag := field.Tag.Get("param")
		if tag == "" {
			continue
		}

		paramDef := parseParamTag(tag)
		paramName := paramDef.Name
		if paramName == "" {
			continue
		}
		known[paramName] = true

		// 从注解中获取参数值
		paramValue := annotation.GetParam(paramName)

		// 如果注解中没有该参数，使用默认值
		if paramValue == "" {
			def, ok := defMap[paramName]
			if ok && def.Required {
				return fmt.Errorf("@%s 缺少必填参数 %s", annotation.Name, paramName)
			}
			if ok {
				paramValue = def.Default
			}
		}

		// 设置字段值
		if err := setFieldValue(fieldVal, paramValue); err != nil {
			return fmt.Errorf("@%s 参数 %s 的值 %q 无效: %w", annotation.Name, paramName, paramValue, err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(annotation.Params)) {
		if !known[name] && !commonParams[name] {
			return fmt.Errorf("@%s 不支持参数 %s", annotation.Name, name)
		}
	}

	return nil
}

// setFieldValue 设置字段值，支持 string, int, bool 等基本类型
// 空字符串视为零值
func setFieldValue(field reflect.Value, value string) error {
	if value == "" {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		if field.OverflowInt(v) {
			return fmt.Errorf("超出 %s 的范围", field.Kind())
		}
		field.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := cast.ToUint64E(value)
		if err != nil {
			return err
		}
		if field.OverflowUint(v) {
			return fmt.Errorf("超出 %s 的范围", field.Kind())
		}
		field.SetUint(v)
	case reflect.Bool:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		field.SetBool(v)
	case reflect.Float32, reflect.Float64:
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		field.SetFloat(v)
	}
	return nil
}
