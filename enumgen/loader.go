package enumgen

import (
	"fmt"
	"go/constant"
	"go/types"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/donutnomad/enumshift/internal/utils"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo

// loader 按目录加载并缓存包的类型信息
// 同一次运行中同一目录只加载一次
type loader struct {
	mu   sync.Mutex
	pkgs map[string]*packages.Package
}

func newLoader() *loader {
	return &loader{pkgs: make(map[string]*packages.Package)}
}

func (l *loader) load(dir string) (*packages.Package, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pkg, ok := l.pkgs[dir]; ok {
		return pkg, nil
	}

	cfg := &packages.Config{
		Mode: loadMode,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("加载包 %s 失败: %w", dir, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("目录 %s 中没有 Go 包", dir)
	}

	// 类型错误可以容忍（例如过期的生成文件引用了已删除的常量），
	// 只要类型信息可用即可
	pkg := pkgs[0]
	if pkg.Types == nil || pkg.Types.Scope() == nil {
		return nil, fmt.Errorf("加载包 %s 失败: %v", dir, pkg.Errors)
	}

	l.pkgs[dir] = pkg
	return pkg, nil
}

// inspect 读取 typeName 的底层类型以及该类型的全部包级常量
// 返回的 values 以常量名为 key，值为原始值的文本形式
func inspect(pkg *packages.Package, typeName string) (underlying string, members []*Member, values map[string]string, err error) {
	scope := pkg.Types.Scope()

	obj, ok := scope.Lookup(typeName).(*types.TypeName)
	if !ok {
		return "", nil, nil, fmt.Errorf("包 %s 中找不到类型 %s", pkg.PkgPath, typeName)
	}
	named, ok := obj.Type().(*types.Named)
	if !ok || obj.IsAlias() {
		return "", nil, nil, fmt.Errorf("%s 不是具名类型", typeName)
	}
	if named.TypeParams().Len() > 0 {
		return "", nil, nil, fmt.Errorf("%s 是泛型类型，不支持", typeName)
	}

	basic, ok := named.Underlying().(*types.Basic)
	if !ok {
		return "", nil, nil, fmt.Errorf("%s 的底层类型 %s 不是字符串或整数", typeName, named.Underlying())
	}
	info := basic.Info()
	switch {
	case info&types.IsString != 0:
		underlying = "string"
	case info&types.IsInteger != 0:
		underlying = basic.Name()
	default:
		return "", nil, nil, fmt.Errorf("%s 的底层类型 %s 不是字符串或整数", typeName, basic.Name())
	}

	var consts []*types.Const
	for _, name := range scope.Names() {
		c, ok := scope.Lookup(name).(*types.Const)
		if !ok || !types.Identical(c.Type(), named) {
			continue
		}
		consts = append(consts, c)
	}

	// 按声明顺序排列：文件名、文件内偏移
	slices.SortFunc(consts, func(a, b *types.Const) int {
		pa, pb := pkg.Fset.Position(a.Pos()), pkg.Fset.Position(b.Pos())
		if c := strings.Compare(filepath.Base(pa.Filename), filepath.Base(pb.Filename)); c != 0 {
			return c
		}
		return pa.Offset - pb.Offset
	})

	values = make(map[string]string, len(consts))
	for _, c := range consts {
		members = append(members, &Member{
			Const: c.Name(),
			Name:  utils.TrimTypePrefix(c.Name(), typeName),
		})
		values[c.Name()] = constText(c.Val())
	}

	return underlying, members, values, nil
}

// constText 常量值的规范文本形式
func constText(v constant.Value) string {
	if v.Kind() == constant.String {
		return constant.StringVal(v)
	}
	return v.ExactString()
}
