// Package phaselock 记录每个枚举已发布的迁移阶段。
//
// 锁文件是一个 YAML 映射，key 为 <包导入路径>.<类型名>：
//
//	version: 1
//	enums:
//	  github.com/acme/shop/search.SearchMode: deprecate
//
// 生成时若注解中的阶段早于锁文件中记录的阶段则拒绝生成，阶段只能保持或前进。
package phaselock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/donutnomad/enumshift/enum"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile 默认锁文件名
	DefaultFile = ".enumshift.lock.yaml"

	fileVersion = 1
)

// ErrRegression 阶段回退
var ErrRegression = errors.New("phase regression")

type lockFile struct {
	Version int               `yaml:"version"`
	Enums   map[string]string `yaml:"enums"`
}

// Lock 线程安全的阶段锁
type Lock struct {
	mu     sync.Mutex
	path   string
	phases map[string]enum.Phase
	dirty  bool
}

// Load 读取锁文件，文件不存在时返回空锁
func Load(path string) (*Lock, error) {
	l := &Lock{
		path:   path,
		phases: make(map[string]enum.Phase),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("读取锁文件 %s 失败: %w", path, err)
	}

	var f lockFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析锁文件 %s 失败: %w", path, err)
	}
	if f.Version != 0 && f.Version != fileVersion {
		return nil, fmt.Errorf("锁文件 %s 版本 %d 不受支持", path, f.Version)
	}

	for key, name := range f.Enums {
		phase, err := enum.ParsePhase(name)
		if err != nil {
			return nil, fmt.Errorf("锁文件 %s 中 %s 的阶段无效: %w", path, key, err)
		}
		l.phases[key] = phase
	}

	return l, nil
}

// Path 锁文件路径
func (l *Lock) Path() string {
	return l.path
}

// Phase 返回已记录的阶段
func (l *Lock) Phase(key string) (enum.Phase, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.phases[key]
	return p, ok
}

// Check 检查 phase 是否可以替换已记录的阶段
func (l *Lock) Check(key string, phase enum.Phase) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked, ok := l.phases[key]
	if !ok || locked.CanAdvanceTo(phase) {
		return nil
	}
	return fmt.Errorf("%w: 已发布阶段为 %s，不能回退到 %s", ErrRegression, locked, phase)
}

// Record 记录阶段，只会前进
func (l *Lock) Record(key string, phase enum.Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if locked, ok := l.phases[key]; ok && !locked.CanAdvanceTo(phase) {
		return
	}
	if l.phases[key] != phase {
		l.phases[key] = phase
		l.dirty = true
	}
}

// Dirty 是否有未保存的变更
func (l *Lock) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// Save 有变更时写回锁文件
func (l *Lock) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}

	f := lockFile{
		Version: fileVersion,
		Enums:   make(map[string]string, len(l.phases)),
	}
	for key, phase := range l.phases {
		f.Enums[key] = phase.String()
	}

	// yaml.v3 按 key 排序输出映射，文件内容稳定
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("序列化锁文件失败: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
		}
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("写入锁文件 %s 失败: %w", l.path, err)
	}

	l.dirty = false
	return nil
}
