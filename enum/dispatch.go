package enum

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Dispatcher 基于映射表的分发器，用于无法使用生成代码的场景
// 构造时校验每个成员都有分支，缺失即报错
type Dispatcher[E comparable, B Backing, R any] struct {
	set      *Set[E, B]
	handlers map[E]func(E) R
}

// NewDispatcher 创建分发器
// handlers 必须覆盖 set 的全部成员，且不能包含集合外的值
func NewDispatcher[E comparable, B Backing, R any](set *Set[E, B], handlers map[E]func(E) R) (*Dispatcher[E, B, R], error) {
	missing := lo.FilterMap(set.entries, func(e Entry[E, B], _ int) (string, bool) {
		h, ok := handlers[e.Value]
		return e.Name, !ok || h == nil
	})
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrNotExhaustive, "%s: missing branches for %s", set.name, strings.Join(missing, ", "))
	}

	for v := range handlers {
		if !set.Contains(v) {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s: branch for unknown value %q", set.name, primitiveText(v))
		}
	}

	d := &Dispatcher[E, B, R]{
		set:      set,
		handlers: make(map[E]func(E) R, len(handlers)),
	}
	for v, h := range handlers {
		d.handlers[v] = h
	}
	return d, nil
}

// MustNewDispatcher 创建分发器，失败时 panic
func MustNewDispatcher[E comparable, B Backing, R any](set *Set[E, B], handlers map[E]func(E) R) *Dispatcher[E, B, R] {
	d, err := NewDispatcher(set, handlers)
	if err != nil {
		panic(err)
	}
	return d
}

// Dispatch 只调用 v 对应的分支；集合外的值返回 ErrInvalidInput
func (d *Dispatcher[E, B, R]) Dispatch(v E) (R, error) {
	h, ok := d.handlers[v]
	if !ok {
		var zero R
		return zero, d.set.Invalid(v)
	}
	return h(v), nil
}
