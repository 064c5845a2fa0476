package enum

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidInput 原始值没有对应的枚举成员
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDefinition 枚举集合定义不合法（空集合、重复名称、重复原始值）
	ErrInvalidDefinition = errors.New("invalid enum definition")

	// ErrNotExhaustive 分发器没有覆盖全部枚举成员
	ErrNotExhaustive = errors.New("dispatch is not exhaustive")
)

// InvalidInputError 携带被拒绝的值以及合法取值列表
type InvalidInputError struct {
	Set     string   // 枚举类型名
	Value   any      // 被拒绝的值，nil 表示空输入
	Allowed []string // 合法原始值（文本形式）
}

func (e *InvalidInputError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid input for %s: empty value", e.Set)
	}
	return fmt.Sprintf("invalid input for %s: %q", e.Set, primitiveText(e.Value))
}

// Is 使 errors.Is(err, ErrInvalidInput) 成立
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// GRPCStatus 映射为 codes.InvalidArgument
func (e *InvalidInputError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// AsInvalidInput 从错误链中提取 InvalidInputError
func AsInvalidInput(err error) (*InvalidInputError, bool) {
	var target *InvalidInputError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func newInvalidInput(set string, value any, allowed []string) error {
	err := &InvalidInputError{Set: set, Value: value, Allowed: allowed}
	return errors.WithHintf(err, "allowed values: %s", strings.Join(allowed, ", "))
}
