package processor

import (
	"fmt"
)

// SchemaError 输入表缺少必需的列
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: table %s missing column %s", e.Table, e.Column)
}

// DateParseError 通过筛选的行中存在无法解析的时间
type DateParseError struct {
	Table  string
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date parse error: %s.%s row %d value %q: %v", e.Table, e.Column, e.Row, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// ValueError 数值列中存在无法使用的值（价格、评分）
type ValueError struct {
	Table  string
	Column string
	Row    int
	Value  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value error: %s.%s row %d value %q is not numeric", e.Table, e.Column, e.Row, e.Value)
}

// KeyUniquenessViolation 合并前同一张表中 seller_id 重复
type KeyUniquenessViolation struct {
	Table string
	Key   string
	Value string
	Count int
}

func (e *KeyUniquenessViolation) Error() string {
	return fmt.Sprintf("key uniqueness violation: %s.%s value %q appears %d times", e.Table, e.Key, e.Value, e.Count)
}

// JoinInvariantError 合并结果的行数或列集合不符合预期
type JoinInvariantError struct {
	Reason string
}

func (e *JoinInvariantError) Error() string {
	return "join invariant violated: " + e.Reason
}
