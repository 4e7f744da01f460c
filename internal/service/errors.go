package service

import (
	"errors"
	"fmt"
)

// 错误三分类：校验失败（4xx，不重试）/状态冲突（已发生过，需与坏输入区分）/链上调用失败（留待重试）。
// 用显式错误类型替代异常式控制流，批处理循环可以据此跳过单条继续处理

// ValidationError 请求参数或链上校验失败：参数不合法、与链上解码结果不一致、比赛未开盘等
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError 与既有状态冲突：交易哈希已用、候选下标全被占用、重复领取等
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// NewConflictError 创建冲突错误
func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// ChainCallError 链上调用硬失败（RPC错误/revert/超时）。同步循环内不会抛出——
// 仅手动触发的单场推进接口用它区分 502
type ChainCallError struct {
	Op string
}

func (e *ChainCallError) Error() string { return fmt.Sprintf("%s failed on-chain", e.Op) }

// IsValidation err 是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict err 是否为冲突错误
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsChainCall err 是否为链上调用失败
func IsChainCall(err error) bool {
	var ce *ChainCallError
	return errors.As(err, &ce)
}
