package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStageOrder 阶段收到的状态不在预期阶段
	ErrStageOrder = errors.New("stage applied out of order")
	// ErrEmptyAnswer 模型返回空回答
	ErrEmptyAnswer = errors.New("model returned an empty answer")
)

// StageError 阶段执行失败，记录阶段名和原因，调用方据此决定是否重试
type StageError struct {
	Stage string
	Err   error
}

// Error 实现error接口
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap 返回底层错误
func (e *StageError) Unwrap() error {
	return e.Err
}
