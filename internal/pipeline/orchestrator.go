package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/arch-QA-system/internal/llm"
	"github.com/fyerfyer/arch-QA-system/internal/retrieval"
)

// Orchestrator 依次执行检索和生成两个阶段
// 不做重试也不设超时，这些策略由调用方通过ctx和StageError自行决定
type Orchestrator struct {
	stages []Stage
	logger *logrus.Logger
}

// Option 编排器配置选项
type Option func(*orchestratorConfig)

type orchestratorConfig struct {
	generate []GenerateOption
	logger   *logrus.Logger
}

// WithGenerateOptions 设置生成阶段的选项
func WithGenerateOptions(opts ...GenerateOption) Option {
	return func(c *orchestratorConfig) {
		c.generate = append(c.generate, opts...)
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(c *orchestratorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建编排器，阶段固定为 [检索, 生成]
func New(retriever retrieval.Retriever, client llm.Client, opts ...Option) *Orchestrator {
	cfg := &orchestratorConfig{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Orchestrator{
		stages: []Stage{
			RetrieveStage(retriever),
			GenerateStage(client, cfg.generate...),
		},
		logger: cfg.logger,
	}
}

// Stages 返回阶段名称列表
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// Run 对问题依次执行各阶段，返回最终状态
// 阶段失败时返回 *StageError，状态为失败前最后一个成功的状态
func (o *Orchestrator) Run(ctx context.Context, question string) (State, error) {
	state := NewState(question)
	for _, stage := range o.stages {
		next, err := stage.Run(ctx, state)
		if err != nil {
			o.logger.WithFields(logrus.Fields{
				"stage":    stage.Name(),
				"question": question,
			}).WithError(err).Warn("Pipeline stage failed")
			return state, &StageError{Stage: stage.Name(), Err: err}
		}
		state = next
	}

	o.logger.WithFields(logrus.Fields{
		"docs":        len(state.docs),
		"has_diagram": state.diagram != "",
	}).Debug("Pipeline finished")
	return state, nil
}
