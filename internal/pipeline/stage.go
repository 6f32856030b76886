package pipeline

import (
	"context"
	"fmt"

	"github.com/fyerfyer/arch-QA-system/internal/retrieval"
)

// Stage 流水线中的一个步骤
type Stage interface {
	// Name 返回阶段名称
	Name() string
	// Run 根据输入状态产生新状态
	Run(ctx context.Context, state State) (State, error)
}

// StageRetrieve 与 StageGenerate 为内置阶段名
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// retrieveStage 检索阶段
type retrieveStage struct {
	retriever retrieval.Retriever
}

// RetrieveStage 创建检索阶段
func RetrieveStage(retriever retrieval.Retriever) Stage {
	return &retrieveStage{retriever: retriever}
}

func (s *retrieveStage) Name() string {
	return StageRetrieve
}

// Run 检索与问题相关的文档
func (s *retrieveStage) Run(ctx context.Context, state State) (State, error) {
	if state.Phase() != PhaseInitial {
		return state, fmt.Errorf("%w: retrieve expects %s state, got %s", ErrStageOrder, PhaseInitial, state.Phase())
	}

	docs, err := s.retriever.Retrieve(ctx, state.Question())
	if err != nil {
		return state, err
	}
	return state.WithDocs(docs), nil
}
