package pipeline

import "github.com/fyerfyer/arch-QA-system/internal/document"

// Phase 状态所处的阶段
type Phase int

const (
	PhaseInitial   Phase = iota // 只有问题
	PhaseRetrieved              // 已检索文档
	PhaseAnswered               // 已生成回答
)

// String 返回阶段名称
func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseRetrieved:
		return "retrieved"
	case PhaseAnswered:
		return "answered"
	default:
		return "unknown"
	}
}

// State 在各阶段之间传递的不可变状态
// 每个阶段都返回新的State，不修改输入
type State struct {
	question string
	docs     []document.Document
	answer   string
	diagram  string
	phase    Phase
}

// NewState 创建只包含问题的初始状态
func NewState(question string) State {
	return State{question: question, phase: PhaseInitial}
}

// Question 返回问题
func (s State) Question() string {
	return s.question
}

// Docs 返回检索到的文档副本
func (s State) Docs() []document.Document {
	docs := make([]document.Document, len(s.docs))
	copy(docs, s.docs)
	return docs
}

// Answer 返回回答，生成前为空
func (s State) Answer() string {
	return s.answer
}

// Diagram 返回架构图，没有时第二个返回值为false
func (s State) Diagram() (string, bool) {
	return s.diagram, s.diagram != ""
}

// Phase 返回当前阶段
func (s State) Phase() Phase {
	return s.phase
}

// WithDocs 返回带有检索结果的新状态
func (s State) WithDocs(docs []document.Document) State {
	next := s
	next.docs = make([]document.Document, len(docs))
	copy(next.docs, docs)
	next.phase = PhaseRetrieved
	return next
}

// WithAnswer 返回带有回答和架构图的新状态，diagram为空表示没有架构图
func (s State) WithAnswer(answer, diagram string) State {
	next := s
	next.answer = answer
	next.diagram = diagram
	next.phase = PhaseAnswered
	return next
}
