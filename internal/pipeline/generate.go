package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/llm"
)

// NoEvidenceAnswer 没有检索到任何文档时的固定回答
const NoEvidenceAnswer = "I could not find any relevant code or documents in the indexed sources to answer this question."

const (
	fence         = "```"
	unknownSource = "unknown"
)

var fenceInfo = regexp.MustCompile(`^[\w+.-]*$`)

// generateStage 生成阶段：一次架构解读，一次架构图
type generateStage struct {
	client          llm.Client
	answerTemplate  string
	diagramTemplate string
	diagramDisabled bool
	callOptions     []llm.CallOption
}

// GenerateOption 生成阶段配置选项
type GenerateOption func(*generateStage)

// WithAnswerTemplate 设置架构解读提示词模板
func WithAnswerTemplate(template string) GenerateOption {
	return func(s *generateStage) {
		s.answerTemplate = template
	}
}

// WithDiagramTemplate 设置架构图提示词模板
func WithDiagramTemplate(template string) GenerateOption {
	return func(s *generateStage) {
		s.diagramTemplate = template
	}
}

// WithoutDiagram 跳过架构图生成
func WithoutDiagram() GenerateOption {
	return func(s *generateStage) {
		s.diagramDisabled = true
	}
}

// WithCallOptions 设置每次模型调用的选项
func WithCallOptions(opts ...llm.CallOption) GenerateOption {
	return func(s *generateStage) {
		s.callOptions = append(s.callOptions, opts...)
	}
}

// GenerateStage 创建生成阶段
func GenerateStage(client llm.Client, opts ...GenerateOption) Stage {
	s := &generateStage{
		client:          client,
		answerTemplate:  llm.ArchitectureTemplate,
		diagramTemplate: llm.DiagramTemplate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *generateStage) Name() string {
	return StageGenerate
}

// Run 根据检索结果生成回答和架构图
func (s *generateStage) Run(ctx context.Context, state State) (State, error) {
	if state.Phase() != PhaseRetrieved {
		return state, fmt.Errorf("%w: generate expects %s state, got %s", ErrStageOrder, PhaseRetrieved, state.Phase())
	}

	docs := state.Docs()
	if len(docs) == 0 {
		return state.WithAnswer(NoEvidenceAnswer, ""), nil
	}

	contextText := BuildContext(docs)
	answerResp, err := s.client.Generate(ctx,
		llm.RenderPrompt(s.answerTemplate, state.Question(), contextText), s.callOptions...)
	if err != nil {
		return state, fmt.Errorf("architecture prompt: %w", err)
	}
	answer := strings.TrimSpace(answerResp.Text)
	if answer == "" {
		return state, ErrEmptyAnswer
	}

	if s.diagramDisabled {
		return state.WithAnswer(answer, ""), nil
	}

	diagramResp, err := s.client.Generate(ctx,
		llm.RenderPrompt(s.diagramTemplate, state.Question(), contextText), s.callOptions...)
	if err != nil {
		return state, fmt.Errorf("diagram prompt: %w", err)
	}
	diagram, _ := SanitizeDiagram(diagramResp.Text)

	return state.WithAnswer(answer, diagram), nil
}

// BuildContext 把文档拼成提示词上下文，每个文档以来源标注，文档之间空一行
func BuildContext(docs []document.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		source := doc.Source()
		if source == "" {
			source = unknownSource
		}
		parts = append(parts, "File: "+source+"\n"+doc.Content)
	}
	return strings.Join(parts, "\n\n")
}

// SanitizeDiagram 去掉模型输出中的代码围栏，只保留图的描述
// 有围栏时取第一个代码块的内容；结果为空时第二个返回值为false
func SanitizeDiagram(raw string) (string, bool) {
	body := raw
	if open := strings.Index(raw, fence); open >= 0 {
		rest := raw[open+len(fence):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && fenceInfo.MatchString(strings.TrimSpace(rest[:nl])) {
			// 去掉 ```mermaid 这样的语言标记
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, fence); end >= 0 {
			rest = rest[:end]
		}
		body = rest
	}

	diagram := strings.TrimSpace(strings.ReplaceAll(body, fence, ""))
	return diagram, diagram != ""
}
