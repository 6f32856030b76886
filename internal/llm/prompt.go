package llm

import "strings"

// ArchitectureTemplate 架构解读提示词模板
// 包含变量：
// {{.Question}} - 用户问题
// {{.Context}} - 检索的上下文
const ArchitectureTemplate = `You are an Expert Software Architect. Analyze the following code context and answer the user's question.
Focus on structural relationships, class hierarchies, and data flow.
If the context does not contain enough information, say so instead of guessing.

Context:
{{.Context}}

Question:
{{.Question}}`

// DiagramTemplate 架构图提示词模板，只使用 {{.Context}}
const DiagramTemplate = `Based on the code below, generate a Mermaid.js 'graph TD' or 'classDiagram'
that visualizes the components discussed. Return ONLY the mermaid code block.

Context:
{{.Context}}`

// RenderPrompt 用问题和上下文填充模板
func RenderPrompt(template, question, context string) string {
	return strings.NewReplacer(
		"{{.Question}}", question,
		"{{.Context}}", context,
	).Replace(template)
}
