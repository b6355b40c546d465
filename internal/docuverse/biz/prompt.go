package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/docuverse/internal/docuverse/vectorindex"
	"github.com/kart-io/docuverse/internal/pkg/rag/loader"
	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
	"github.com/kart-io/docuverse/pkg/llm"
)

const (
	// DefaultMaxContextChars 文档上下文的默认字符预算。
	DefaultMaxContextChars = 4000
	// UnknownSource 分块缺少文件名时使用的来源名。
	UnknownSource = "Unknown Source"
	// NoHistory 没有历史对话时的占位文本。
	NoHistory = "No previous conversation."

	// minExcerptText 每个摘录至少保留的正文字符数。
	minExcerptText = 20
)

// PromptTemplate 问答提示词模板。
const PromptTemplate = `You are a helpful AI assistant analyzing documents and maintaining conversation context.

Previous conversation:
{conversation_history}

Context from documents:
{context}

Current question: {question}

Instructions:
1. Consider both the conversation history AND document context
2. Reference previous questions/answers when relevant
3. Cite specific documents when referencing information
4. Be consistent with previous responses
5. If information conflicts with previous answers, explain the difference
6. If the answer isn't in the context or previous conversation, say so

Answer: `

// PromptAssembler 组装检索上下文、历史对话和问题。
type PromptAssembler struct {
	MaxChars int
}

// NewPromptAssembler 创建提示词组装器，maxChars <= 0 时使用默认预算。
func NewPromptAssembler(maxChars int) *PromptAssembler {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	return &PromptAssembler{MaxChars: maxChars}
}

type sourceGroup struct {
	name   string
	chunks []vectorindex.ScoredChunk
}

func groupBySource(chunks []vectorindex.ScoredChunk) []*sourceGroup {
	var groups []*sourceGroup
	byName := make(map[string]*sourceGroup)
	for _, c := range chunks {
		name := sourceName(c)
		g, ok := byName[name]
		if !ok {
			g = &sourceGroup{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		g.chunks = append(g.chunks, c)
	}
	return groups
}

func sourceName(c vectorindex.ScoredChunk) string {
	if name, ok := c.Metadata[loader.KeyFileName].(string); ok && name != "" {
		return name
	}
	if c.DocumentName != "" {
		return c.DocumentName
	}
	return UnknownSource
}

// FormatContext 按来源轮转选取摘录：每一轮每个来源取一个分块，
// 剩余预算在本轮尚未处理的来源之间平分。结果不超过 maxChars 个字符。
func (p *PromptAssembler) FormatContext(chunks []vectorindex.ScoredChunk, maxChars int) string {
	if maxChars <= 0 {
		maxChars = p.MaxChars
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	groups := groupBySource(chunks)
	remaining := maxChars
	var parts []string

	for round := 0; remaining > 0; round++ {
		var pending []*sourceGroup
		for _, g := range groups {
			if round < len(g.chunks) {
				pending = append(pending, g)
			}
		}
		if len(pending) == 0 {
			break
		}

		for i, g := range pending {
			share := remaining / (len(pending) - i)
			header := "\n[From " + g.name + "]\n"
			const footer = "\n---\n"
			sep := 0
			if len(parts) > 0 {
				sep = 1
			}
			overhead := textutil.RuneLen(header) + textutil.RuneLen(footer) + sep
			if share < overhead+minExcerptText {
				continue
			}

			text := strings.TrimSpace(g.chunks[round].Content)
			text = textutil.TruncateWithEllipsis(text, share-overhead)
			part := header + text + footer

			parts = append(parts, part)
			remaining -= textutil.RuneLen(part) + sep
		}
	}
	return strings.Join(parts, "\n")
}

// FormatHistory 渲染除最后一条（当前问题）之外的历史消息。
func (p *PromptAssembler) FormatHistory(history []llm.Message) string {
	if len(history) <= 1 {
		return NoHistory
	}

	lines := make([]string, 0, len(history)-1)
	for _, msg := range history[:len(history)-1] {
		role := "Assistant"
		if msg.Role == llm.RoleUser {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

// Build 填充提示词模板。
func (p *PromptAssembler) Build(question, contextStr, historyStr string) string {
	return strings.NewReplacer(
		"{conversation_history}", historyStr,
		"{context}", contextStr,
		"{question}", question,
	).Replace(PromptTemplate)
}
