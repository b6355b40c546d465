package biz

import (
	"strings"
	"unicode"

	"github.com/kart-io/docuverse/internal/model"
	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
)

// UnnamedSession 查不到会话时显示的名称。
const UnnamedSession = "Unnamed Conversation"

const (
	maxTitleRunes = 50
	titlePrefix   = "💬 "
)

var questionStarters = []string{
	"what is",
	"how to",
	"can you",
	"please",
	"tell me about",
	"explain",
}

// SuggestName 根据第一条用户消息生成会话名称。
func SuggestName(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return model.DefaultSessionName
	}

	for _, starter := range questionStarters {
		if len(title) >= len(starter) && strings.EqualFold(title[:len(starter)], starter) {
			title = strings.TrimSpace(title[len(starter):])
		}
	}

	words := strings.Fields(title)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	title = strings.Join(words, " ")

	if textutil.RuneLen(title) > maxTitleRunes {
		head := textutil.TruncateString(title, maxTitleRunes)
		if cut := strings.LastIndex(head, " "); cut >= 0 {
			head = head[:cut]
		}
		title = strings.TrimSpace(head) + "..."
	}
	return titlePrefix + title
}

func capitalize(w string) string {
	r := []rune(strings.ToLower(w))
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}
