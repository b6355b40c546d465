// Package textutil 提供检索相关的文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，长度不一致或任一为零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 SHA-256 十六进制摘要。
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NormalizeQuestion 去除首尾空白、折叠内部空白并转为小写。
func NormalizeQuestion(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// RuneLen 返回字符串的 Unicode 字符数。
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// TruncateWithEllipsis 截断到 maxLen 个字符（含 "..."）。
func TruncateWithEllipsis(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return TruncateString(s, maxLen)
	}
	return TruncateString(s, maxLen-3) + "..."
}

// SplitIntoChunks 将文本按字符数切成重叠的块。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	overlap = clampOverlap(chunkSize, overlap)

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func clampOverlap(chunkSize, overlap int) int {
	if overlap < 0 {
		return 0
	}
	if overlap >= chunkSize {
		return chunkSize - 1
	}
	return overlap
}

// SplitSentences 按句末标点（. ! ? 。！？）和空行切分文本。
// 标点保留在句子末尾，空白被折叠。
func SplitSentences(text string) []string {
	var sentences []string
	for _, para := range splitParagraphs(text) {
		runes := []rune(para)
		start := 0
		for i := 0; i < len(runes); i++ {
			if !isTerminator(runes[i]) {
				continue
			}
			// 连续标点（如 "?!" 或 "..."）归入同一句。
			for i+1 < len(runes) && isTerminator(runes[i+1]) {
				i++
			}
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) || isCJKTerminator(runes[i]) {
				if s := collapse(string(runes[start : i+1])); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
		if s := collapse(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n\n")
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isCJKTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ChunkSentences 把句子贪心地合并为不超过 size 个字符的块。
// 相邻块之间保留末尾若干整句作为重叠，重叠总长不超过 overlap；
// 单句超过 size 时退化为 SplitIntoChunks 的字符切分。
func ChunkSentences(sentences []string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	overlap = clampOverlap(size, overlap)

	var (
		chunks  []string
		current []string
		curLen  int
	)

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
	}

	for _, s := range sentences {
		sLen := RuneLen(s)
		if sLen > size {
			flush()
			chunks = append(chunks, SplitIntoChunks(s, size, overlap)...)
			current, curLen = nil, 0
			continue
		}

		if len(current) > 0 && curLen+1+sLen > size {
			flush()
			current, curLen = overlapTail(current, overlap)
			if len(current) > 0 && curLen+1+sLen > size {
				current, curLen = nil, 0
			}
		}

		if len(current) > 0 {
			curLen++
		}
		current = append(current, s)
		curLen += sLen
	}
	flush()
	return chunks
}

// overlapTail 返回末尾连续句子，其拼接长度不超过 overlap。
func overlapTail(sentences []string, overlap int) ([]string, int) {
	total := 0
	i := len(sentences)
	for i > 0 {
		l := RuneLen(sentences[i-1])
		if total > 0 {
			l++
		}
		if total+l > overlap {
			break
		}
		total += l
		i--
	}
	tail := make([]string, len(sentences)-i)
	copy(tail, sentences[i:])
	return tail, total
}
