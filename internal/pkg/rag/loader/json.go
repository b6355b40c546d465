package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/docuverse/pkg/utils/json"
)

const (
	// JSONLevelsBack 每个叶子行保留的末尾路径键数。
	JSONLevelsBack = 2
	// JSONCollapseLength 紧凑序列化不超过该长度的子树整体输出为一行。
	JSONCollapseLength = 500
)

// JSONWalker 把 JSON 树展开为带路径前缀的行。
type JSONWalker struct {
	LevelsBack     int
	CollapseLength int
}

// Lines 深度优先遍历 v；对象键按字典序访问，数组元素不追加路径。
func (w JSONWalker) Lines(v any) []string {
	var lines []string
	w.walk(v, nil, &lines)
	return lines
}

func (w JSONWalker) walk(v any, path []string, out *[]string) {
	switch t := v.(type) {
	case map[string]any, []any:
		if w.CollapseLength > 0 {
			if compact, err := json.Marshal(t); err == nil && len(compact) <= w.CollapseLength {
				*out = append(*out, w.line(path, string(compact)))
				return
			}
		}
	}

	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.walk(t[k], append(path[:len(path):len(path)], k), out)
		}
	case []any:
		for _, e := range t {
			w.walk(e, path, out)
		}
	default:
		*out = append(*out, w.line(path, scalarString(t)))
	}
}

func (w JSONWalker) line(path []string, value string) string {
	if w.LevelsBack > 0 && len(path) > w.LevelsBack {
		path = path[len(path)-w.LevelsBack:]
	}
	if len(path) == 0 {
		return value
	}
	return strings.Join(path, " ") + " " + value
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

var defaultWalker = JSONWalker{LevelsBack: JSONLevelsBack, CollapseLength: JSONCollapseLength}

// readJSON 顶层为数组时每个元素一个文档，否则整个文件一个文档。
func readJSON(_ context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}

	arr, ok := v.([]any)
	if !ok {
		return []Document{{Text: strings.Join(defaultWalker.Lines(v), "\n\n")}}, nil
	}
	docs := make([]Document, 0, len(arr))
	for i, e := range arr {
		meta := section("element", i)
		meta["json_index"] = i
		docs = append(docs, Document{Text: strings.Join(defaultWalker.Lines(e), "\n\n"), Metadata: meta})
	}
	return docs, nil
}

// readJSONLines 每个非空行一个文档。
func readJSONLines(ctx context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []Document
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(sc.Bytes())
		n++
		if len(line) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("jsonl line %d: %w", n, err)
		}
		meta := section("line", n)
		meta["json_index"] = n - 1
		docs = append(docs, Document{Text: strings.Join(defaultWalker.Lines(v), "\n\n"), Metadata: meta})
	}
	return docs, sc.Err()
}
