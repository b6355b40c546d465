package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kart-io/docuverse/pkg/utils/json"
)

type notebook struct {
	Cells []struct {
		CellType string          `json:"cell_type"`
		Source   json.RawMessage `json:"source"`
	} `json:"cells"`
}

// cellSource 兼容字符串与字符串数组两种 source 格式。
func cellSource(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}

// readNotebook 合并 markdown 与 code 单元格的源码。
func readNotebook(_ context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("ipynb: %w", err)
	}

	var parts []string
	for _, cell := range nb.Cells {
		if cell.CellType != "markdown" && cell.CellType != "code" {
			continue
		}
		if src := strings.TrimSpace(cellSource(cell.Source)); src != "" {
			parts = append(parts, src)
		}
	}
	return []Document{{
		Text:     strings.Join(parts, "\n\n"),
		Metadata: map[string]any{"cell_count": len(nb.Cells)},
	}}, nil
}
