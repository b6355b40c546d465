package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readCSV 把每行渲染为 "列名: 值" 的多行文本，行之间以空行分隔。
func readCSV(_ context.Context, path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}

	var (
		b    strings.Builder
		rows int
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if rows > 0 {
			b.WriteString("\n\n")
		}
		for i, v := range record {
			col := fmt.Sprintf("column_%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				col = strings.TrimSpace(header[i])
			}
			fmt.Fprintf(&b, "%s: %s\n", col, strings.TrimSpace(v))
		}
		rows++
	}

	return []Document{{
		Text:     strings.TrimSpace(b.String()),
		Metadata: map[string]any{"row_count": rows, "columns": strings.Join(header, ",")},
	}}, nil
}
