package loader

import (
	"context"
	"os"
	"strings"
)

func readText(_ context.Context, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.ToValidUTF8(string(data), "�")
	return []Document{{Text: text}}, nil
}
