package loader

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF 按页提取文本，每页一个文档；无法解析的页面被跳过。
func readPDF(ctx context.Context, path string) ([]Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := r.NumPage()
	docs := make([]Document, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		meta := section("page", i)
		meta["page_number"] = i
		meta["total_pages"] = total
		docs = append(docs, Document{Text: text, Metadata: meta})
	}
	return docs, nil
}
