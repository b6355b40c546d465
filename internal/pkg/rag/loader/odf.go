package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// readODT 提取 OpenDocument 文本文档 content.xml 中的段落和标题。
func readODT(_ context.Context, path string) ([]Document, error) {
	pages, err := readODFContent(path, "")
	if err != nil {
		return nil, fmt.Errorf("odt: %w", err)
	}
	return []Document{{Text: pages[0]}}, nil
}

// readODP 按 draw:page 顺序提取演示文稿文本，每页一个文档。
func readODP(ctx context.Context, path string) ([]Document, error) {
	pages, err := readODFContent(path, "page")
	if err != nil {
		return nil, fmt.Errorf("odp: %w", err)
	}
	if len(pages) == 0 {
		return nil, errors.New("odp: no pages found")
	}

	docs := make([]Document, 0, len(pages))
	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta := section("slide", i+1)
		meta["slide_number"] = i + 1
		docs = append(docs, Document{Text: text, Metadata: meta})
	}
	return docs, nil
}

func readODFContent(path, pageElem string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	f := findZipFile(&zr.Reader, "content.xml")
	if f == nil {
		return nil, errors.New("content.xml not found")
	}
	return extractODFText(f, pageElem)
}

// extractODFText 收集 office:body 下 text:p/text:h 的文本。
// pageElem 非空时每遇到一个该元素切出一页，否则整个正文作为一页返回。
func extractODFText(f *zip.File, pageElem string) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var (
		pages  []string
		b      strings.Builder
		inBody bool
		depth  int // 所在 text:p / text:h 的嵌套层数
	)
	flush := func() {
		pages = append(pages, strings.TrimSpace(b.String()))
		b.Reset()
	}

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				inBody = true
			case "p", "h":
				depth++
			case "s":
				b.WriteString(strings.Repeat(" ", spaceCount(t.Attr)))
			case "tab":
				b.WriteByte('\t')
			case "line-break":
				b.WriteByte('\n')
			case pageElem:
				b.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "body":
				inBody = false
			case "p", "h":
				depth--
				if depth == 0 {
					b.WriteString("\n\n")
				}
			case pageElem:
				flush()
			}
		case xml.CharData:
			if inBody && depth > 0 {
				b.Write(t)
			}
		}
	}
	if pageElem == "" {
		flush()
	}
	return pages, nil
}

// spaceCount 读取 text:s 的 text:c 属性，缺省为 1。
func spaceCount(attrs []xml.Attr) int {
	for _, a := range attrs {
		if a.Name.Local == "c" {
			if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}
