package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// readDOCX 提取 word/document.xml 中的段落文本。
func readDOCX(_ context.Context, path string) ([]Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	f := findZipFile(&zr.Reader, "word/document.xml")
	if f == nil {
		return nil, errors.New("docx: word/document.xml not found")
	}
	text, err := extractOOXMLText(f)
	if err != nil {
		return nil, fmt.Errorf("docx: %w", err)
	}
	return []Document{{Text: text}}, nil
}

// readPPTX 按幻灯片编号顺序提取文本，每张幻灯片一个文档。
func readPPTX(ctx context.Context, path string) ([]Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, f: f})
	}
	if len(slides) == 0 {
		return nil, errors.New("pptx: no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	docs := make([]Document, 0, len(slides))
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := extractOOXMLText(s.f)
		if err != nil {
			return nil, fmt.Errorf("pptx slide %d: %w", s.n, err)
		}
		meta := section("slide", s.n)
		meta["slide_number"] = s.n
		docs = append(docs, Document{Text: text, Metadata: meta})
	}
	return docs, nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// extractOOXMLText 收集 <w:t>/<a:t> 文本，段落结束处换行。
func extractOOXMLText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
