package loader

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for n, body := range entries {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.md", "# Title\n\nSome text.")

	docs := Load(context.Background(), path)
	require.Len(t, docs, 1)
	assert.Equal(t, "# Title\n\nSome text.", docs[0].Text)
	assert.Equal(t, path, docs[0].Source())
	assert.Equal(t, "notes.md", docs[0].Metadata[KeyFileName])
	assert.Equal(t, "text", docs[0].Metadata["category"])
	assert.Len(t, docs[0].ID(), 16)
}

func TestLoadFailuresReturnEmpty(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{name: "不支持的扩展名", path: writeFile(t, dir, "image.png", "binary")},
		{name: "文件不存在", path: filepath.Join(dir, "missing.txt")},
		{name: "损坏的 PDF", path: writeFile(t, dir, "broken.pdf", "this is not a pdf")},
		{name: "损坏的 DOCX", path: writeFile(t, dir, "broken.docx", "not a zip")},
		{name: "缺少 content.xml 的 ODT", path: writeZip(t, dir, "empty.odt", map[string]string{"mimetype": "application/vnd.oasis.opendocument.text"})},
		{name: "损坏的 JSON", path: writeFile(t, dir, "broken.json", "{\"a\":")},
		{name: "空文本", path: writeFile(t, dir, "empty.txt", "   \n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Load(context.Background(), tt.path))
		})
	}
}

func TestLoadDOCX(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
</w:body></w:document>`
	path := writeZip(t, t.TempDir(), "report.docx", map[string]string{"word/document.xml": body})

	docs := Load(context.Background(), path)
	require.Len(t, docs, 1)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", docs[0].Text)
	assert.Equal(t, true, docs[0].Metadata["is_binary"])
}

func TestLoadPPTX(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
			text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	path := writeZip(t, t.TempDir(), "deck.pptx", map[string]string{
		"ppt/slides/slide10.xml": slide("Ten"),
		"ppt/slides/slide2.xml":  slide("Two"),
		"ppt/slides/slide1.xml":  slide("One"),
	})

	docs := Load(context.Background(), path)
	require.Len(t, docs, 3)
	assert.Equal(t, "One", docs[0].Text)
	assert.Equal(t, "Two", docs[1].Text)
	assert.Equal(t, "Ten", docs[2].Text)
	assert.Equal(t, "slide 10", docs[2].Section())
	assert.NotEqual(t, docs[0].ID(), docs[1].ID())
}

func TestLoadODT(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
 xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:automatic-styles><style:style xmlns:style="s">ignored</style:style></office:automatic-styles>
<office:body><office:text>
<text:h text:outline-level="1">Release notes</text:h>
<text:p>Ships <text:span>on</text:span><text:s text:c="2"/>Friday.</text:p>
</office:text></office:body></office:document-content>`
	path := writeZip(t, t.TempDir(), "notes.odt", map[string]string{"content.xml": content})

	docs := Load(context.Background(), path)
	require.Len(t, docs, 1)
	assert.Equal(t, "Release notes\n\nShips on  Friday.", docs[0].Text)
	assert.Equal(t, true, docs[0].Metadata["is_binary"])
}

func TestLoadODP(t *testing.T) {
	content := `<office:document-content xmlns:office="o" xmlns:draw="d" xmlns:text="t">
<office:body><office:presentation>
<draw:page draw:name="p1"><draw:frame><draw:text-box><text:p>Intro</text:p></draw:text-box></draw:frame></draw:page>
<draw:page draw:name="p2"><draw:frame><draw:text-box><text:p>Roadmap</text:p></draw:text-box></draw:frame></draw:page>
</office:presentation></office:body></office:document-content>`
	path := writeZip(t, t.TempDir(), "deck.odp", map[string]string{"content.xml": content})

	docs := Load(context.Background(), path)
	require.Len(t, docs, 2)
	assert.Equal(t, "Intro", docs[0].Text)
	assert.Equal(t, "Roadmap", docs[1].Text)
	assert.Equal(t, "slide 2", docs[1].Section())
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "people.csv", "name,age\nAlice,30\nBob,25\n")
	tsvPath := writeFile(t, dir, "people.tsv", "name\tage\nCarol\t41\n")

	docs := Load(context.Background(), csvPath)
	require.Len(t, docs, 1)
	assert.Equal(t, "name: Alice\nage: 30\n\n\nname: Bob\nage: 25", docs[0].Text)
	assert.Equal(t, 2, docs[0].Metadata["row_count"])

	docs = Load(context.Background(), tsvPath)
	require.Len(t, docs, 1)
	assert.Equal(t, "name: Carol\nage: 41", docs[0].Text)
}

func TestLoadEPUB(t *testing.T) {
	path := writeZip(t, t.TempDir(), "book.epub", map[string]string{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="OEBPS/content.opf"/></rootfiles></container>`,
		"OEBPS/content.opf": `<package><metadata><title>Go Book</title></metadata>
<manifest><item id="c1" href="ch1.xhtml"/><item id="c2" href="ch2.xhtml"/></manifest>
<spine><itemref idref="c2"/><itemref idref="c1"/></spine></package>`,
		"OEBPS/ch1.xhtml": `<html><head><style>p{}</style></head><body><p>Chapter one.</p></body></html>`,
		"OEBPS/ch2.xhtml": `<html><body><h1>Intro</h1><p>Chapter two.</p><script>x()</script></body></html>`,
	})

	docs := Load(context.Background(), path)
	require.Len(t, docs, 2)
	assert.Equal(t, "Intro\n\nChapter two.", docs[0].Text)
	assert.Equal(t, "Chapter one.", docs[1].Text)
	assert.Equal(t, "Go Book", docs[0].Metadata["title"])
}

func TestLoadNotebook(t *testing.T) {
	nb := `{"cells":[
{"cell_type":"markdown","source":["# Analysis\n","Intro text."]},
{"cell_type":"code","source":"print(1)"},
{"cell_type":"raw","source":"ignored"}]}`
	path := writeFile(t, t.TempDir(), "analysis.ipynb", nb)

	docs := Load(context.Background(), path)
	require.Len(t, docs, 1)
	assert.Equal(t, "# Analysis\nIntro text.\n\nprint(1)", docs[0].Text)
	assert.Equal(t, 3, docs[0].Metadata["cell_count"])
}

func TestLoadMbox(t *testing.T) {
	mbox := strings.Join([]string{
		"From alice@example.com Mon Jan  1 00:00:00 2024",
		"From: Alice <alice@example.com>",
		"To: bob@example.com",
		"Subject: Hello",
		"Date: Mon, 01 Jan 2024 00:00:00 +0000",
		"",
		"Plain body.",
		">From the archive.",
		"",
		"From bob@example.com Tue Jan  2 00:00:00 2024",
		"From: bob@example.com",
		"Subject: Multipart",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/html",
		"",
		"<p>html</p>",
		"--XYZ",
		"Content-Type: text/plain",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Caf=C3=A9 text.",
		"--XYZ--",
		"",
	}, "\n")
	path := writeFile(t, t.TempDir(), "inbox.mbox", mbox)

	docs := Load(context.Background(), path)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].Text, "Subject: Hello")
	assert.Contains(t, docs[0].Text, "From the archive.")
	assert.Equal(t, 0, docs[0].Metadata["mbox_index"])
	assert.Contains(t, docs[1].Text, "Café text.")
	assert.NotContains(t, docs[1].Text, "html")
	assert.Equal(t, 1, docs[1].Metadata["mbox_index"])
}

func TestJSONWalker(t *testing.T) {
	v := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
				"d": float64(3),
			},
		},
		"list": []any{"x", true},
	}

	t.Run("不折叠时输出叶子路径", func(t *testing.T) {
		lines := JSONWalker{LevelsBack: 2}.Lines(v)
		assert.Equal(t, []string{"b c deep", "b d 3", "list x", "list true"}, lines)
	})

	t.Run("小子树折叠为一行", func(t *testing.T) {
		lines := JSONWalker{LevelsBack: 2, CollapseLength: 20}.Lines(v)
		assert.Equal(t, []string{`a b {"c":"deep","d":3}`, `list ["x",true]`}, lines)
	})

	t.Run("整个对象足够小时只有一行", func(t *testing.T) {
		lines := JSONWalker{LevelsBack: 2, CollapseLength: 500}.Lines(v)
		require.Len(t, lines, 1)
		assert.True(t, strings.HasPrefix(lines[0], `{"a":`))
	})
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	arrPath := writeFile(t, dir, "items.json", `[{"name":"one"},{"name":"two"}]`)
	linesPath := writeFile(t, dir, "events.jsonl", "{\"e\":1}\n\n{\"e\":2}\n")

	docs := Load(context.Background(), arrPath)
	require.Len(t, docs, 2)
	assert.Equal(t, `{"name":"one"}`, docs[0].Text)
	assert.Equal(t, arrPath, docs[1].Metadata[KeySourceFile])

	docs = Load(context.Background(), linesPath)
	require.Len(t, docs, 2)
	assert.Equal(t, `{"e":2}`, docs[1].Text)
	assert.Equal(t, "line 3", docs[1].Section())
}

func TestLoadAllKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "bad.pdf", "b.txt", "c.txt"} {
		content := "content of " + name
		paths = append(paths, writeFile(t, dir, name, content))
	}

	docs := LoadAll(context.Background(), paths, 2)
	require.Len(t, docs, 3)
	assert.Equal(t, "content of a.txt", docs[0].Text)
	assert.Equal(t, "content of b.txt", docs[1].Text)
	assert.Equal(t, "content of c.txt", docs[2].Text)

	_, stats := LoadAllWithPool(context.Background(), nil, paths)
	assert.Equal(t, Stats{Files: 4, Loaded: 3, Failed: 1, Documents: 3}, stats)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(".PDF"))
	assert.True(t, Supported(".jsonl"))
	assert.True(t, Supported(".odt"))
	assert.False(t, Supported(".exe"))
	assert.Contains(t, Extensions(), ".epub")
}
