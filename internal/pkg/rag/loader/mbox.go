package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
)

// readMbox 把 mbox 中的每封邮件解析为一个文档；无法解析的邮件被跳过。
func readMbox(ctx context.Context, path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := splitMbox(f)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(raw))
	for i, msg := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := renderMessage(bytes.NewReader(msg))
		if err != nil {
			continue
		}
		meta := section("message", i+1)
		meta["mbox_index"] = i
		docs = append(docs, Document{Text: text, Metadata: meta})
	}
	if len(raw) > 0 && len(docs) == 0 {
		return nil, fmt.Errorf("mbox: none of %d messages could be parsed", len(raw))
	}
	return docs, nil
}

func readEML(_ context.Context, path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, err := renderMessage(f)
	if err != nil {
		return nil, err
	}
	return []Document{{Text: text}}, nil
}

// splitMbox 以行首的 "From " 分隔邮件，并还原 ">From " 转义。
func splitMbox(r io.Reader) ([][]byte, error) {
	var (
		msgs [][]byte
		cur  *bytes.Buffer
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "From ") {
			if cur != nil {
				msgs = append(msgs, cur.Bytes())
			}
			cur = &bytes.Buffer{}
			continue
		}
		if cur == nil {
			continue
		}
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		cur.WriteString(line)
		cur.WriteString("\r\n")
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		msgs = append(msgs, cur.Bytes())
	}
	return msgs, nil
}

// renderMessage 输出 From/To/Subject/Date 头和纯文本正文。
func renderMessage(r io.Reader) (string, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return "", err
	}

	dec := new(mime.WordDecoder)
	var b strings.Builder
	for _, h := range []string{"From", "To", "Subject", "Date"} {
		v := msg.Header.Get(h)
		if v == "" {
			continue
		}
		if decoded, err := dec.DecodeHeader(v); err == nil {
			v = decoded
		}
		fmt.Fprintf(&b, "%s: %s\n", h, v)
	}

	body, err := plainBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", err
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(body))
	return strings.TrimSpace(b.String()), nil
}

// plainBody 返回第一个 text/plain 部分；非 multipart 邮件直接解码正文。
func plainBody(contentType, encoding string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", nil
			}
			if err != nil {
				return "", err
			}
			text, err := plainBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			if text != "" {
				return text, nil
			}
		}
	}

	if mediaType != "text/plain" {
		return "", nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
