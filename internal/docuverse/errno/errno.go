// Package errno 注册 docuverse 的业务错误码，并把服务层错误映射为 Errno。
package errno

import (
	"context"
	"errors"
	"net/http"

	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/internal/pkg/rag/docutil"
	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
)

var (
	ErrSessionNotFound = pkgerrors.NewNotFoundErr(pkgerrors.ServiceDocuVerse, 1,
		"Conversation not found", "会话不存在")
	ErrFileNotFound = pkgerrors.NewNotFoundErr(pkgerrors.ServiceDocuVerse, 2,
		"File not found", "文件不存在")
	ErrNoteNotFound = pkgerrors.NewNotFoundErr(pkgerrors.ServiceDocuVerse, 3,
		"Note not found", "笔记不存在")
	ErrMessageNotFound = pkgerrors.NewNotFoundErr(pkgerrors.ServiceDocuVerse, 4,
		"Message not found", "消息不存在")

	ErrFileExists = pkgerrors.NewConflictErr(pkgerrors.ServiceDocuVerse, 1,
		"A file with this name already exists in the conversation", "会话中已存在同名文件")
	ErrIndexBusy = pkgerrors.NewConflictErr(pkgerrors.ServiceDocuVerse, 2,
		"The document index is being rebuilt", "文档索引正在重建")

	ErrInvalidUpload = pkgerrors.NewRequestErr(pkgerrors.ServiceDocuVerse, 1,
		"Invalid upload", "上传文件无效")
	ErrUnsupportedFileType = pkgerrors.NewRequestErr(pkgerrors.ServiceDocuVerse, 2,
		"Unsupported file type", "不支持的文件类型")
	ErrEmptyQuestion = pkgerrors.NewRequestErr(pkgerrors.ServiceDocuVerse, 3,
		"Question must not be empty", "问题不能为空")
	ErrInvalidArgument = pkgerrors.NewRequestErr(pkgerrors.ServiceDocuVerse, 4,
		"Invalid argument", "参数无效")

	ErrLLMUnavailable = pkgerrors.NewBuilder(pkgerrors.ServiceDocuVerse, pkgerrors.CategoryNetwork, 1).
		HTTP(http.StatusServiceUnavailable).
		Message("Language model is unavailable", "语言模型不可用").
		MustBuild()
)

type mapping struct {
	err   error
	errno *pkgerrors.Errno
}

var mappings = []mapping{
	{store.ErrSessionNotFound, ErrSessionNotFound},
	{store.ErrFileNotFound, ErrFileNotFound},
	{store.ErrNoteNotFound, ErrNoteNotFound},
	{store.ErrMessageNotFound, ErrMessageNotFound},
	{store.ErrFileExists, ErrFileExists},
	{docutil.ErrExists, ErrFileExists},
	{docutil.ErrInvalidName, ErrInvalidUpload},
	{context.DeadlineExceeded, pkgerrors.ErrTimeout},
}

// From 把任意错误转换为 Errno；已是 Errno 的原样返回，未知错误归为内部错误。
func From(err error) *pkgerrors.Errno {
	if err == nil {
		return nil
	}
	var e *pkgerrors.Errno
	if errors.As(err, &e) {
		return e
	}
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.errno.WithCause(err)
		}
	}
	return pkgerrors.ErrInternal.WithCause(err)
}
