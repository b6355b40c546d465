package errno

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/internal/pkg/rag/docutil"
	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect *pkgerrors.Errno
		status int
	}{
		{name: "会话不存在", err: fmt.Errorf("get: %w", store.ErrSessionNotFound), expect: ErrSessionNotFound, status: http.StatusNotFound},
		{name: "文件重复", err: store.ErrFileExists, expect: ErrFileExists, status: http.StatusConflict},
		{name: "磁盘文件已存在", err: docutil.ErrExists, expect: ErrFileExists, status: http.StatusConflict},
		{name: "非法文件名", err: docutil.ErrInvalidName, expect: ErrInvalidUpload, status: http.StatusBadRequest},
		{name: "已是 Errno", err: ErrIndexBusy, expect: ErrIndexBusy, status: http.StatusConflict},
		{name: "未知错误", err: errors.New("boom"), expect: pkgerrors.ErrInternal, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := From(tt.err)
			assert.Equal(t, tt.expect.Code, e.Code)
			assert.Equal(t, tt.status, e.HTTPStatus())
		})
	}

	assert.Nil(t, From(nil))
}

func TestCodesAreInDocuVerseService(t *testing.T) {
	for _, e := range []*pkgerrors.Errno{ErrSessionNotFound, ErrFileExists, ErrInvalidUpload, ErrLLMUnavailable} {
		service, _, _ := pkgerrors.ParseCode(e.Code)
		assert.Equal(t, pkgerrors.ServiceDocuVerse, service)
	}
	assert.Equal(t, http.StatusServiceUnavailable, ErrLLMUnavailable.HTTPStatus())
}
