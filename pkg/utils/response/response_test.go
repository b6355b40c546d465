package response

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/pkg/errors"
	"github.com/kart-io/docuverse/pkg/utils/json"
)

func TestSuccess(t *testing.T) {
	r := Success(map[string]int{"n": 1})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())
}

func TestErr(t *testing.T) {
	r := Err(errors.ErrNotFound, "en")
	assert.False(t, r.IsSuccess())
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())
	assert.Equal(t, errors.ErrNotFound.Code, r.Code)

	assert.True(t, Err(nil, "en").IsSuccess())
	assert.Equal(t, "资源冲突", Err(errors.ErrConflict, "zh").Message)
}

func TestHTTPStatusFallsBackToCategory(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"未注册的限流码", errors.MakeCode(77, errors.CategoryRateLimit, 1), http.StatusTooManyRequests},
		{"未注册的资源码", errors.MakeCode(77, errors.CategoryResource, 1), http.StatusNotFound},
		{"已注册的超时码", errors.ErrTimeout.Code, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Code: tt.code}
			assert.Equal(t, tt.want, r.HTTPStatus())
		})
	}
}

func TestWriteResponseLanguage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	WriteResponse(c, errors.ErrConflict, nil)

	var got Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "资源冲突", got.Message)
	assert.NotZero(t, got.Timestamp)
}

func TestWriteResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		data     interface{}
		wantHTTP int
		wantCode int
	}{
		{name: "data", data: gin.H{"ok": true}, wantHTTP: http.StatusOK, wantCode: 0},
		{name: "errno", err: fmt.Errorf("lookup: %w", errors.ErrNotFound), wantHTTP: http.StatusNotFound, wantCode: errors.ErrNotFound.Code},
		{name: "plain error", err: stderrors.New("db exploded"), wantHTTP: http.StatusInternalServerError, wantCode: errors.ErrInternal.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(RequestIDKey, "req-1")

			WriteResponse(c, tt.err, tt.data)

			assert.Equal(t, tt.wantHTTP, w.Code)
			var got Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, "req-1", got.RequestID)
			assert.NotContains(t, got.Message, "exploded")
		})
	}
}
