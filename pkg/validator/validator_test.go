package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type askRequest struct {
	Question string `json:"question" binding:"required,notblank"`
	Title    string `json:"title" binding:"max=5"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     any
		wantErr bool
	}{
		{"合法请求", &askRequest{Question: "why?"}, false},
		{"缺少问题", &askRequest{}, true},
		{"空白问题", &askRequest{Question: "  \t"}, true},
		{"标题过长", &askRequest{Question: "q", Title: "toolong"}, true},
		{"非结构体跳过", []int{1}, false},
		{"空指针跳过", (*askRequest)(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	v := New()
	err := v.ValidateStruct(&askRequest{Question: " "})
	require.Error(t, err)

	en := v.Translate(err, "en-US,en;q=0.8")
	require.NotNil(t, en)
	require.Len(t, en.Errors, 1)
	assert.Equal(t, "question", en.Errors[0].Field)
	assert.Equal(t, "notblank", en.Errors[0].Tag)
	assert.Equal(t, "question must not be blank", en.First())

	zh := v.Translate(err, "zh-CN,zh;q=0.9")
	require.NotNil(t, zh)
	assert.Equal(t, "question不能为空白", zh.First())

	assert.Nil(t, v.Translate(assert.AnError, LangEN))
}

func TestNormalizeLang(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", LangEN},
		{"zh", LangZH},
		{"zh-CN,zh;q=0.9,en;q=0.8", LangZH},
		{"en-GB;q=0.9", LangEN},
		{"fr", LangEN},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLang(tt.header))
		})
	}
}
