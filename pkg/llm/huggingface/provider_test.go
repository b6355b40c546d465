package huggingface

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/pkg/llm"
)

func TestNewProviderRequiresToken(t *testing.T) {
	t.Setenv(TokenEnv, "")
	_, err := NewProvider(nil)
	assert.Error(t, err)

	t.Setenv(TokenEnv, "hf-token")
	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", p.(*Provider).config.EmbedModel)
}

func TestEmbedSentenceVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/feature-extraction/BAAI/bge-small-en-v1.5", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[[1,2],[3,4]]`))
	}))
	defer srv.Close()

	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"base_url": srv.URL, "api_key": "k"})
	require.NoError(t, err)

	out, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, out)
}

func TestDecodeEmbeddingsMeanPoolsTokens(t *testing.T) {
	out, err := decodeEmbeddings([]byte(`[[[1,2],[3,4]]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 3}}, out)

	_, err = decodeEmbeddings([]byte(`{"error":"loading"}`))
	assert.Error(t, err)
}

func TestFormatMessages(t *testing.T) {
	got := formatMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, Content: "a"},
	})
	assert.Equal(t, "[INST] sys [/INST]\n[INST] q [/INST]\na\n", got)
}
