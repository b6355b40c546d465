package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "mock response", nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "mock generated text", nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		return &mockProvider{name: String(config, "name", "test-provider")}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())

	_, err = NewProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestEmbeddingAndChatFallBackToFullProvider(t *testing.T) {
	RegisterProvider("full", func(map[string]any) (Provider, error) {
		return &mockProvider{name: "full"}, nil
	})
	RegisterEmbeddingProvider("embed-only", func(map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "embed-only"}, nil
	})

	ep, err := NewEmbeddingProvider("embed-only", nil)
	require.NoError(t, err)
	assert.Equal(t, "embed-only", ep.Name())

	ep, err = NewEmbeddingProvider("full", nil)
	require.NoError(t, err)
	assert.Equal(t, "full", ep.Name())

	cp, err := NewChatProvider("full", nil)
	require.NoError(t, err)
	assert.Equal(t, "full", cp.Name())

	_, err = NewChatProvider("embed-only", nil)
	assert.Error(t, err)

	names := ListProviders()
	assert.Contains(t, names, "full")
	assert.Contains(t, names, "embed-only")
	assert.IsIncreasing(t, names)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("question", "")
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)

	msgs = BuildMessages("question", "be brief")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "question", msgs[1].Content)
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{
		"s":     "value",
		"empty": "",
		"f":     0.3,
		"fi":    1,
		"i":     2000,
		"fl":    float64(32),
		"neg":   -1,
		"d":     5 * time.Second,
	}

	assert.Equal(t, "value", String(cfg, "s", "x"))
	assert.Equal(t, "x", String(cfg, "empty", "x"))
	assert.Equal(t, 0.3, Float(cfg, "f", 0))
	assert.Equal(t, 1.0, Float(cfg, "fi", 0))
	assert.Equal(t, 2000, Int(cfg, "i", 0))
	assert.Equal(t, 32, Int(cfg, "fl", 0))
	assert.Equal(t, 7, Int(cfg, "neg", 7))
	assert.Equal(t, 5*time.Second, Duration(cfg, "d", time.Second))
	assert.Equal(t, time.Second, Duration(cfg, "missing", time.Second))
}
