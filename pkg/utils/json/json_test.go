package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type persistedChunk struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
}

func TestMarshalRoundTrip(t *testing.T) {
	in := persistedChunk{
		ID:        "abc#0",
		Content:   "第一句话。Second sentence.",
		Metadata:  map[string]string{"file_name": "a.txt", "category": "text"},
		Embedding: []float32{0.25, -0.5, 1},
	}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.True(t, Valid(data))

	var out persistedChunk
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalSortsMapKeys(t *testing.T) {
	data, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(data))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode([]string{"x", "y"}))

	var out []string
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, []string{"x", "y"}, out)
}

func TestValidRejectsGarbage(t *testing.T) {
	assert.False(t, Valid([]byte(`{"unterminated":`)))
}
