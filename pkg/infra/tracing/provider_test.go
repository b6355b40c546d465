package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	tracingopts "github.com/kart-io/docuverse/pkg/options/tracing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*tracingopts.Options)
		wantErr int
	}{
		{name: "disabled is always valid", modify: func(o *tracingopts.Options) { o.ExporterType = "bogus" }},
		{name: "enabled stdout", modify: func(o *tracingopts.Options) { o.Enabled = true }},
		{name: "otlp needs endpoint", modify: func(o *tracingopts.Options) {
			o.Enabled = true
			o.ExporterType = tracingopts.ExporterOTLPGRPC
			o.Endpoint = ""
		}, wantErr: 1},
		{name: "bad sampler and ratio", modify: func(o *tracingopts.Options) {
			o.Enabled = true
			o.SamplerType = "sometimes"
			o.SamplerRatio = 2
		}, wantErr: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tracingopts.NewOptions()
			tt.modify(o)
			assert.Len(t, o.Validate(), tt.wantErr)
		})
	}
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.NotNil(t, p.Tracer("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNoop(t *testing.T) {
	opts := tracingopts.NewOptions()
	opts.Enabled = true
	opts.ExporterType = tracingopts.ExporterNoop

	p, err := NewProvider(opts)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	ctx, span := p.Tracer("test").Start(context.Background(), "op")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	span.End()
	assert.NoError(t, p.ForceFlush(context.Background()))
}

func TestNewProviderInvalid(t *testing.T) {
	opts := tracingopts.NewOptions()
	opts.Enabled = true
	opts.ExporterType = "carrier-pigeon"
	_, err := NewProvider(opts)
	assert.Error(t, err)
}

func TestSpanHelpers(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "index.build", String(SessionID, "session_x"))
	AddSpanAttributes(ctx, Int(ChunkCount, 3), Bool(Cached, false))
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "index.build", ended[0].Name())
	assert.Len(t, ended[0].Attributes(), 3)
	assert.Len(t, ended[0].Events(), 1)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
