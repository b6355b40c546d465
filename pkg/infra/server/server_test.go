package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeServer) Stop(context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return f.stopErr
}

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager(&fakeServer{name: "a", events: &events})
	m.Add(&fakeServer{name: "b", events: &events})

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewManager(
		&fakeServer{name: "a", events: &events},
		&fakeServer{name: "b", events: &events, startErr: errors.New("port in use")},
		&fakeServer{name: "c", events: &events},
	)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"start:a", "stop:a"}, events)
}

func TestManagerStopAggregatesErrors(t *testing.T) {
	var events []string
	m := NewManager(
		&fakeServer{name: "a", events: &events, stopErr: errors.New("a failed")},
		&fakeServer{name: "b", events: &events, stopErr: errors.New("b failed")},
	)
	require.NoError(t, m.Start(context.Background()))

	err := m.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
	assert.NoError(t, m.Stop(context.Background()))
}
