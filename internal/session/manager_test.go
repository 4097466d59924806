package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetReturnsSameSession(t *testing.T) {
	m := NewManager(nil, time.Hour)

	a := m.Get("a")
	assert.Same(t, a, m.Get("a"))
	assert.NotSame(t, a, m.Get("b"))
	assert.Equal(t, 2, m.Len())
}

func TestManager_NewID(t *testing.T) {
	m := NewManager(nil, 0)
	id := m.NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, m.NewID())
}

func TestManager_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(nil, 10*time.Minute)
	m.now = func() time.Time { return now }

	m.Get("old")
	now = now.Add(8 * time.Minute)
	m.Get("recent")
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	// "recent" survives and keeps its identity.
	recent := m.Get("recent")
	now = now.Add(9 * time.Minute)
	assert.Equal(t, 0, m.Sweep())
	assert.Same(t, recent, m.Get("recent"))
}

func TestManager_SweepCancelsInFlight(t *testing.T) {
	now := time.Now()
	calls := make(chan *call, 1)
	m := NewManager(blocking(calls), time.Minute)
	m.now = func() time.Time { return now }

	s := m.Get("x")
	require.NoError(t, s.Submit(context.Background(), pngSource()))
	c := <-calls

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	select {
	case <-c.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("swept session was not cancelled")
	}
	assert.Equal(t, View{}, s.View())
	c.release <- nil
}

func TestManager_ZeroTTLKeepsSessions(t *testing.T) {
	m := NewManager(nil, 0)
	m.Get("a")
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestManager_RunStopsWithContext(t *testing.T) {
	m := NewManager(nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
