package connectivity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	fail atomic.Bool
}

func (f *fakeProber) Ping(ctx context.Context) error {
	if f.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMonitor_DefaultsOffline(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Minute, discardLogger())
	assert.Equal(t, StatusOffline, m.Now())
}

func TestMonitor_SetNotifiesWatchersOnChange(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Minute, discardLogger())
	ch := m.Watch()

	m.Set(StatusOnline)
	select {
	case s := <-ch:
		assert.Equal(t, StatusOnline, s)
	case <-time.After(time.Second):
		t.Fatal("expected a transition notification")
	}

	// same status again: no notification
	m.Set(StatusOnline)
	select {
	case s := <-ch:
		t.Fatalf("unexpected notification %v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_WatchCoalesces(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Minute, discardLogger())
	ch := m.Watch()

	// nobody reading: flapping must keep only the latest transition
	m.Set(StatusOnline)
	m.Set(StatusOffline)
	m.Set(StatusOnline)

	select {
	case s := <-ch:
		assert.Equal(t, StatusOnline, s)
	case <-time.After(time.Second):
		t.Fatal("expected the latest transition")
	}
}

func TestMonitor_RunProbes(t *testing.T) {
	probe := &fakeProber{}
	m := NewMonitor(probe, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool { return m.Now() == StatusOnline },
		time.Second, 5*time.Millisecond)

	probe.fail.Store(true)
	require.Eventually(t, func() bool { return m.Now() == StatusOffline },
		time.Second, 5*time.Millisecond)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "online", StatusOnline.String())
	assert.Equal(t, "offline", StatusOffline.String())
}
