package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_DeliversEventsInOrder(t *testing.T) {
	b := NewBus(4)
	b.Status("Acme Co", StatusRunning)
	b.Log("Acme Co", LevelInfo, "starting")
	b.Done("Acme Co", true)

	require.Equal(t, EventStatus, (<-b.Events()).Kind)
	require.Equal(t, EventLog, (<-b.Events()).Kind)
	require.Equal(t, EventDone, (<-b.Events()).Kind)
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := NewBus(1)
	b.Log("Acme Co", LevelInfo, "first")
	b.Log("Acme Co", LevelInfo, "second") // queue full, dropped, must not block

	evt := <-b.Events()
	require.Equal(t, "first", evt.Text)
}

func TestBus_DropsAfterShutdown(t *testing.T) {
	b := NewBus(4)
	b.Shutdown()
	b.Log("Acme Co", LevelInfo, "after shutdown")

	select {
	case <-b.Events():
		t.Fatal("expected no event to be delivered after shutdown")
	default:
	}
}
