package observability

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened("user")
	m.ConnectionClosed("user")
	m.Event("chat:send", nil)
	m.CallTransition("started")
	m.FramesDropped(3)
	m.AuthFailed()
	m.Inconsistency("history")
}

func TestEventCounter(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Event("chat:send", nil)
	m.Event("chat:send", nil)
	m.Event("call:answer", errors.New("already answered"))

	expected := `
		# HELP coachline_events_total Total number of inbound protocol events by event and status
		# TYPE coachline_events_total counter
		coachline_events_total{event="call:answer",status="error"} 1
		coachline_events_total{event="chat:send",status="ok"} 2
	`
	if err := testutil.CollectAndCompare(m.EventCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestCallTransitionTracksActiveCalls(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CallTransition("started")
	m.CallTransition("started")
	m.CallTransition("answered")
	m.CallTransition("missed")

	if got := testutil.ToFloat64(m.ActiveCalls); got != 1 {
		t.Errorf("Expected 1 active call, got %v", got)
	}
	if got := testutil.ToFloat64(m.CallTransitions.WithLabelValues("started")); got != 2 {
		t.Errorf("Expected 2 started transitions, got %v", got)
	}
	if count := testutil.CollectAndCount(m.CallTransitions); count != 3 {
		t.Errorf("Expected 3 label combinations, got %d", count)
	}
}

func TestConnectionsAndDrops(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ConnectionOpened("staff")
	m.ConnectionOpened("staff")
	m.ConnectionClosed("staff")
	m.FramesDropped(0)
	m.FramesDropped(2)
	m.AuthFailed()

	if got := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("staff")); got != 1 {
		t.Errorf("Expected 1 staff connection, got %v", got)
	}
	if got := testutil.ToFloat64(m.DroppedFrames); got != 2 {
		t.Errorf("Expected 2 dropped frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures); got != 1 {
		t.Errorf("Expected 1 auth failure, got %v", got)
	}
}
