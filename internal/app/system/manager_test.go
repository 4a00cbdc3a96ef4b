package system

import (
	"context"
	"fmt"
	"testing"
)

type fakeService struct {
	name      string
	startErr  error
	stopErr   error
	started   *[]string
	stopped   *[]string
}

func (f fakeService) Name() string { return f.name }

func (f fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.started = append(*f.started, f.name)
	return nil
}

func (f fakeService) Stop(ctx context.Context) error {
	*f.stopped = append(*f.stopped, f.name)
	return f.stopErr
}

func TestManagerStartStopOrder(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(fakeService{name: name, started: &started, stopped: &stopped}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if fmt.Sprint(started) != fmt.Sprint([]string{"a", "b", "c"}) {
		t.Fatalf("unexpected start order: %v", started)
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if fmt.Sprint(stopped) != fmt.Sprint([]string{"c", "b", "a"}) {
		t.Fatalf("unexpected stop order: %v", stopped)
	}
}

func TestManagerStartFailureStopsStarted(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	_ = m.Register(fakeService{name: "a", started: &started, stopped: &stopped})
	_ = m.Register(fakeService{name: "b", startErr: fmt.Errorf("boom"), started: &started, stopped: &stopped})
	_ = m.Register(fakeService{name: "c", started: &started, stopped: &stopped})

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if fmt.Sprint(started) != fmt.Sprint([]string{"a"}) {
		t.Fatalf("expected only a to start, got %v", started)
	}
	if fmt.Sprint(stopped) != fmt.Sprint([]string{"a"}) {
		t.Fatalf("expected rollback stop of a, got %v", stopped)
	}
}

func TestManagerRegisterAfterStartRejected(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(fakeService{name: "late", started: &started, stopped: &stopped}); err == nil {
		t.Fatal("expected registration after start to fail")
	}
}
