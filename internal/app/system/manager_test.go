package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	NoopService
	started   *[]string
	stopped   *[]string
	failStart bool
}

func (s recordingService) Start(context.Context) error {
	if s.failStart {
		return errors.New("boom")
	}
	*s.started = append(*s.started, s.ServiceName)
	return nil
}

func (s recordingService) Stop(context.Context) error {
	*s.stopped = append(*s.stopped, s.ServiceName)
	return nil
}

func TestManager_Ordering(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{NoopService: NoopService{ServiceName: name}, started: &started, stopped: &stopped}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recordingService{NoopService: NoopService{ServiceName: "a"}, started: &started, stopped: &stopped}); err == nil {
		t.Fatal("duplicate name should be rejected")
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(started) != 3 || started[0] != "a" || started[2] != "c" {
		t.Fatalf("unexpected start order: %v", started)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(stopped) != 3 || stopped[0] != "c" || stopped[2] != "a" {
		t.Fatalf("stop should run in reverse order: %v", stopped)
	}
}

func TestManager_StartFailureUnwinds(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	_ = m.Register(recordingService{NoopService: NoopService{ServiceName: "ok"}, started: &started, stopped: &stopped})
	_ = m.Register(recordingService{NoopService: NoopService{ServiceName: "bad"}, started: &started, stopped: &stopped, failStart: true})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	if len(stopped) != 1 || stopped[0] != "ok" {
		t.Fatalf("started services should be unwound: %v", stopped)
	}
}
