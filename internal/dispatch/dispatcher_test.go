package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/nft-market/internal/model"
)

type recordingSink struct {
	name string
	fail bool
	gate chan struct{}

	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, e model.Event) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type lifecycleSink struct {
	recordingSink
	startErr error
	started  bool
	stopped  bool
}

func (s *lifecycleSink) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *lifecycleSink) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func testEvent(id string) model.Event {
	return model.NewEvent(model.EventListingCreated, model.Listing{
		AssetContract: model.MustParseAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"),
		AssetID:       id,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	source := make(chan model.Event, 10)
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}

	d := New(DefaultConfig(), source, []Sink{a, b}, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, id := range []string{"1", "2", "3"} {
		source <- testEvent(id)
	}

	waitFor(t, func() bool { return a.count() == 3 && b.count() == 3 })

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	for i, want := range []string{"1", "2", "3"} {
		if got := a.events[i].Key.TokenID; got != want {
			t.Errorf("a.events[%d] = %s, want %s", i, got, want)
		}
	}

	stats := d.Stats()
	if len(stats) != 2 || stats[0].Name != "a" || stats[0].Delivered != 3 {
		t.Errorf("Stats() = %+v, want a delivered 3", stats)
	}
}

func TestDispatcher_SlowSinkDoesNotBlockOthers(t *testing.T) {
	source := make(chan model.Event, 10)
	slow := &recordingSink{name: "slow", gate: make(chan struct{})}
	fast := &recordingSink{name: "fast"}

	d := New(DefaultConfig(), source, []Sink{slow, fast}, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, id := range []string{"1", "2", "3", "4"} {
		source <- testEvent(id)
	}

	waitFor(t, func() bool { return fast.count() == 4 })
	if slow.count() != 0 {
		t.Errorf("slow.count() = %d, want 0 while gated", slow.count())
	}

	close(slow.gate)
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if slow.count() != 4 {
		t.Errorf("slow.count() after Stop = %d, want 4", slow.count())
	}
}

func TestDispatcher_CountsFailures(t *testing.T) {
	source := make(chan model.Event, 10)
	bad := &recordingSink{name: "bad", fail: true}

	d := New(DefaultConfig(), source, []Sink{bad}, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	source <- testEvent("1")
	source <- testEvent("2")

	waitFor(t, func() bool { return d.Stats()[0].Failed == 2 })
	_ = d.Stop(context.Background())

	if got := d.Stats()[0].Delivered; got != 0 {
		t.Errorf("Delivered = %d, want 0", got)
	}
}

func TestDispatcher_StopDrainsBufferedSource(t *testing.T) {
	source := make(chan model.Event, 10)
	sink := &recordingSink{name: "s", gate: make(chan struct{})}

	d := New(DefaultConfig(), source, []Sink{sink}, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	source <- testEvent("1")
	source <- testEvent("2")
	close(sink.gate)

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if sink.count() != 2 {
		t.Errorf("count() = %d, want 2", sink.count())
	}
}

func TestDispatcher_Lifecycle(t *testing.T) {
	source := make(chan model.Event)
	lc := &lifecycleSink{recordingSink: recordingSink{name: "lc"}}

	d := New(DefaultConfig(), source, []Sink{lc}, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !lc.started {
		t.Error("lifecycle sink not started")
	}

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !lc.stopped {
		t.Error("lifecycle sink not stopped")
	}
}

func TestDispatcher_StartFailureStopsStartedSinks(t *testing.T) {
	source := make(chan model.Event)
	ok := &lifecycleSink{recordingSink: recordingSink{name: "ok"}}
	broken := &lifecycleSink{
		recordingSink: recordingSink{name: "broken"},
		startErr:      errors.New("dial tcp: connection refused"),
	}

	d := New(DefaultConfig(), source, []Sink{ok, broken}, nil)
	err := d.Start(context.Background())
	if err == nil {
		t.Fatal("Start() error = nil, want error")
	}
	if !errors.Is(err, broken.startErr) {
		t.Errorf("Start() error = %v, want wrapped start error", err)
	}
	if ok.started && !ok.stopped {
		t.Error("started sink was not stopped after failed Start")
	}
}
