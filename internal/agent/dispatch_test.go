package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"regenie/internal/channel"
	"regenie/internal/store"
)

type memoryLedger struct {
	mu       sync.Mutex
	seen     map[string]bool
	finished map[string]error
	claimErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{seen: map[string]bool{}, finished: map[string]error{}}
}

func (l *memoryLedger) Claim(_ context.Context, rec store.EventRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claimErr != nil {
		return false, l.claimErr
	}
	if l.seen[rec.EventID] {
		return false, nil
	}
	l.seen[rec.EventID] = true
	return true, nil
}

func (l *memoryLedger) Finish(_ context.Context, eventID string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished[eventID] = cause
	return nil
}

type countingProcessor struct {
	mu     sync.Mutex
	events []channel.Event
	err    error
}

func (p *countingProcessor) Handle(_ context.Context, ev channel.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var testMention = channel.AppMention{Channel: "C1", Text: "<@UBOT> hi", TS: "1.0"}

func TestDispatcher_SkipsDuplicates(t *testing.T) {
	proc := &countingProcessor{}
	ledger := newMemoryLedger()
	d := NewDispatcher(DispatcherConfig{Handler: proc, Ledger: ledger, Logger: testLogger()})

	for range 3 {
		if err := d.HandleEvent(context.Background(), "Ev1", testMention); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if proc.count() != 1 {
		t.Errorf("processed %d times, want 1", proc.count())
	}
	if cause, ok := ledger.finished["Ev1"]; !ok || cause != nil {
		t.Errorf("finish = %v, %v", cause, ok)
	}
}

func TestDispatcher_SyncReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	proc := &countingProcessor{err: boom}
	ledger := newMemoryLedger()
	d := NewDispatcher(DispatcherConfig{Handler: proc, Ledger: ledger, Logger: testLogger()})

	err := d.HandleEvent(context.Background(), "Ev1", testMention)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !errors.Is(ledger.finished["Ev1"], boom) {
		t.Errorf("ledger cause = %v", ledger.finished["Ev1"])
	}
}

func TestDispatcher_LedgerOutageStillProcesses(t *testing.T) {
	proc := &countingProcessor{}
	ledger := newMemoryLedger()
	ledger.claimErr = errors.New("database is locked")
	d := NewDispatcher(DispatcherConfig{Handler: proc, Ledger: ledger, Logger: testLogger()})

	if err := d.HandleEvent(context.Background(), "Ev1", testMention); err != nil {
		t.Fatal(err)
	}
	if proc.count() != 1 {
		t.Errorf("processed %d times, want 1", proc.count())
	}
}

func TestDispatcher_Async(t *testing.T) {
	proc := &countingProcessor{err: errors.New("slow failure")}
	d := NewDispatcher(DispatcherConfig{Handler: proc, Async: true, Logger: testLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.HandleEvent(ctx, "Ev1", testMention); err != nil {
		t.Fatalf("async dispatch must not surface handler errors: %v", err)
	}
	// The request context ending must not cancel queued work.
	cancel()

	if err := d.Background().Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if proc.count() != 1 {
		t.Errorf("processed %d times, want 1", proc.count())
	}
	tasks := d.Background().List()
	if len(tasks) != 1 || tasks[0].Status != TaskFailed || tasks[0].Name != "app_mention" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestDispatcher_IgnoredBypassesLedger(t *testing.T) {
	proc := &countingProcessor{}
	ledger := newMemoryLedger()
	d := NewDispatcher(DispatcherConfig{Handler: proc, Ledger: ledger, Async: true, Logger: testLogger()})

	if err := d.HandleEvent(context.Background(), "Ev1", channel.Ignored{Type: "reaction_added"}); err != nil {
		t.Fatal(err)
	}
	if proc.count() != 1 {
		t.Errorf("ignored events are still handed to the handler inline")
	}
	if len(ledger.seen) != 0 {
		t.Errorf("ignored event was claimed")
	}
}
