package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/codewithayuu/kira-chan-sub000/internal/events"
)

// fakeClient is a scriptable backend for gateway tests.
type fakeClient struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Chat(ctx context.Context, model string, messages []Message, opts Options) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text, Model: model}, nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.err }

func allClasses(model string) map[ModelClass]string {
	return map[ModelClass]string{
		ClassFast:     model + "-fast",
		ClassBalanced: model,
		ClassQuality:  model + "-q",
	}
}

func TestChatUsesHighestPriorityFirst(t *testing.T) {
	primary := &fakeClient{name: "primary", text: "from primary"}
	backup := &fakeClient{name: "backup", text: "from backup"}

	g := NewGateway(nil)
	g.Register(backup, 1, allClasses("b"))
	g.Register(primary, 10, allClasses("a"))

	resp, err := g.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{Class: ClassQuality})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Text != "from primary" {
		t.Errorf("Text = %q, want primary's response", resp.Text)
	}
	if resp.Provider != "primary" {
		t.Errorf("Provider = %q, want primary", resp.Provider)
	}
	if resp.Model != "a-q" {
		t.Errorf("Model = %q, want quality-class model a-q", resp.Model)
	}
	if backup.calls != 0 {
		t.Errorf("backup was called %d times, want 0", backup.calls)
	}
}

func TestChatFailsOverOnError(t *testing.T) {
	primary := &fakeClient{name: "primary", err: fmt.Errorf("timeout")}
	backup := &fakeClient{name: "backup", text: "rescued"}

	g := NewGateway(nil)
	g.Register(primary, 10, allClasses("a"))
	g.Register(backup, 1, allClasses("b"))

	resp, err := g.Chat(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Text != "rescued" || resp.Provider != "backup" {
		t.Errorf("got %q from %q, want backup response", resp.Text, resp.Provider)
	}

	stats := g.Stats()
	if stats[0].Name != "primary" || stats[0].Errors != 1 {
		t.Errorf("primary stats = %+v, want 1 error recorded", stats[0])
	}
	if stats[1].Requests != 1 || stats[1].Errors != 0 {
		t.Errorf("backup stats = %+v, want 1 clean request", stats[1])
	}
}

func TestChatPublishesFailoverEvent(t *testing.T) {
	g := NewGateway(nil)
	g.Register(&fakeClient{name: "primary", err: fmt.Errorf("timeout")}, 10, allClasses("a"))
	g.Register(&fakeClient{name: "backup", text: "rescued"}, 1, allClasses("b"))

	bus := events.New()
	ch := bus.Subscribe(8)
	defer bus.Unsubscribe(ch)
	g.SetEventBus(bus)

	if _, err := g.Chat(context.Background(), nil, Options{}); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	select {
	case e := <-ch:
		if e.Kind != events.KindProviderFailover || e.Source != events.SourceGateway {
			t.Errorf("event = %+v, want provider_failover from gateway", e)
		}
		if e.Data["provider"] != "primary" {
			t.Errorf("provider = %v, want primary", e.Data["provider"])
		}
	default:
		t.Fatal("no failover event published")
	}
}

func TestChatEmptyResponseTreatedAsFailure(t *testing.T) {
	primary := &fakeClient{name: "primary", text: "   "}
	backup := &fakeClient{name: "backup", text: "real text"}

	g := NewGateway(nil)
	g.Register(primary, 10, allClasses("a"))
	g.Register(backup, 1, allClasses("b"))

	resp, err := g.Chat(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Provider != "backup" {
		t.Errorf("Provider = %q, want backup after empty-payload failover", resp.Provider)
	}
}

func TestChatAllProvidersFailed(t *testing.T) {
	last := fmt.Errorf("boom")
	g := NewGateway(nil)
	g.Register(&fakeClient{name: "a", err: fmt.Errorf("first")}, 10, allClasses("a"))
	g.Register(&fakeClient{name: "b", err: last}, 1, allClasses("b"))

	_, err := g.Chat(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}

	var apf *AllProvidersFailedError
	if !errors.As(err, &apf) {
		t.Fatalf("error type = %T, want *AllProvidersFailedError", err)
	}
	if apf.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", apf.Attempts)
	}
	if !errors.Is(err, last) {
		t.Error("expected wrapped last underlying error")
	}
}

func TestChatNoProviders(t *testing.T) {
	g := NewGateway(nil)
	_, err := g.Chat(context.Background(), nil, Options{})

	var apf *AllProvidersFailedError
	if !errors.As(err, &apf) {
		t.Fatalf("error type = %T, want *AllProvidersFailedError", err)
	}
}

func TestChatCancelledContextStopsFailover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &fakeClient{name: "primary", err: context.Canceled}
	backup := &fakeClient{name: "backup", text: "should not run"}

	g := NewGateway(nil)
	g.Register(primary, 10, allClasses("a"))
	g.Register(backup, 1, allClasses("b"))

	cancel()
	_, err := g.Chat(ctx, nil, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if backup.calls != 0 {
		t.Errorf("backup called %d times after cancellation, want 0", backup.calls)
	}
}

func TestModelForClassFallback(t *testing.T) {
	p := &provider{models: map[ModelClass]string{ClassBalanced: "mid"}}

	if got := p.modelFor(ClassQuality); got != "mid" {
		t.Errorf("modelFor(quality) = %q, want balanced fallback", got)
	}
	if got := p.modelFor(""); got != "mid" {
		t.Errorf("modelFor(empty) = %q, want balanced default", got)
	}
}
