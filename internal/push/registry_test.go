package push

import (
	"fmt"
	"sync"
	"testing"
)

type fakeChannel struct {
	mu       sync.Mutex
	payloads []any
	sendErr  error
}

func (c *fakeChannel) Send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeChannel) received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.payloads...)
}

func TestRegistry_PublishReachesSubscriber(t *testing.T) {
	r := NewRegistry()
	ch := &fakeChannel{}

	r.Connect("conv-1", ch)
	r.Publish("conv-1", "hello")

	if got := ch.received(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("received = %v, want [hello]", got)
	}
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewRegistry()
	a := &fakeChannel{}
	b := &fakeChannel{}

	r.Connect("conv-1", a)
	r.Connect("conv-1", b)
	r.Publish("conv-1", "payload")

	if len(a.received()) != 0 {
		t.Errorf("displaced channel A received %v, want nothing", a.received())
	}
	if len(b.received()) != 1 {
		t.Errorf("channel B received %d payloads, want 1", len(b.received()))
	}
}

func TestRegistry_DisplacedChannelCannotEvictReplacement(t *testing.T) {
	r := NewRegistry()
	a := &fakeChannel{}
	b := &fakeChannel{}

	r.Connect("conv-1", a)
	r.Connect("conv-1", b)
	// A's connection handler tears down late; B must stay registered.
	r.Disconnect("conv-1", a)
	r.Publish("conv-1", "payload")

	if len(b.received()) != 1 {
		t.Errorf("channel B received %d payloads, want 1", len(b.received()))
	}
}

func TestRegistry_PublishWithoutSubscriberIsNoOp(t *testing.T) {
	r := NewRegistry()
	// Must not panic or block.
	r.Publish("nobody-home", "payload")
}

func TestRegistry_DisconnectUnregisteredIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Disconnect("nobody-home", &fakeChannel{})
}

func TestRegistry_SendErrorIsSwallowed(t *testing.T) {
	r := NewRegistry()
	ch := &fakeChannel{sendErr: fmt.Errorf("connection reset")}

	r.Connect("conv-1", ch)
	r.Publish("conv-1", "payload") // must not panic
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		key := fmt.Sprintf("conv-%d", i%5)
		ch := &fakeChannel{}
		go func() {
			defer wg.Done()
			r.Connect(key, ch)
		}()
		go func() {
			defer wg.Done()
			r.Publish(key, "payload")
		}()
		go func() {
			defer wg.Done()
			r.Disconnect(key, ch)
		}()
	}
	wg.Wait()
}
