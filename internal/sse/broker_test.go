package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestSendDelivery(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	if err := b.Send(context.Background(), []byte(`{"id":"1","kind":"event"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: bridge\n") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `data: {"id":"1","kind":"event"}`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestKeepAlive(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		if !strings.HasPrefix(string(msg), ":") {
			t.Errorf("keep-alive should be a comment, got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no keep-alive")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	_ = b.Send(context.Background(), []byte(`{}`))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: bridge") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

// headerProbe records the broker's client count at the moment the stream
// headers are written.
type headerProbe struct {
	*httptest.ResponseRecorder
	broker  *Broker
	clients chan int
}

func (h *headerProbe) WriteHeader(code int) {
	h.clients <- h.broker.ClientCount()
	h.ResponseRecorder.WriteHeader(code)
}

func TestSSEHandler_SubscribesBeforeHeaders(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := &headerProbe{ResponseRecorder: httptest.NewRecorder(), broker: b, clients: make(chan int, 1)}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	select {
	case n := <-w.clients:
		if n != 1 {
			t.Errorf("client count at header time = %d, want 1", n)
		}
	case <-time.After(time.Second):
		t.Fatal("headers never written")
	}
	cancel()
	<-done
}

func TestSendDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		_ = b.Send(context.Background(), []byte(`{}`))
	}
}

func TestDeliverAndRecv(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	if err := b.Deliver(context.Background(), []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := b.Recv(ctx)
	if err != nil || string(got) != `{"a":1}` {
		t.Fatalf("Recv = %q, %v", got, err)
	}
}

func TestHandlePost(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	w := httptest.NewRecorder()
	b.HandlePost(w, httptest.NewRequest(http.MethodPost, "/bridge", strings.NewReader(`not json`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	b.HandlePost(w, httptest.NewRequest(http.MethodPost, "/bridge", strings.NewReader(`{"id":"x"}`)))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	got, err := b.Recv(context.Background())
	if err != nil || string(got) != `{"id":"x"}` {
		t.Errorf("Recv = %q, %v", got, err)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	_ = b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	if err := b.Send(context.Background(), []byte(`{}`)); err == nil {
		t.Error("Send after close should fail")
	}
	if _, err := b.Recv(context.Background()); err == nil {
		t.Error("Recv after close should fail")
	}
	_ = b.Close()
}
