package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBroadcastWithoutClients(t *testing.T) {
	h := New()
	// Must not block or panic with nobody listening
	for i := 0; i < 10; i++ {
		h.Broadcast(map[string]string{"type": "refresh_started"})
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("expected 0 clients, got %d", n)
	}
}

func TestSSEDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// The hello comment arrives first
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected hello comment, got %q", line)
	}

	// Wait for the client registration to land before broadcasting
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ClientCount() != 1 {
		t.Fatal("client never registered")
	}

	h.Broadcast(map[string]string{"type": "refresh_complete"})

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	if !strings.Contains(line, "refresh_complete") {
		t.Errorf("expected the broadcast payload, got %q", line)
	}
}
