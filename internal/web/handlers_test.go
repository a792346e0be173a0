package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mlavoie/feedgo/internal/hw/stepper"
	"github.com/mlavoie/feedgo/internal/logic/feeder"
)

func testServer(status feeder.Status, dispenseErr error) (*Server, *int) {
	calls := 0
	h := NewHandlers(
		NewStatusBroadcaster(),
		func() feeder.Status { return status },
		func() error { calls++; return dispenseErr },
	)
	return NewServer(":0", h), &calls
}

func TestHandleStatus(t *testing.T) {
	want := feeder.Status{
		Iterations: 42,
		BowlEmpty:  true,
		Confidence: 0.91,
		Dispenses:  3,
	}
	srv, _ := testServer(want, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got feeder.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Iterations != 42 || !got.BowlEmpty || got.Confidence != 0.91 || got.Dispenses != 3 {
		t.Errorf("snapshot = %+v, want %+v", got, want)
	}
}

func TestHandleDispense_OK(t *testing.T) {
	srv, calls := testServer(feeder.Status{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/dispense", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if *calls != 1 {
		t.Errorf("dispense calls = %d, want 1", *calls)
	}
}

func TestHandleDispense_Cooldown(t *testing.T) {
	srv, _ := testServer(feeder.Status{}, feeder.ErrCooldown)

	req := httptest.NewRequest(http.MethodPost, "/dispense", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for cooldown", rec.Code)
	}
}

func TestHandleDispense_Busy(t *testing.T) {
	srv, _ := testServer(feeder.Status{}, stepper.ErrBusy)

	req := httptest.NewRequest(http.MethodPost, "/dispense", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for busy motor", rec.Code)
	}
}

func TestHandleDispense_MotorError(t *testing.T) {
	srv, _ := testServer(feeder.Status{}, errors.New("driver fault"))

	req := httptest.NewRequest(http.MethodPost, "/dispense", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleDispense_GetRejected(t *testing.T) {
	srv, calls := testServer(feeder.Status{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/dispense", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if *calls != 0 {
		t.Errorf("dispense calls = %d, want 0", *calls)
	}
}

func TestHandleStatusStream_DeliversEvents(t *testing.T) {
	b := NewStatusBroadcaster()
	h := NewHandlers(b, func() feeder.Status { return feeder.Status{} }, nil)
	srv := NewServer(":0", h)

	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// Give the handler time to subscribe before broadcasting.
	time.Sleep(50 * time.Millisecond)
	b.Broadcast("info", "stream check")

	buf := make([]byte, 512)
	deadline := time.Now().Add(2 * time.Second)
	var received string
	for time.Now().Before(deadline) {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			received += string(buf[:n])
		}
		if err != nil {
			break
		}
		if containsEvent(received, "stream check") {
			return
		}
	}
	if !containsEvent(received, "stream check") {
		t.Errorf("stream did not deliver the broadcast; got: %q", received)
	}
}

func containsEvent(stream, msg string) bool {
	var evt StatusEvent
	for _, line := range splitLines(stream) {
		if len(line) > 6 && line[:6] == "data: " {
			if err := json.Unmarshal([]byte(line[6:]), &evt); err == nil && evt.Msg == msg {
				return true
			}
		}
	}
	return false
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
