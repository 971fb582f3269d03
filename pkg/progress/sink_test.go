package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	err := sink.Deliver(context.Background(), Update{Checked: 50, Total: 120, Percent: 42, Detections: 3})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["checked"] != float64(50) || line["total"] != float64(120) {
		t.Errorf("unexpected fields: %v", line)
	}
	if line["status"] != "running" {
		t.Errorf("status = %v, want running", line["status"])
	}
}

func TestNewWebhookSink_EmptyURL(t *testing.T) {
	if _, err := NewWebhookSink("", nil, time.Second); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestWebhookSink_Deliver(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader string
		gotType   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Token")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(server.URL, map[string]string{"X-Token": "secret"}, time.Second)
	if err != nil {
		t.Fatalf("NewWebhookSink() error = %v", err)
	}

	u := Update{Checked: 120, Total: 120, Detections: 2, Percent: 100, Final: true}
	if err := sink.Deliver(context.Background(), u); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if gotHeader != "secret" {
		t.Errorf("X-Token = %q, want secret", gotHeader)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["status"] != "done" || payload["final"] != true || payload["checked"] != float64(120) {
		t.Errorf("unexpected payload: %s", gotBody)
	}
}

func TestWebhookSink_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("gateway down"))
	}))
	defer server.Close()

	sink, err := NewWebhookSink(server.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("NewWebhookSink() error = %v", err)
	}

	err = sink.Deliver(context.Background(), Update{Checked: 1, Total: 1})
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "gateway down") {
		t.Errorf("error = %v", err)
	}
}

func TestReporter_WebhookFailureDoesNotBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(server.URL, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("NewWebhookSink() error = %v", err)
	}

	r := NewReporter(sink, 1)
	r.SetDeliveryTimeout(20 * time.Millisecond)

	start := time.Now()
	r.Sample(context.Background(), snapshot(1, 0, false), 1)
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("delivery took %v, want it bounded by the delivery timeout", elapsed)
	}
}
