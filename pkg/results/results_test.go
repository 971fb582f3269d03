package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Sternrassler/screenshare-scanner/pkg/lookup"
)

func detectedOutcome(t *testing.T, data string) lookup.Outcome {
	t.Helper()
	var p lookup.Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	return lookup.Detected(&p)
}

func assertIdentity(t *testing.T, r ScanResults) {
	t.Helper()
	if sum := r.Clean + len(r.Detected) + len(r.Errors) + r.RateLimited; sum != r.Checked {
		t.Errorf("clean(%d) + detected(%d) + errors(%d) + rate_limited(%d) = %d, want checked %d",
			r.Clean, len(r.Detected), len(r.Errors), r.RateLimited, sum, r.Checked)
	}
}

func TestAggregator_Record(t *testing.T) {
	tests := []struct {
		name          string
		outcome       lookup.Outcome
		wantClean     int
		wantDetected  int
		wantErrors    int
		wantRateLimit bool
	}{
		{
			name:      "clean increments checked only",
			outcome:   lookup.Clean(),
			wantClean: 1,
		},
		{
			name:         "detected appends detection",
			outcome:      lookup.Detected(&lookup.Payload{}),
			wantDetected: 1,
		},
		{
			name:       "transport error appends error",
			outcome:    lookup.TransportFailure(errors.New("connection reset")),
			wantErrors: 1,
		},
		{
			name:          "transport error with marker also trips flag",
			outcome:       lookup.TransportFailure(errors.New("proxy says: rate limit")),
			wantErrors:    1,
			wantRateLimit: true,
		},
		{
			name:          "rate limited trips flag without error entry",
			outcome:       lookup.RateLimited(nil),
			wantRateLimit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			agg.Record("1", tt.outcome)

			r := agg.Snapshot()
			if r.Checked != 1 {
				t.Errorf("Checked = %d, want 1", r.Checked)
			}
			if r.Clean != tt.wantClean {
				t.Errorf("Clean = %d, want %d", r.Clean, tt.wantClean)
			}
			if len(r.Detected) != tt.wantDetected {
				t.Errorf("len(Detected) = %d, want %d", len(r.Detected), tt.wantDetected)
			}
			if len(r.Errors) != tt.wantErrors {
				t.Errorf("len(Errors) = %d, want %d", len(r.Errors), tt.wantErrors)
			}
			if r.RateLimitHit != tt.wantRateLimit {
				t.Errorf("RateLimitHit = %v, want %v", r.RateLimitHit, tt.wantRateLimit)
			}
			if agg.RateLimitHit() != tt.wantRateLimit {
				t.Errorf("RateLimitHit() = %v, want %v", agg.RateLimitHit(), tt.wantRateLimit)
			}
			assertIdentity(t, r)
		})
	}
}

func TestAggregator_RateLimitIsSticky(t *testing.T) {
	agg := NewAggregator()

	agg.Record("1", lookup.RateLimited(nil))
	for i := 2; i <= 5; i++ {
		agg.Record(fmt.Sprint(i), lookup.Clean())
	}

	if !agg.RateLimitHit() {
		t.Error("RateLimitHit should stay true after later clean outcomes")
	}
	r := agg.Snapshot()
	if r.Checked != 5 || r.RateLimited != 1 || r.Clean != 4 {
		t.Errorf("got checked=%d rate_limited=%d clean=%d, want 5/1/4", r.Checked, r.RateLimited, r.Clean)
	}
}

func TestAggregator_ErrorEntry(t *testing.T) {
	agg := NewAggregator()
	agg.Record("99", lookup.TransportFailure(&lookup.Error{
		Identifier: "99",
		Class:      lookup.ErrorClassNetwork,
		Message:    "request failed",
		Err:        errors.New("i/o timeout"),
	}))

	r := agg.Snapshot()
	if len(r.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(r.Errors))
	}
	want := ScanError{ID: "99", Error: "lookup network error: request failed: i/o timeout"}
	if r.Errors[0] != want {
		t.Errorf("Errors[0] = %+v, want %+v", r.Errors[0], want)
	}
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	const batch = 64

	agg := NewAggregator()
	var wg sync.WaitGroup
	for i := 0; i < batch; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("member-%d", i)
			switch i % 4 {
			case 0:
				agg.Record(id, lookup.Clean())
			case 1:
				agg.Record(id, lookup.Detected(&lookup.Payload{}))
			case 2:
				agg.Record(id, lookup.TransportFailure(errors.New("reset")))
			case 3:
				agg.Record(id, lookup.RateLimited(nil))
			}
		}(i)
	}
	wg.Wait()

	r := agg.Snapshot()
	if r.Checked != batch {
		t.Fatalf("Checked = %d, want %d", r.Checked, batch)
	}
	if r.Clean != batch/4 || len(r.Detected) != batch/4 || len(r.Errors) != batch/4 || r.RateLimited != batch/4 {
		t.Errorf("per-kind counts = %d/%d/%d/%d, want %d each",
			r.Clean, len(r.Detected), len(r.Errors), r.RateLimited, batch/4)
	}
	assertIdentity(t, r)

	seen := make(map[string]bool)
	for _, d := range r.Detected {
		seen[d.ID] = true
	}
	for _, e := range r.Errors {
		seen[e.ID] = true
	}
	if len(seen) != batch/2 {
		t.Errorf("distinct recorded ids = %d, want %d (lost or duplicated entries)", len(seen), batch/2)
	}
}

func TestAggregator_SnapshotIsolation(t *testing.T) {
	agg := NewAggregator()
	agg.Record("1", lookup.Detected(&lookup.Payload{}))

	snap := agg.Snapshot()
	agg.Record("2", lookup.Detected(&lookup.Payload{}))
	agg.Record("3", lookup.TransportFailure(errors.New("x")))

	if snap.Checked != 1 || len(snap.Detected) != 1 || len(snap.Errors) != 0 {
		t.Errorf("snapshot changed after Record: %+v", snap)
	}

	snap.Detected[0].ID = "mutated"
	if agg.Snapshot().Detected[0].ID != "1" {
		t.Error("mutating a snapshot must not affect the aggregator")
	}
}

func TestAggregator_EmptySnapshotJSON(t *testing.T) {
	out, err := json.Marshal(NewAggregator().Snapshot())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"checked":0,"detected":[],"errors":[],"rate_limit_hit":false,"clean":0,"rate_limited":0}`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}

func TestDetection_JSON(t *testing.T) {
	agg := NewAggregator()
	agg.Record("42", detectedOutcome(t, `{"user_data":[{"u":"x"}],"confidence_score":85}`))

	out, err := json.Marshal(agg.Snapshot().Detected)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"id":"42","data":{"user_data":[{"u":"x"}],"confidence_score":85}}]`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}
