package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/screenshare-scanner/internal/testutil"
)

// scanEnv points the scanner at the mock service with no pacing.
func scanEnv(t *testing.T, mock *testutil.MockLookupService) {
	t.Helper()
	t.Setenv("SCREENSHARE_API_KEY", "test-key")
	t.Setenv("SCREENSHARE_API_ENDPOINT", mock.URL())
	t.Setenv("SCAN_BATCH_SIZE", "5")
	t.Setenv("SCAN_INTER_BATCH_DELAY", "1ms")
	t.Setenv("SCAN_PROGRESS_INTERVAL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_PRETTY", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("PROGRESS_WEBHOOK_URL", "")
}

// execute runs the root command with args and writes the report to stdout.
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	return cmd.ExecuteContext(ctx)
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()

	tests := []struct {
		name, want string
	}{
		{"config", "scanner.yaml"},
		{"input", ""},
		{"out", "detection_results.json"},
		{"limit", "10"},
	}
	for _, tt := range tests {
		f := cmd.Flags().Lookup(tt.name)
		if f == nil {
			t.Errorf("flag --%s missing", tt.name)
			continue
		}
		if f.DefValue != tt.want {
			t.Errorf("--%s default = %q, want %q", tt.name, f.DefValue, tt.want)
		}
	}
}

func TestRun_StdinInput(t *testing.T) {
	mock := testutil.NewMockLookupService()
	defer mock.Close()
	scanEnv(t, mock)

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetArgs([]string{"--config=", "--out=", "--input", "-"})
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader("11\n22\n11\n"))

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Members checked:  2/2") {
		t.Errorf("unexpected report:\n%s", stdout.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_NoCache(t *testing.T) {
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	readyHandler(nil)(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 without a cache, got %d", w.Result().StatusCode)
	}
}

func TestServerRoutes(t *testing.T) {
	srv := httptest.NewServer(newServer(":0", nil).Handler)
	defer srv.Close()

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestReadIdentifiers(t *testing.T) {
	input := `# guild export
111
222, 333
	444 555

111
`
	ids, err := readIdentifiers(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readIdentifiers() error = %v", err)
	}
	want := []string{"111", "222", "333", "444", "555", "111"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("readIdentifiers() = %v, want %v", ids, want)
	}
}

func TestReadIdentifiers_LongLine(t *testing.T) {
	want := make([]string, 20000)
	for i := range want {
		want[i] = fmt.Sprintf("1000000000000%05d", i)
	}
	line := strings.Join(want, ",")
	if len(line) <= 64*1024 {
		t.Fatalf("line length = %d, want more than 64 KiB", len(line))
	}

	ids, err := readIdentifiers(strings.NewReader(line))
	if err != nil {
		t.Fatalf("readIdentifiers() error = %v", err)
	}
	if len(ids) != len(want) {
		t.Fatalf("len(ids) = %d, want %d", len(ids), len(want))
	}
	if ids[0] != want[0] || ids[len(ids)-1] != want[len(want)-1] {
		t.Errorf("ids[0] = %s, ids[last] = %s", ids[0], ids[len(ids)-1])
	}
}

func TestCollectIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte("1\n2\n3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ids, err := collectIdentifiers(path, []string{"3", "4"}, nil)
	if err != nil {
		t.Fatalf("collectIdentifiers() error = %v", err)
	}
	if strings.Join(ids, ",") != "1,2,3,4" {
		t.Errorf("collectIdentifiers() = %v", ids)
	}

	ids, err = collectIdentifiers("-", nil, strings.NewReader("9 8 9"))
	if err != nil {
		t.Fatalf("collectIdentifiers(stdin) error = %v", err)
	}
	if strings.Join(ids, ",") != "9,8" {
		t.Errorf("collectIdentifiers(stdin) = %v", ids)
	}

	if _, err := collectIdentifiers(filepath.Join(t.TempDir(), "missing"), nil, nil); err == nil {
		t.Error("expected error for missing input file")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	mock := testutil.NewMockLookupService()
	defer mock.Close()
	scanEnv(t, mock)

	mock.SetResponse("102", testutil.NewDetectedResponse(85))
	mock.SetResponse("105", testutil.NewTicketResponse())

	out := filepath.Join(t.TempDir(), "detections.json")
	var stdout bytes.Buffer
	args := []string{"--config=", "--out=" + out, "101", "102", "103", "104", "105", "106", "102"}

	if err := execute(context.Background(), args, &stdout); err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	text := stdout.String()
	for _, want := range []string{
		"Scan completed successfully.",
		"Members checked:  6/6",
		"Detections found: 2",
		"• 102 (Confidence: 85%)",
		"• 105 (Confidence: N/A)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}

	if mock.RequestCount() != 6 {
		t.Errorf("RequestCount = %d, want 6 (duplicates removed)", mock.RequestCount())
	}
	if mock.LastAPIKey() != "test-key" {
		t.Errorf("api key = %q", mock.LastAPIKey())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	var exported []struct {
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(exported) != 2 {
		t.Errorf("exported %d detections, want 2", len(exported))
	}
}

func TestRun_RateLimited(t *testing.T) {
	mock := testutil.NewMockLookupService()
	defer mock.Close()
	scanEnv(t, mock)

	mock.SetResponse("03", testutil.NewRateLimitResponse())

	out := filepath.Join(t.TempDir(), "detections.json")
	var stdout bytes.Buffer
	args := []string{"--config=", "--out=" + out}
	for i := 1; i <= 12; i++ {
		args = append(args, fmt.Sprintf("%02d", i))
	}

	if err := execute(context.Background(), args, &stdout); err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	text := stdout.String()
	if !strings.Contains(text, "stopped early") {
		t.Errorf("report should mention the early stop:\n%s", text)
	}
	if !strings.Contains(text, "Members checked:  5/12") {
		t.Errorf("report should show 5/12 checked:\n%s", text)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("export should not be written without detections")
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	mock := testutil.NewMockLookupService()
	defer mock.Close()
	scanEnv(t, mock)
	t.Setenv("SCREENSHARE_API_KEY", "")

	err := execute(context.Background(), []string{"--config=", "1"}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("execute() error = %v, want missing api key", err)
	}
}

func TestRun_NoIdentifiers(t *testing.T) {
	mock := testutil.NewMockLookupService()
	defer mock.Close()
	scanEnv(t, mock)

	err := execute(context.Background(), []string{"--config="}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "no identifiers") {
		t.Errorf("execute() error = %v, want no identifiers", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	mock := testutil.NewMockLookupService()
	defer mock.Close()
	scanEnv(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout bytes.Buffer
	err := execute(ctx, []string{"--config=", "--out=", "1", "2"}, &stdout)
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("execute() error = %v, want cancellation", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
	}
}
