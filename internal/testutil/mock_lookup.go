// Package testutil provides testing utilities for the screenshare scanner.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mocked lookup response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockLookupService is a configurable mock of the screenshare search API.
// Responses are keyed by the discord_id query parameter.
type MockLookupService struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  MockResponse

	// Tracking
	requestCount int
	inFlight     int
	maxInFlight  int
	requested    []string
	lastAPIKey   string
	lastHeader   http.Header
}

// NewMockLookupService creates a new mock server that answers clean for
// every identifier until configured otherwise.
func NewMockLookupService() *MockLookupService {
	mock := &MockLookupService{
		responses: make(map[string]MockResponse),
		fallback:  NewCleanResponse(),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))

	return mock
}

// URL returns the search endpoint URL.
func (m *MockLookupService) URL() string {
	return m.server.URL + "/api/search"
}

// Close shuts down the mock server.
func (m *MockLookupService) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockLookupService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.maxInFlight = 0
	m.requested = nil
	m.lastAPIKey = ""
	m.lastHeader = nil
}

// SetResponse configures the response for one identifier.
func (m *MockLookupService) SetResponse(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[id] = resp
}

// SetDefaultResponse configures the response for unconfigured identifiers.
func (m *MockLookupService) SetDefaultResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// RequestCount returns the number of requests made to the server.
func (m *MockLookupService) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockLookupService) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// Requested returns the identifiers in the order requests arrived.
func (m *MockLookupService) Requested() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requested...)
}

// LastAPIKey returns the api_key of the most recent request.
func (m *MockLookupService) LastAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAPIKey
}

// LastHeader returns the headers of the most recent request.
func (m *MockLookupService) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func (m *MockLookupService) handle(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("discord_id")

	m.mu.Lock()
	m.requestCount++
	m.requested = append(m.requested, id)
	m.lastAPIKey = r.URL.Query().Get("api_key")
	m.lastHeader = r.Header.Clone()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	resp, ok := m.responses[id]
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if _, ok := resp.Headers["Content-Type"]; !ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewCleanResponse creates a successful response without records.
func NewCleanResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true, "data": {"user_data": [], "ticket_data": []}}`,
	}
}

// NewDetectedResponse creates a successful response with one user record
// and the given confidence score.
func NewDetectedResponse(confidence int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(
			`{"success": true, "data": {"user_data": [{"username": "flagged", "source": "ticket"}], "ticket_data": [], "confidence_score": %d}}`,
			confidence,
		),
	}
}

// NewTicketResponse creates a successful response with ticket records only
// and no confidence score.
func NewTicketResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": true, "data": {"user_data": [], "ticket_data": [{"ticket_id": "T-1"}]}}`,
	}
}

// NewRateLimitResponse creates the provider's throttling response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success": false, "error": "Rate limit exceeded, try again later"}`,
	}
}

// NewTooManyRequestsResponse creates a bare 429 without a JSON body.
func NewTooManyRequestsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "slow down",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}

// NewProviderErrorResponse creates a failure response that is not a throttle.
func NewProviderErrorResponse(msg string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"success": false, "error": %q}`, msg),
	}
}

// NewMalformedResponse creates a response that is not valid JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "<html>502 Bad Gateway</html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewMalformedRateLimitResponse creates a non-JSON body mentioning a rate
// limit, as some proxies in front of the provider do.
func NewMalformedRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "upstream rate limit reached",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}
