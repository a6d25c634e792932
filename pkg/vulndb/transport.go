package vulndb

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// HTTPFetcher abstracts HTTP calls for testability
type HTTPFetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// RealHTTPFetcher wraps http.Client for production use
type RealHTTPFetcher struct {
	client *http.Client
}

// NewRealHTTPFetcher creates a production HTTP fetcher
func NewRealHTTPFetcher(client *http.Client) HTTPFetcher {
	return &RealHTTPFetcher{client: client}
}

func (f *RealHTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	return f.client.Do(req)
}

type mockResponse struct {
	status int
	body   string
}

// MockHTTPFetcher simulates HTTP responses for testing
type MockHTTPFetcher struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	errors    map[string]error
	requests  []string
}

// NewMockHTTPFetcher creates a mock HTTP fetcher
func NewMockHTTPFetcher() *MockHTTPFetcher {
	return &MockHTTPFetcher{
		responses: make(map[string]mockResponse),
		errors:    make(map[string]error),
	}
}

// AddResponse registers a mock response for a URL
func (m *MockHTTPFetcher) AddResponse(url string, statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[url] = mockResponse{status: statusCode, body: body}
}

// AddError registers a mock error for a URL
func (m *MockHTTPFetcher) AddError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[url] = err
}

// Requests returns the request bodies received so far.
func (m *MockHTTPFetcher) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func (m *MockHTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	url := req.URL.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, body)
	if err, ok := m.errors[url]; ok {
		return nil, err
	}
	r, ok := m.responses[url]
	if !ok {
		r = mockResponse{status: http.StatusNotFound, body: "Not Found"}
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}
