package vulndb

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://osv.test/v1/querybatch"

var (
	lodash  = Package{Name: "lodash", Ecosystem: "npm", Version: "4.17.15"}
	express = Package{Name: "express", Ecosystem: "npm", Version: "4.18.2"}
)

func newTestClient(f HTTPFetcher) *Client {
	return New(Options{URL: testURL, Fetcher: f, Timeout: time.Second})
}

func TestDefaultOffline_Parses(t *testing.T) {
	o, err := LoadOffline(offlineData)
	require.NoError(t, err)
	require.NotEmpty(t, o)

	v := o.Lookup(lodash)
	require.Len(t, v, 1)
	assert.Equal(t, "GHSA-p6mc-m468-83gw", v[0].ID)
	assert.Equal(t, "HIGH", v[0].Severity)

	assert.Len(t, o.Lookup(Package{Name: "PyYAML", Ecosystem: "PyPI", Version: "5.3"}), 1, "PyPI names are case-insensitive")
	assert.Empty(t, o.Lookup(express))
}

func TestClient_OnlineQueryAndCache(t *testing.T) {
	f := NewMockHTTPFetcher()
	f.AddResponse(testURL, http.StatusOK, `{"results":[
		{"vulns":[{"id":"GHSA-1","summary":"bad","severity":[{"type":"CVSS_V3","score":"CVSS:3.1/AV:N"}]}]},
		{}
	]}`)
	c := newTestClient(f)

	res := c.Query(context.Background(), []Package{lodash, express})
	assert.False(t, res.Offline)
	require.Len(t, res.Vulns, 2)
	require.Len(t, res.Vulns[0], 1)
	assert.Equal(t, "GHSA-1", res.Vulns[0][0].ID)
	assert.Equal(t, "CVSS:3.1/AV:N", res.Vulns[0][0].Severity)
	assert.Empty(t, res.Vulns[1])
	assert.Contains(t, f.Requests()[0], `"ecosystem":"npm"`)

	// Second query is answered from the cache.
	res = c.Query(context.Background(), []Package{lodash})
	assert.Len(t, res.Vulns[0], 1)
	assert.Len(t, f.Requests(), 1)
	assert.Equal(t, 2, c.Cache().Len())

	c.Cache().Clear()
	assert.Equal(t, 0, c.Cache().Len())
	c.Query(context.Background(), []Package{lodash, express})
	assert.Len(t, f.Requests(), 2)
}

func TestClient_FallsBackOffline(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*MockHTTPFetcher)
		want  error
	}{
		{"network error", func(f *MockHTTPFetcher) { f.AddError(testURL, errors.New("connection refused")) }, nil},
		{"rate limited", func(f *MockHTTPFetcher) { f.AddResponse(testURL, http.StatusTooManyRequests, "slow down") }, ErrRateLimited},
		{"server error", func(f *MockHTTPFetcher) { f.AddResponse(testURL, http.StatusBadGateway, "oops") }, nil},
		{"short response", func(f *MockHTTPFetcher) { f.AddResponse(testURL, http.StatusOK, `{"results":[]}`) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewMockHTTPFetcher()
			tt.setup(f)
			c := newTestClient(f)

			res := c.Query(context.Background(), []Package{lodash, express})
			assert.True(t, res.Offline)
			require.Error(t, res.FallbackErr)
			if tt.want != nil {
				assert.ErrorIs(t, res.FallbackErr, tt.want)
			}
			require.Len(t, res.Vulns[0], 1)
			assert.Equal(t, "GHSA-p6mc-m468-83gw", res.Vulns[0][0].ID)
			assert.Empty(t, res.Vulns[1])
			assert.Equal(t, 0, c.Cache().Len(), "offline answers are not cached")
		})
	}
}

func TestClient_OfflineOnlySkipsNetwork(t *testing.T) {
	f := NewMockHTTPFetcher()
	c := New(Options{URL: testURL, Fetcher: f, OfflineOnly: true})
	res := c.Query(context.Background(), []Package{lodash})
	assert.True(t, res.Offline)
	assert.NoError(t, res.FallbackErr)
	assert.NotEmpty(t, res.Vulns[0])
	assert.Empty(t, f.Requests())
}

func TestClient_CancelledContext(t *testing.T) {
	f := NewMockHTTPFetcher()
	f.AddResponse(testURL, http.StatusOK, `{"results":[{}]}`)
	c := newTestClient(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Query(ctx, []Package{lodash})
	assert.True(t, res.Offline)
}

func TestCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }
	c.Put(lodash, []Vulnerability{{ID: "X"}})

	_, ok := c.Get(lodash)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(lodash)
	assert.False(t, ok)
}
