package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDefaultRequestBearerToken(t *testing.T) {
	req, err := DefaultRequest(context.Background(), "https://graph.example.com/p.jpg", Metadata{
		"identifier":   "p",
		"accessTokenB": "second",
		"accessTokenA": "first",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "Bearer first", req.Header.Get("Authorization"))

	req, err = DefaultRequest(context.Background(), "https://graph.example.com/p.jpg", Metadata{"identifier": "p"})
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = DefaultRequest(context.Background(), "http://[::1", nil)
	assert.Error(t, err)
}

func TestEngineSendsHeadersThroughTransport(t *testing.T) {
	mock := httpmock.NewMockTransport()
	body := pngBytes(t)

	var gotAuth, gotAgent string
	mock.RegisterResponder(http.MethodGet, "https://cdn.example.com/avatar.png",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			gotAgent = req.Header.Get("User-Agent")
			return httpmock.NewBytesResponse(http.StatusOK, body), nil
		})

	p := newTestProvider(t)
	c := newCollector()
	e := newTestEngine(t, DefaultConfig(), p, c, nil)
	e.SetHTTPClient(&http.Client{Transport: mock})
	start(t, e)

	require.NoError(t, e.Enqueue("https://cdn.example.com/avatar.png", Metadata{
		"identifier":  "avatar",
		"accessToken": "secret-token",
	}))
	notes := c.wait(t, 1, 5*time.Second)

	assert.NotEmpty(t, notes[0].path)
	assert.Equal(t, 1, mock.GetTotalCallCount())
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "socialcache/1.0", gotAgent)
}

func TestEngineUnreachableHostFails(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterNoResponder(httpmock.ConnectionFailure)

	p := newTestProvider(t)
	c := newCollector()
	e := newTestEngine(t, DefaultConfig(), p, c, nil)
	e.SetHTTPClient(&http.Client{Transport: mock})
	start(t, e)

	require.NoError(t, e.Enqueue("https://down.example.com/a.jpg", md("a")))
	notes := c.wait(t, 1, 5*time.Second)
	assert.Empty(t, notes[0].path)
}

// headerProvider adds a custom header through RequestBuilder
type headerProvider struct {
	*testProvider
}

func (p headerProvider) BuildRequest(ctx context.Context, url string, md Metadata) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", "custom-agent")
	return req, nil
}

func TestEngineUsesRequestBuilder(t *testing.T) {
	mock := httpmock.NewMockTransport()
	body := pngBytes(t)

	var gotAccept, gotAgent, gotAuth string
	mock.RegisterResponder(http.MethodGet, "https://files.example.com/thumb",
		func(req *http.Request) (*http.Response, error) {
			gotAccept = req.Header.Get("Accept")
			gotAgent = req.Header.Get("User-Agent")
			gotAuth = req.Header.Get("Authorization")
			return httpmock.NewBytesResponse(http.StatusOK, body), nil
		})

	p := headerProvider{newTestProvider(t)}
	c := newCollector()
	e := newTestEngine(t, DefaultConfig(), p, c, nil)
	e.SetHTTPClient(&http.Client{Transport: mock})
	start(t, e)

	require.NoError(t, e.Enqueue("https://files.example.com/thumb", Metadata{"identifier": "t", "accessToken": "ignored"}))
	notes := c.wait(t, 1, 5*time.Second)

	assert.NotEmpty(t, notes[0].path)
	assert.Equal(t, "image/*", gotAccept)
	assert.Equal(t, "custom-agent", gotAgent)
	assert.Empty(t, gotAuth)
}

func TestEngineStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.Write(body)
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxConcurrent = 2
	p := newTestProvider(t)
	c := newCollector()
	e := newTestEngine(t, cfg, p, c, nil)
	e.SetHTTPClient(srv.Client())
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, e.Enqueue(srv.URL+"/ok", md("ok")))
	c.wait(t, 1, 5*time.Second)

	for _, path := range []string{"/hang1", "/hang2", "/hang3"} {
		require.NoError(t, e.Enqueue(srv.URL+path, md(path)))
	}
	require.Eventually(t, func() bool { return e.Stats().InFlight == 2 }, time.Second, 5*time.Millisecond)

	e.Stop()
	notes := c.wait(t, 3, time.Second)
	for _, note := range notes {
		assert.Empty(t, note.path)
	}
	require.Eventually(t, func() bool { return len(p.FlushSizes()) == 1 }, time.Second, 10*time.Millisecond)
}
