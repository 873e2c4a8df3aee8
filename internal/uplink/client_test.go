package uplink

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF-pretend-audio"), 0o600))
	return path
}

func newClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	return New(Options{
		Endpoint:      endpoint,
		Host:          "127.0.0.1",
		UploadTimeout: 2 * time.Second,
		FetchTimeout:  2 * time.Second,
		TempDir:       t.TempDir(),
	})
}

func TestUploadSendsMultipartAndParsesResponse(t *testing.T) {
	var gotDevice, gotFilename string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotDevice = r.FormValue("device")
		gotFilename = r.FormValue("filename")

		f, _, err := r.FormFile("audio")
		require.NoError(t, err)
		gotAudio, err = io.ReadAll(f)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"led":"white"}`))
	}))
	defer srv.Close()

	in, err := newClient(t, srv.URL).Upload(context.Background(), writeWav(t))
	require.NoError(t, err)

	assert.Equal(t, "SafetyScribe-PiZeroW", gotDevice)
	assert.Equal(t, "rec.wav", gotFilename)
	assert.Equal(t, []byte("RIFF-pretend-audio"), gotAudio)
	assert.Equal(t, "white", in.LEDPattern)
	assert.False(t, in.HasAudio())
}

func TestUploadNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Upload(context.Background(), writeWav(t))
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestUploadMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Upload(context.Background(), writeWav(t))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestUploadTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Options{
		Endpoint:      srv.URL,
		Host:          "127.0.0.1",
		UploadTimeout: 100 * time.Millisecond,
		TempDir:       t.TempDir(),
	})
	start := time.Now()
	_, err := c.Upload(context.Background(), writeWav(t))
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must be bounded")
}

func TestUploadMissingFile(t *testing.T) {
	_, err := newClient(t, "http://127.0.0.1:0").Upload(context.Background(), "/does/not/exist.wav")
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestFetchWritesTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("RIFF-response"))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	path, err := c.Fetch(context.Background(), srv.URL+"/y.wav")
	require.NoError(t, err)
	defer func() { _ = os.Remove(path) }()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-response"), data)
}

func TestFetchFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Fetch(context.Background(), srv.URL+"/y.wav")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestMaterializeInlineAudio(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:0")
	path, err := c.Materialize([]byte("RIFF-inline"))
	require.NoError(t, err)
	defer func() { _ = os.Remove(path) }()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-inline"), data)
}

func TestWaitReachableSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	c := New(Options{Endpoint: "http://x", Host: "127.0.0.1", Port: port, TempDir: t.TempDir()})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, c.WaitReachable(ctx))
}

func TestWaitReachableHonorsCancellation(t *testing.T) {
	// Nothing listens on this port; the gate must keep retrying until the
	// context dies, then return its error.
	c := New(Options{Endpoint: "http://x", Host: "127.0.0.1", Port: 1, TempDir: t.TempDir()})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := c.WaitReachable(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
