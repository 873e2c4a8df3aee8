// Package uplink performs the upload round trip and response-audio fetches.
package uplink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/metrics"
)

var (
	// ErrUploadFailed covers transport errors and non-success statuses.
	ErrUploadFailed = errors.New("upload failed")
	// ErrBadResponse covers malformed response bodies.
	ErrBadResponse = errors.New("bad server response")
	// ErrFetchFailed covers response-audio download failures.
	ErrFetchFailed = errors.New("fetch failed")
)

// maxResponseBytes bounds how much response JSON we are willing to read.
const maxResponseBytes = 1 << 20

// deviceTag identifies this device class in upload metadata.
const deviceTag = "SafetyScribe-PiZeroW"

// Options configure the client.
type Options struct {
	Endpoint      string
	Host          string // reachability probe target
	Port          int
	UploadTimeout time.Duration
	FetchTimeout  time.Duration
	TempDir       string // defaults to /dev/shm when present
}

// Client talks to the processing endpoint. Both operations are cancellable
// mid-flight via their context; cancellation releases the connection.
type Client struct {
	opts   Options
	http   *http.Client
	logger zerolog.Logger
}

func New(opts Options) *Client {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 90 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	if opts.Port <= 0 {
		opts.Port = 443
	}
	if opts.TempDir == "" {
		opts.TempDir = defaultTempDir()
	}
	return &Client{
		opts:   opts,
		http:   &http.Client{},
		logger: log.WithComponent("uplink"),
	}
}

// defaultTempDir prefers the RAM disk: response audio is short-lived and the
// SD card is slow.
func defaultTempDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Upload streams the recording as a multipart body and parses the response
// into a normalized Instruction.
func (c *Client) Upload(ctx context.Context, path string) (*Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open recording: %v", ErrUploadFailed, err)
	}
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithTimeout(ctx, c.opts.UploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := writeUploadBody(writer, f, filepath.Base(path))
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		metrics.Uploads.WithLabelValues("upload_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		metrics.Uploads.WithLabelValues("upload_failed").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		metrics.Uploads.WithLabelValues("upload_failed").Inc()
		return nil, fmt.Errorf("%w: read body: %v", ErrUploadFailed, err)
	}

	in, err := ParseInstruction(body)
	if err != nil {
		metrics.Uploads.WithLabelValues("bad_response").Inc()
		return nil, err
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	metrics.UploadDuration.Observe(time.Since(start).Seconds())
	c.logger.Info().
		Str(log.FieldEvent, log.EventUploadOK).
		Int("status", res.StatusCode).
		Dur(log.FieldDurationMS, time.Since(start)).
		Msg("upload accepted")
	return in, nil
}

func writeUploadBody(w *multipart.Writer, f *os.File, name string) error {
	part, err := w.CreateFormFile("audio", name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy recording: %w", err)
	}
	if err := w.WriteField("filename", name); err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	if err := w.WriteField("device", deviceTag); err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	return nil
}

// Fetch downloads a referenced audio resource to a temp file and returns its
// path. The caller owns the file.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		metrics.Fetches.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		metrics.Fetches.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, res.StatusCode)
	}

	out, err := os.CreateTemp(c.opts.TempDir, "dl_*.wav")
	if err != nil {
		metrics.Fetches.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: temp file: %v", ErrFetchFailed, err)
	}
	if _, err := io.Copy(out, res.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		metrics.Fetches.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		metrics.Fetches.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	metrics.Fetches.WithLabelValues("ok").Inc()
	return out.Name(), nil
}

// Materialize writes inline audio bytes to a temp wav and returns its path.
func (c *Client) Materialize(data []byte) (string, error) {
	out, err := os.CreateTemp(c.opts.TempDir, "rx_*.wav")
	if err != nil {
		return "", fmt.Errorf("%w: temp file: %v", ErrFetchFailed, err)
	}
	if _, err := out.Write(data); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return out.Name(), nil
}

// WaitReachable blocks until a TCP connection to the endpoint host succeeds,
// retrying with quadratic backoff. It returns only on success or when ctx is
// cancelled.
func (c *Client) WaitReachable(ctx context.Context) error {
	addr := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
	dialer := net.Dialer{Timeout: 2500 * time.Millisecond}

	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			c.logger.Info().
				Str(log.FieldEvent, log.EventNetworkReady).
				Str("addr", addr).
				Msg("endpoint reachable")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("reachability probe failed")

		backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
