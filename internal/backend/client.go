// Package backend talks to the PDF question-answering service: /chat for
// questions and /upload for streaming PDF batches.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdfchat/internal/logging"

	"golang.org/x/sync/errgroup"
)

// ErrNoFiles is returned by Upload when called without paths.
var ErrNoFiles = errors.New("no files to upload")

// ErrMissingAnswer is returned by Chat when a successful response has no answer.
var ErrMissingAnswer = errors.New("chat response missing answer")

const (
	chatField   = "question"
	uploadField = "files"

	// maxErrorBody caps how much of a failed response is kept.
	maxErrorBody = 4096
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	ChatTimeout   time.Duration // 0 disables
	UploadTimeout time.Duration // 0 disables
	HTTPClient    *http.Client  // defaults to a client without a global timeout
}

// ChatResponse is the /chat reply.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// UploadResponse is the optional /upload reply.
type UploadResponse struct {
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives the number of request bytes sent so far and the
// total request size.
type ProgressFunc func(sent, total int64)

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Endpoint, e.Code, body)
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	baseURL       string
	chatTimeout   time.Duration
	uploadTimeout time.Duration
	httpClient    *http.Client
}

// NewClient creates a client for the service at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		// Uploads can legitimately run for minutes; deadlines come from contexts.
		hc = &http.Client{}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		chatTimeout:   cfg.ChatTimeout,
		uploadTimeout: cfg.UploadTimeout,
		httpClient:    hc,
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// withTimeout applies d only when the caller set no deadline of its own.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// =============================================================================
// CHAT
// =============================================================================

// Chat asks a question and returns the answer with its optional sources.
func (c *Client) Chat(ctx context.Context, question string) (*ChatResponse, error) {
	ctx, cancel := withTimeout(ctx, c.chatTimeout)
	defer cancel()

	startTime := time.Now()
	logging.APIDebug("chat: question_len=%d", len(question))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField(chatField, question); err != nil {
		return nil, fmt.Errorf("failed to build chat form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build chat form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("chat: request failed after %v: %v", time.Since(startTime), err)
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("/chat", resp); err != nil {
		logging.APIError("chat: %v", err)
		return nil, err
	}

	var out struct {
		Answer  *string  `json:"answer"`
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if out.Answer == nil {
		return nil, ErrMissingAnswer
	}

	logging.API("chat: completed in %v sources=%d", time.Since(startTime), len(out.Sources))
	return &ChatResponse{Answer: *out.Answer, Sources: out.Sources}, nil
}

// =============================================================================
// UPLOAD
// =============================================================================

type uploadFile struct {
	path string
	name string
	size int64
}

// Upload streams the files at paths as one multipart batch, one "files" part
// per path in order. onProgress may be nil.
func (c *Client) Upload(ctx context.Context, paths []string, onProgress ProgressFunc) (*UploadResponse, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	files := make([]uploadFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		files = append(files, uploadFile{path: p, name: filepath.Base(p), size: info.Size()})
	}

	boundary := multipart.NewWriter(io.Discard).Boundary()
	total, err := multipartLength(boundary, files)
	if err != nil {
		return nil, fmt.Errorf("failed to size upload: %w", err)
	}

	ctx, cancel := withTimeout(ctx, c.uploadTimeout)
	defer cancel()

	startTime := time.Now()
	logging.APIDebug("upload: files=%d bytes=%d", len(files), total)

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	req, err := http.NewRequestWithContext(gctx, http.MethodPost, c.baseURL+"/upload",
		&progressReader{r: pr, total: total, onProgress: onProgress})
	if err != nil {
		pw.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("Accept", "application/json")

	g.Go(func() error {
		err := writeMultipart(pw, boundary, files)
		pw.CloseWithError(err)
		if errors.Is(err, io.ErrClosedPipe) {
			// The transport stopped reading; its error wins.
			return nil
		}
		return err
	})

	var out UploadResponse
	g.Go(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("upload request failed: %w", err)
		}
		defer resp.Body.Close()

		if err := checkStatus("/upload", resp); err != nil {
			return err
		}
		// The body is optional; anything unparsable just means no message.
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(data, &out)
		return nil
	})

	if err := g.Wait(); err != nil {
		logging.APIError("upload: failed after %v: %v", time.Since(startTime), err)
		return nil, err
	}

	logging.API("upload: %d files (%d bytes) in %v", len(files), total, time.Since(startTime))
	return &out, nil
}

// partHeader builds the part header for one uploaded file.
func partHeader(name string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, escapeQuotes(name)))
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	return h
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// multipartLength computes the exact encoded size of the batch by writing
// the envelope to a counter and adding each file's size.
func multipartLength(boundary string, files []uploadFile) (int64, error) {
	var cw countingWriter
	mw := multipart.NewWriter(&cw)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	for _, f := range files {
		if _, err := mw.CreatePart(partHeader(f.name)); err != nil {
			return 0, err
		}
		cw.n += f.size
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

func writeMultipart(w io.Writer, boundary string, files []uploadFile) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	for _, f := range files {
		part, err := mw.CreatePart(partHeader(f.name))
		if err != nil {
			return err
		}
		if err := copyFile(part, f); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFile(w io.Writer, f uploadFile) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", f.path, err)
	}
	defer fh.Close()

	if _, err := io.CopyN(w, fh, f.size); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s shrank during upload", f.path)
		}
		return err
	}
	return nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// progressReader reports bytes as the transport consumes them.
type progressReader struct {
	r          *io.PipeReader
	sent       int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}

// Close unblocks the writer when the transport gives up early.
func (p *progressReader) Close() error {
	return p.r.Close()
}

// =============================================================================
// HEALTH
// =============================================================================

// Health probes the service root. Any HTTP response counts as reachable; the
// status code is returned for display.
func (c *Client) Health(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, nil
}

func checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(body)}
}
