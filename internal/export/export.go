// Package export uploads plain-text reports and returns a reference to them.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

// Sink stores content under name and returns where it can be retrieved.
type Sink interface {
	Upload(ctx context.Context, name, content string) (string, error)
}

// PasteSink posts to a hastebin-compatible service.
type PasteSink struct {
	baseURL string
	client  *http.Client
}

var _ Sink = (*PasteSink)(nil)

func NewPasteSink(baseURL string, client *http.Client) *PasteSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &PasteSink{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type pasteResponse struct {
	Key string `json:"key"`
}

func (s *PasteSink) Upload(ctx context.Context, name, content string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/documents", strings.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("upload %s: unexpected status %d", name, resp.StatusCode)
	}
	var out pasteResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("upload %s: decode response: %w", name, err)
	}
	if out.Key == "" {
		return "", errors.New("upload " + name + ": empty key in response")
	}
	return s.baseURL + "/" + out.Key, nil
}

// FileSink writes reports to a local directory.
type FileSink struct {
	dir string
}

var _ Sink = (*FileSink)(nil)

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Upload(ctx context.Context, name, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
