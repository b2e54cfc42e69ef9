package engine

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

//go:embed bun_renderer.ts
var bunRendererSource string

// socketSeq keeps socket paths unique when several registries run at once.
var socketSeq atomic.Int64

// Runtime renders a JSX module into markup.
type Runtime interface {
	Render(ctx context.Context, path string, props map[string]any) (string, error)
	Close() error
}

// RuntimeStarter starts a Runtime. It is replaceable for tests.
type RuntimeStarter func(ctx context.Context) (Runtime, error)

// bunRuntime is a long-lived bun process serving render requests over a
// unix socket.
type bunRuntime struct {
	cmd    *exec.Cmd
	socket string
	client *http.Client
}

// StartBunRuntime launches `<runtime> run --smol -` in workDir with the
// embedded renderer script on stdin and waits for its socket.
func StartBunRuntime(ctx context.Context, runtime, workDir string) (Runtime, error) {
	socket := filepath.Join(os.TempDir(),
		fmt.Sprintf("plasmo-layout-%d-%d.sock", os.Getpid(), socketSeq.Add(1)))
	_ = os.Remove(socket)

	cmd := exec.Command(runtime, "run", "--smol", "-")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "PLASMO_LAYOUT_SOCKET="+socket)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	cmd.Stdin = strings.NewReader(bunRendererSource)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", runtime, err)
	}

	if err := waitForSocket(ctx, socket, 5*time.Second); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}

	return &bunRuntime{
		cmd:    cmd,
		socket: socket,
		client: &http.Client{Transport: transport},
	}, nil
}

func (r *bunRuntime) Render(ctx context.Context, path string, props map[string]any) (string, error) {
	reqBody := map[string]any{
		"path":  path,
		"props": props,
	}

	var result struct {
		HTML  string `json:"html"`
		Error *struct {
			Message string `json:"message"`
			Stack   string `json:"stack"`
		} `json:"error"`
	}

	if err := r.postJSON(ctx, "/render", reqBody, &result); err != nil {
		return "", err
	}

	if result.Error != nil {
		if result.Error.Stack != "" {
			return "", fmt.Errorf("%s\n\nStack:\n%s", result.Error.Message, result.Error.Stack)
		}
		return "", fmt.Errorf("%s", result.Error.Message)
	}

	return result.HTML, nil
}

func (r *bunRuntime) Close() error {
	err := r.cmd.Process.Kill()
	_ = r.cmd.Wait()
	_ = os.Remove(r.socket)
	return err
}

func (r *bunRuntime) postJSON(ctx context.Context, endpoint string, body, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://localhost"+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("renderer returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func waitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for renderer socket at %s", path)
}
