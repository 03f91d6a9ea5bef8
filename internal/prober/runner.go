// Package prober measures whether traffic actually egresses through an
// endpoint by spawning the external proxy runtime scoped to a local port
// and issuing a test request through it.
package prober

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/suprohub/novaprox/internal/filter"
	"github.com/suprohub/novaprox/internal/model"
)

type Runner struct {
	BinPath        string
	TestURL        string
	StartupTimeout time.Duration
	PreCheck       *filter.Pipeline // optional cheap TCP/TLS gate
}

func NewRunner(binPath, testURL string, startupTimeout time.Duration) *Runner {
	return &Runner{BinPath: binPath, TestURL: testURL, StartupTimeout: startupTimeout}
}

// Probe produces exactly one result for the endpoint. Every exit path
// (success, failure, timeout, cancellation) releases the local port, kills
// the runtime process, and removes the transient config file.
func (r *Runner) Probe(ctx context.Context, e *model.Endpoint) model.ProbeResult {
	log := slog.With("target", e.Addr(), "protocol", e.Protocol)

	fail := func(reason model.FailureReason) model.ProbeResult {
		if ctx.Err() != nil {
			reason = model.FailureTimeout
		}
		return model.ProbeResult{Endpoint: e, Reason: reason, At: time.Now()}
	}

	if r.PreCheck != nil {
		if reason := r.PreCheck.Check(e); reason != model.FailureNone {
			return fail(reason)
		}
	}

	// 1. Port Allocation
	port, release, err := claimPort()
	if err != nil {
		log.Error("local_port_allocation_failed", "error", err)
		return fail(model.FailureProcessSpawn)
	}
	defer release()

	// 2. Config Generation
	configData, err := GenerateConfig(e, port)
	if err != nil {
		log.Debug("config_generation_failed", "error", err)
		return fail(model.FailureProcessSpawn)
	}

	configName := filepath.Join(os.TempDir(), fmt.Sprintf("novaprox_%d_%s.json", port, e.Fingerprint()))
	if err := os.WriteFile(configName, configData, 0600); err != nil {
		log.Error("config_write_failed", "error", err)
		return fail(model.FailureProcessSpawn)
	}
	defer os.Remove(configName)

	// 3. Process Execution
	cmd := exec.CommandContext(ctx, r.BinPath, "run", "-c", configName)
	if err := cmd.Start(); err != nil {
		log.Debug("runtime_start_failed", "error", err)
		return fail(model.FailureProcessSpawn)
	}

	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait() // reap; CommandContext already kills on ctx expiry
	}()

	// 4. Wait for Binding
	if !waitForPort(ctx, port, r.StartupTimeout) {
		log.Debug("runtime_bind_timeout", "local_port", port)
		return fail(model.FailureProcessSpawn)
	}

	// 5. HTTP Probe
	start := time.Now()
	latency, err := r.measureLatency(ctx, port)
	if err != nil {
		log.Debug("http_probe_failed",
			"duration", time.Since(start),
			"error", err,
		)
		return fail(classify(err))
	}

	return model.ProbeResult{Endpoint: e, Latency: latency, At: time.Now()}
}

func (r *Runner) measureLatency(ctx context.Context, port int) (time.Duration, error) {
	proxyUrl, _ := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", port))
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyUrl),
			DisableKeepAlives: true,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.TestURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected_status_code_%d: %w", resp.StatusCode, errHandshake)
	}

	return time.Since(start), nil
}

var errHandshake = errors.New("handshake failed")

// classify maps a probe request error onto the failure taxonomy.
func classify(err error) model.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}
	if errors.Is(err, errHandshake) {
		return model.FailureHandshake
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return model.FailureHandshake
	}
	return model.FailureConnect
}

// waitForPort polls until the runtime's inbound accepts connections or
// the startup budget (or probe context) runs out.
func waitForPort(ctx context.Context, port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
