package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// The LangGraph dev server reports readiness on /ok.
const (
	readyPath     = "/ok"
	probeInterval = 250 * time.Millisecond
	probeTimeout  = 2 * time.Second
)

// WaitReady polls baseURL's readiness endpoint until it answers 200,
// the timeout elapses, or ctx is cancelled.
func WaitReady(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: probeTimeout}
	url := baseURL + readyPath

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build probe request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready: %w", baseURL, ctx.Err())
		case <-ticker.C:
		}
	}
}
