package wget

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Prober reads the remote size of direct URLs
type Prober struct {
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	logger     *logrus.Logger
}

// NewProber creates a prober following redirects with a per-request timeout
func NewProber(logger *logrus.Logger) *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
		logger: logger,
	}
}

// ContentLength issues a HEAD request and returns the Content-Length of the
// final response. Missing lengths and 4xx answers are not retried.
func (p *Prober) ContentLength(ctx context.Context, url string) (int64, error) {
	var length int64
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("HEAD %s: %w", url, err)
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("HEAD %s: status %d", url, resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("HEAD %s: status %d", url, resp.StatusCode))
		case resp.ContentLength < 0:
			return backoff.Permanent(fmt.Errorf("HEAD %s: no content length", url))
		}

		length = resp.ContentLength
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), 2), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return 0, err
	}

	p.logger.WithFields(logrus.Fields{
		"url":  url,
		"size": length,
	}).Debug("Probed content length")

	return length, nil
}
