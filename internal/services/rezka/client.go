package rezka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/config"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

const maxAttempts = 3

const premiumMarker = "premium content"

// APIError is a rejection returned by the Rezka API
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rezka API returned status %d: %s", e.StatusCode, e.Description)
}

// IsPremium reports whether the content needs a paid tier. Casers are
// stateful, so one is built per call.
func (e *APIError) IsPremium() bool {
	return strings.Contains(cases.Fold().String(e.Description), premiumMarker)
}

// IsPremium reports whether err carries a paid-tier rejection
func IsPremium(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsPremium()
}

// directURLsRequest is the body of POST /get_direct_urls
type directURLsRequest struct {
	ID                  string            `json:"id"`
	IsFilm              bool              `json:"is_film"`
	TranslatorID        string            `json:"translator_id"`
	TranslatorArguments map[string]string `json:"translator_additional_arguments"`
	SeasonID            string            `json:"season_id,omitempty"`
	EpisodeID           string            `json:"episode_id,omitempty"`
}

// infoRequest is the body of POST /get_info_and_translators
type infoRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Description string `json:"description"`
	Detail      string `json:"detail"`
}

// Client wraps direct Rezka API HTTP calls
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	logger     *logrus.Logger
}

// NewClient creates a new Rezka API client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.RezkaAPIURL == "" {
		return nil, fmt.Errorf("rezka API URL is required")
	}
	if cfg.RezkaAPIKey == "" {
		return nil, fmt.Errorf("rezka API key is required")
	}

	timeout := cfg.RezkaTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.RezkaAPIURL, "/"),
		apiKey:  cfg.RezkaAPIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
		logger: logger,
	}, nil
}

// GetDirectURLs resolves seasons, episodes and quality URLs for a title
func (c *Client) GetDirectURLs(ctx context.Context, req models.ResolveRequest) (*models.DirectURLs, error) {
	args := req.TranslatorArgs
	if args == nil {
		// the API expects an object, never null
		args = map[string]string{}
	}

	body, err := json.Marshal(directURLsRequest{
		ID:                  req.ItemID,
		IsFilm:              req.IsFilm,
		TranslatorID:        req.TranslatorID,
		TranslatorArguments: args,
		SeasonID:            req.SeasonID,
		EpisodeID:           req.EpisodeID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	log := c.logger.WithFields(logrus.Fields{
		"item_id":       req.ItemID,
		"translator_id": req.TranslatorID,
		"season_id":     req.SeasonID,
		"episode_id":    req.EpisodeID,
	})

	var result models.DirectURLs
	if err := c.call(ctx, "/get_direct_urls", body, &result, log); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetInfoAndTranslators fetches the short description of the title behind
// url together with its available voice-overs
func (c *Client) GetInfoAndTranslators(ctx context.Context, url string) (*models.ItemInfo, error) {
	body, err := json.Marshal(infoRequest{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var result models.ItemInfo
	if err := c.call(ctx, "/get_info_and_translators", body, &result, c.logger.WithField("url", url)); err != nil {
		return nil, err
	}
	return &result, nil
}

// call posts body to path and decodes the answer into out. Network
// failures and 5xx answers are retried, any other rejection is returned as
// *APIError right away.
func (c *Client) call(ctx context.Context, path string, body []byte, out any, log *logrus.Entry) error {
	attempt := 0
	operation := func() error {
		attempt++
		log.WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt,
		}).Debug("Requesting Rezka API")

		err := c.post(ctx, path, body, out)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.WithError(err).Warn("Rezka API request failed")
			return err
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxAttempts-1), ctx)
	return backoff.Retry(operation, b)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "hdrfilmsbot/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rezka API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return newAPIError(resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, raw []byte) *APIError {
	var er errorResponse
	description := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &er) == nil {
		switch {
		case er.Description != "":
			description = er.Description
		case er.Detail != "":
			description = er.Detail
		}
	}
	return &APIError{StatusCode: status, Description: description}
}
