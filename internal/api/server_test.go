package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arynyklas/HDRFilmsBot/internal/api/handlers"
	"github.com/arynyklas/HDRFilmsBot/internal/config"
	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSizes map[string]int

func (s staticSizes) Sizes() map[string]int { return s }

type staticInfo struct {
	info *models.ItemInfo
	err  error
}

func (s staticInfo) Lookup(ctx context.Context, url string) (*models.ItemInfo, error) {
	return s.info, s.err
}

func newTestServer(t *testing.T) (*Server, *models.Database, *metrics.Metrics) {
	t.Helper()
	return newTestServerWithInfo(t, staticInfo{err: errors.New("no upstream")})
}

func newTestServerWithInfo(t *testing.T, info handlers.InfoLookup) (*Server, *models.Database, *metrics.Metrics) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := &config.Config{ServerPort: "0", MaxFileUploadSize: 2000 << 20}
	return NewServer(cfg, db, staticSizes{"rezka_data": 3}, info, reg, logger), db, m
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatus(t *testing.T) {
	s, db, _ := newTestServer(t)

	_, err := db.EnqueueDownload(&models.DownloadQueueItem{ItemID: "1", TranslatorID: "2"}, models.Subscriber{ChatID: 1})
	require.NoError(t, err)
	_, err = db.EnqueueDownload(&models.DownloadQueueItem{ItemID: "1", TranslatorID: "2"}, models.Subscriber{ChatID: 2})
	require.NoError(t, err)
	_, err = db.TrackSubscribe(&models.TrackSeries{ItemID: "7", TranslatorID: "2"}, models.Subscriber{ChatID: 1})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.QueueLength)
	assert.Equal(t, 2, status.QueueSubscribers)
	assert.NotEmpty(t, status.OldestQueued)
	assert.Equal(t, 1, status.TrackedSeries)
	assert.Equal(t, 1, status.TrackSubscribers)
	assert.Zero(t, status.DownloadedItems)
	assert.Equal(t, map[string]int{"rezka_data": 3}, status.CacheEntries)
	assert.Equal(t, "2.0 GiB", status.MaxUploadSize)
}

func TestMetrics(t *testing.T) {
	s, _, m := newTestServer(t)
	m.SeriesUpdates.Inc()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hdrfilmsbot_series_updates_total 1")
}

func TestInfo(t *testing.T) {
	isFilm := false
	s, db, _ := newTestServerWithInfo(t, staticInfo{info: &models.ItemInfo{
		ShortInfo:   models.ShortInfo{Title: "Сёгун", IsFilm: &isFilm},
		Translators: []models.TranslatorInfo{{ID: "238", Title: "HDRezka Studio"}},
	}})
	for _, sub := range []struct {
		translator string
		chatID     int64
	}{{"238", 1}, {"56", 1}, {"56", 2}} {
		_, err := db.TrackSubscribe(&models.TrackSeries{ItemID: "77", TranslatorID: sub.translator}, models.Subscriber{ChatID: sub.chatID})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info?url=https://rezka.ag/series/drama/77-shogun.html", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info handlers.InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "77", info.ItemID)
	assert.True(t, info.Available)
	assert.Equal(t, 2, info.Trackers, "chats are counted once across translators")
	assert.Equal(t, "Сёгун", info.ShortInfo.Title)
	require.Len(t, info.Translators, 1)
}

func TestInfoErrors(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info?url=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info?url=https://rezka.ag/films/fiction/1-a.html", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
