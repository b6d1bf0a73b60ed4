package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// StatusStore is the read side of the database used by the status endpoint
type StatusStore interface {
	GetQueueItems() ([]*models.DownloadQueueItem, error)
	GetAllTrackSeries() ([]*models.TrackSeries, error)
	GetDownloadedItems() ([]*models.DownloadedItem, error)
}

// CacheSizer reports the entry count of every registered cache
type CacheSizer interface {
	Sizes() map[string]int
}

// StatusHandler handles status requests
type StatusHandler struct {
	db            StatusStore
	caches        CacheSizer
	maxUploadSize int64
	startedAt     time.Time
	logger        *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db StatusStore, caches CacheSizer, maxUploadSize int64, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:            db,
		caches:        caches,
		maxUploadSize: maxUploadSize,
		startedAt:     time.Now(),
		logger:        logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	QueueLength      int            `json:"queue_length"`
	QueueSubscribers int            `json:"queue_subscribers"`
	OldestQueued     string         `json:"oldest_queued,omitempty"`
	TrackedSeries    int            `json:"tracked_series"`
	TrackSubscribers int            `json:"track_subscribers"`
	DownloadedItems  int            `json:"downloaded_items"`
	CacheEntries     map[string]int `json:"cache_entries"`
	MaxUploadSize    string         `json:"max_upload_size"`
	Started          string         `json:"started"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queue, err := h.db.GetQueueItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get queue items")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	series, err := h.db.GetAllTrackSeries()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get track series")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	downloaded, err := h.db.GetDownloadedItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get downloaded items")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		QueueLength:     len(queue),
		TrackedSeries:   len(series),
		DownloadedItems: len(downloaded),
		CacheEntries:    map[string]int{},
		MaxUploadSize:   humanize.IBytes(uint64(h.maxUploadSize)),
		Started:         humanize.Time(h.startedAt),
	}

	var oldest time.Time
	for _, item := range queue {
		response.QueueSubscribers += len(item.Subscribers)
		if oldest.IsZero() || item.CreatedAt.Before(oldest) {
			oldest = item.CreatedAt
		}
	}
	if !oldest.IsZero() {
		response.OldestQueued = humanize.Time(oldest)
	}

	for _, row := range series {
		response.TrackSubscribers += len(row.Subscribers)
	}

	if h.caches != nil {
		response.CacheEntries = h.caches.Sizes()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
