package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/sirupsen/logrus"
)

// InfoLookup returns the cached description of a title page
type InfoLookup interface {
	Lookup(ctx context.Context, url string) (*models.ItemInfo, error)
}

// TrackCounter counts the chats tracking a title
type TrackCounter interface {
	TrackSubscriberCount(itemID string) (int, error)
}

// InfoHandler serves the short info of a title page
type InfoHandler struct {
	info     InfoLookup
	trackers TrackCounter
	logger   *logrus.Logger
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(info InfoLookup, trackers TrackCounter, logger *logrus.Logger) *InfoHandler {
	return &InfoHandler{info: info, trackers: trackers, logger: logger}
}

// InfoResponse represents the info response
type InfoResponse struct {
	ItemID      string                  `json:"item_id"`
	Available   bool                    `json:"available"`
	Trackers    int                     `json:"trackers"`
	ShortInfo   models.ShortInfo        `json:"short_info"`
	Translators []models.TranslatorInfo `json:"translators"`
}

// ServeHTTP handles GET /info?url=<title page>
func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	url := r.URL.Query().Get("url")
	itemID, err := models.ItemIDFromURL(url)
	if err != nil {
		http.Error(w, "Invalid url parameter", http.StatusBadRequest)
		return
	}

	info, err := h.info.Lookup(r.Context(), url)
	if err != nil {
		h.logger.WithError(err).WithField("url", url).Error("Failed to look up short info")
		http.Error(w, "Upstream lookup failed", http.StatusBadGateway)
		return
	}

	trackers, err := h.trackers.TrackSubscriberCount(itemID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count trackers")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(InfoResponse{
		ItemID:      itemID,
		Available:   info.Available(),
		Trackers:    trackers,
		ShortInfo:   info.ShortInfo,
		Translators: info.Translators,
	})
}
