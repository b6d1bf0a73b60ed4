package models

import "time"

// DownloadQueueItem is a pending download shared by every user who requested
// the same (item, translator, season, episode)
type DownloadQueueItem struct {
	ID           uint64 `boltholdKey:"ID"`
	ItemID       string `boltholdIndex:"ItemID"`
	TranslatorID string `boltholdIndex:"TranslatorID"`
	SeasonID     string
	EpisodeID    string

	ItemTitle       string
	TranslatorTitle string
	TranslatorArgs  map[string]string
	IsFilm          bool

	Subscribers Subscribers

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveRequest returns the request resolving this item's direct URLs
func (q *DownloadQueueItem) ResolveRequest() ResolveRequest {
	return ResolveRequest{
		ItemID:          q.ItemID,
		ItemTitle:       q.ItemTitle,
		TranslatorID:    q.TranslatorID,
		TranslatorTitle: q.TranslatorTitle,
		TranslatorArgs:  q.TranslatorArgs,
		IsFilm:          q.IsFilm,
		SeasonID:        q.SeasonID,
		EpisodeID:       q.EpisodeID,
	}
}

// Key returns the content key of the item
func (q *DownloadQueueItem) Key() string {
	return ContentKey(q.ItemID, q.TranslatorID, q.SeasonID, q.EpisodeID)
}

// DownloadedItem records a finished upload reusable through its media handle
type DownloadedItem struct {
	ID           uint64 `boltholdKey:"ID"`
	ItemID       string `boltholdIndex:"ItemID"`
	TranslatorID string `boltholdIndex:"TranslatorID"`
	SeasonID     string
	EpisodeID    string

	ItemTitle       string
	TranslatorTitle string
	TranslatorArgs  map[string]string
	IsFilm          bool

	Quality     string
	VideoFileID string // opaque Telegram file_id
	Width       int
	Height      int

	CreatedAt time.Time
}

// IsEpisode reports whether the item is a single series episode
func (d *DownloadedItem) IsEpisode() bool {
	return d.SeasonID != "" && d.EpisodeID != ""
}
