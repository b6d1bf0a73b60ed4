package models

import "time"

// TrackSeries is a series/translator pair watched for new episodes
type TrackSeries struct {
	ID           uint64 `boltholdKey:"ID"`
	ItemID       string `boltholdIndex:"ItemID"`
	TranslatorID string `boltholdIndex:"TranslatorID"`

	ItemTitle       string
	TranslatorTitle string
	TranslatorArgs  map[string]string

	Subscribers Subscribers

	// Last position already notified, empty until first observation
	LastSeasonID  string
	LastEpisodeID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveRequest returns the full-listing request for the series
func (t *TrackSeries) ResolveRequest() ResolveRequest {
	return ResolveRequest{
		ItemID:          t.ItemID,
		ItemTitle:       t.ItemTitle,
		TranslatorID:    t.TranslatorID,
		TranslatorTitle: t.TranslatorTitle,
		TranslatorArgs:  t.TranslatorArgs,
	}
}

// HasPosition reports whether a last season and episode are recorded
func (t *TrackSeries) HasPosition() bool {
	return t.LastSeasonID != "" && t.LastEpisodeID != ""
}
