package models

import "strings"

// ResolveRequest identifies one resolvable unit of content.
// Empty SeasonID/EpisodeID mean the full listing (or a film).
type ResolveRequest struct {
	ItemID          string
	ItemTitle       string
	TranslatorID    string
	TranslatorTitle string
	TranslatorArgs  map[string]string
	IsFilm          bool
	SeasonID        string
	EpisodeID       string
}

// Key returns the Resolution Cache key of the request
func (r ResolveRequest) Key() string {
	return ContentKey(r.ItemID, r.TranslatorID, r.SeasonID, r.EpisodeID)
}

// ContentKey builds itemID_translatorID[_seasonID][_episodeID]
func ContentKey(itemID, translatorID, seasonID, episodeID string) string {
	var b strings.Builder
	b.WriteString(itemID)
	b.WriteByte('_')
	b.WriteString(translatorID)
	if seasonID != "" {
		b.WriteByte('_')
		b.WriteString(seasonID)
	}
	if episodeID != "" {
		b.WriteByte('_')
		b.WriteString(episodeID)
	}
	return b.String()
}

// DirectURLs is the upstream answer for a ResolveRequest
type DirectURLs struct {
	Seasons           *OrderedMap            `json:"seasons"`
	Episodes          map[string]*OrderedMap `json:"episodes"`
	URLs              *OrderedMap            `json:"urls"`
	Subtitles         map[string]string      `json:"subtitles"`
	SubtitleLanguages map[string]string      `json:"subtitle_languages"`
}

// ResolvedContent is an immutable cached resolution result
type ResolvedContent struct {
	ItemID          string
	ItemTitle       string
	TranslatorID    string
	TranslatorTitle string
	TranslatorArgs  map[string]string
	IsFilm          bool
	SeasonID        string
	EpisodeID       string

	Seasons           *OrderedMap
	Episodes          map[string]*OrderedMap
	URLs              *OrderedMap
	Subtitles         map[string]string
	SubtitleLanguages map[string]string
}

// NewResolvedContent combines the request identity with the upstream answer
func NewResolvedContent(req ResolveRequest, resp *DirectURLs) *ResolvedContent {
	rc := &ResolvedContent{
		ItemID:          req.ItemID,
		ItemTitle:       req.ItemTitle,
		TranslatorID:    req.TranslatorID,
		TranslatorTitle: req.TranslatorTitle,
		TranslatorArgs:  copyArgs(req.TranslatorArgs),
		IsFilm:          req.IsFilm,
		SeasonID:        req.SeasonID,
		EpisodeID:       req.EpisodeID,
	}
	if resp != nil {
		rc.Seasons = resp.Seasons
		rc.Episodes = resp.Episodes
		rc.URLs = resp.URLs
		rc.Subtitles = resp.Subtitles
		rc.SubtitleLanguages = resp.SubtitleLanguages
	}
	return rc
}

// Key returns the cache key of the content
func (c *ResolvedContent) Key() string {
	return ContentKey(c.ItemID, c.TranslatorID, c.SeasonID, c.EpisodeID)
}

// HasListing reports whether seasons and episodes are both known
func (c *ResolvedContent) HasListing() bool {
	return c.Seasons.Len() > 0 && len(c.Episodes) > 0
}

// SeasonEpisodes returns the ordered episodes of a season, nil if unknown
func (c *ResolvedContent) SeasonEpisodes(seasonID string) *OrderedMap {
	if c.Episodes == nil {
		return nil
	}
	return c.Episodes[seasonID]
}

func copyArgs(args map[string]string) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
