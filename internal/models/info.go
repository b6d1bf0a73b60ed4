package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Rating is one external score of a title
type Rating struct {
	Source string `json:"source"`
	Rating string `json:"rating"`
}

// ShortInfo is the short description shown for a search result
type ShortInfo struct {
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	Age           string   `json:"age"`
	Slogan        string   `json:"slogan"`
	ReleaseDate   string   `json:"release_date"`
	Country       string   `json:"country"`
	Director      string   `json:"director"`
	Genre         string   `json:"genre"`
	Ratings       []Rating `json:"ratings"`
	// IsFilm is nil when the upstream could not classify the title
	IsFilm *bool `json:"is_film"`
}

// TranslatorInfo is one voice-over offered for a title
type TranslatorInfo struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	AdditionalArguments map[string]string `json:"additional_arguments"`
}

// ItemInfo is the upstream answer for a title page URL
type ItemInfo struct {
	ShortInfo   ShortInfo        `json:"short_info"`
	Translators []TranslatorInfo `json:"translators"`
}

// Available reports whether the title can be offered for watching
func (i *ItemInfo) Available() bool {
	return i.ShortInfo.IsFilm != nil && len(i.Translators) > 0
}

// InfoKey returns the Short-Info Cache key of a title page URL, its last
// path segment
func InfoKey(rawURL string) string {
	return rawURL[strings.LastIndex(rawURL, "/")+1:]
}

// ItemIDFromURL returns the numeric prefix of the third path segment,
// "/films/fiction/1234-dyuna.html" -> "1234"
func ItemIDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid item URL: %w", err)
	}

	parts := strings.Split(u.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		return "", fmt.Errorf("no item id in %q", rawURL)
	}

	id, _, _ := strings.Cut(parts[3], "-")
	return id, nil
}
