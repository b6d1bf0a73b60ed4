package controllers

import (
	"fmt"
	"html"
	"strings"

	"github.com/arynyklas/HDRFilmsBot/internal/models"
)

// User-facing messages, HTML parse mode
const (
	textQueued         = "🔜 В очереди на загрузку..."
	textDownloading    = "📤 Видео загружается в качестве %s ... %d%%"
	textUploading      = "📤 Видео уже загружено и отправляется в качестве %s ..."
	textNotAvailable   = "Фильм/сериал в настоящее время недоступен!"
	textVideoCaption   = "🎬 <i>%s</i>\n\n%sОзвучка: <i>%s</i>\nВ качестве <i>%s</i>"
	textCaptionEpisode = "Сезон: %s, серия: %s\n"
	textUpdatesHeader  = "🔔 Оповещения о сериале \"<i>%s</i>\":\n%s"
	textEpisode        = "— 🆕 Серия %s (%s сезон)"
	textEpisodes       = "— 🆕 Серия %s-%s (%s сезон)"
	textSeasonEpisode  = "— 🆕 Серия %s (❇️ %s сезон)"
	textSeasonEpisodes = "— 🆕 Серия %s-%s (❇️ %s сезон)"
)

func downloadingText(quality string, percent int) string {
	return fmt.Sprintf(textDownloading, quality, percent)
}

func uploadingText(quality string) string {
	return fmt.Sprintf(textUploading, quality)
}

// archiveCaption is the plain caption of the single upload to the archive chat
func archiveCaption(item *models.DownloadQueueItem, quality string) string {
	caption := item.ItemTitle + "\n" + item.TranslatorTitle + "\n" + quality
	if item.SeasonID != "" && item.EpisodeID != "" {
		caption += fmt.Sprintf("\ns%se%s", item.SeasonID, item.EpisodeID)
	}
	return caption
}

// VideoCaption is the caption subscribers receive with a downloaded video
func VideoCaption(d *models.DownloadedItem) string {
	episode := ""
	if d.IsEpisode() {
		episode = fmt.Sprintf(textCaptionEpisode, d.SeasonID, d.EpisodeID)
	}
	return fmt.Sprintf(textVideoCaption,
		html.EscapeString(d.ItemTitle),
		episode,
		html.EscapeString(d.TranslatorTitle),
		html.EscapeString(d.Quality),
	)
}

// String renders one update line
func (f Fragment) String() string {
	single := f.Count == 1
	switch {
	case f.NewSeason && single:
		return fmt.Sprintf(textSeasonEpisode, f.EpisodeTo, f.Season)
	case f.NewSeason:
		return fmt.Sprintf(textSeasonEpisodes, f.EpisodeFrom, f.EpisodeTo, f.Season)
	case single:
		return fmt.Sprintf(textEpisode, f.EpisodeTo, f.Season)
	default:
		return fmt.Sprintf(textEpisodes, f.EpisodeFrom, f.EpisodeTo, f.Season)
	}
}

// FormatUpdate joins the fragments of one series into a notification
func FormatUpdate(title string, fragments []Fragment) string {
	lines := make([]string, 0, len(fragments))
	for _, f := range fragments {
		lines = append(lines, f.String())
	}
	return fmt.Sprintf(textUpdatesHeader, html.EscapeString(title), strings.Join(lines, "\n"))
}
