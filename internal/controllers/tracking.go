package controllers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/arynyklas/HDRFilmsBot/internal/services/rezka"
	"github.com/arynyklas/HDRFilmsBot/internal/utils"
	"github.com/sirupsen/logrus"
)

// TrackPageSize is the number of tracking rows checked per page
const TrackPageSize = 100

// Notifier sends plain text messages
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error)
}

// TrackingConfig holds the series checker settings
type TrackingConfig struct {
	PerItemDelay    time.Duration // after a seeded or failed row
	PerMessageDelay time.Duration // between notifications
}

// TrackingController checks tracked series for new episodes and serves
// track/untrack requests
type TrackingController struct {
	db       *models.Database
	resolver ContentResolver
	notifier Notifier
	metrics  *metrics.Metrics
	cfg      TrackingConfig
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *logrus.Logger
}

// NewTrackingController creates a new tracking controller
func NewTrackingController(db *models.Database, resolver ContentResolver, notifier Notifier, m *metrics.Metrics, cfg TrackingConfig, logger *logrus.Logger) *TrackingController {
	return &TrackingController{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		sleep:    sleepContext,
		logger:   logger,
	}
}

// Fragment is one line of a series update
type Fragment struct {
	NewSeason   bool   // the episodes belong to a season after the last known one
	Season      string // display number
	EpisodeFrom string // display numbers, may be empty or repeat for untitled episodes
	EpisodeTo   string
	Count       int // new episodes covered, one renders as a single-episode line
}

// DiffResult is what changed since the last known position
type DiffResult struct {
	Fragments     []Fragment
	LastSeasonID  string
	LastEpisodeID string
}

// Notification is one update text bound for every subscriber of a row
type Notification struct {
	SeriesID    uint64
	Text        string
	Subscribers models.Subscribers
}

// TrackRequest asks for a series/translator to be watched by a chat
type TrackRequest struct {
	ItemID          string
	ItemTitle       string
	TranslatorID    string
	TranslatorTitle string
	TranslatorArgs  map[string]string
	ChatID          int64
	OriginMessageID int64
}

// Track subscribes the chat to the series, creating the row if needed
func (c *TrackingController) Track(ctx context.Context, req TrackRequest) (*models.TrackResult, error) {
	result, err := c.db.TrackSubscribe(&models.TrackSeries{
		ItemID:          req.ItemID,
		ItemTitle:       req.ItemTitle,
		TranslatorID:    req.TranslatorID,
		TranslatorTitle: req.TranslatorTitle,
		TranslatorArgs:  req.TranslatorArgs,
	}, models.Subscriber{ChatID: req.ChatID, OriginMessageID: req.OriginMessageID})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"series_id":     result.Series.ID,
		"item_id":       req.ItemID,
		"translator_id": req.TranslatorID,
		"chat_id":       req.ChatID,
		"created":       result.Created,
		"added":         result.Added,
	}).Info("Series tracked")

	return result, nil
}

// Untrack removes the chat from the series
func (c *TrackingController) Untrack(ctx context.Context, itemID, translatorID string, chatID int64) (bool, error) {
	return c.db.TrackUnsubscribe(itemID, translatorID, chatID)
}

// IsTracking reports whether the chat tracks the item with any translator
func (c *TrackingController) IsTracking(ctx context.Context, itemID string, chatID int64) (bool, error) {
	return c.db.IsTracking(itemID, chatID)
}

// RunCycle prunes and merges tracking rows, checks every row for new
// episodes page by page, then sends the collected notifications
func (c *TrackingController) RunCycle(ctx context.Context) error {
	start := time.Now()

	plan, err := c.db.MaintainTrackSeries(MergeTrackSeries)
	if err != nil {
		return err
	}
	if len(plan.Deletes) > 0 || len(plan.Updates) > 0 {
		c.logger.WithFields(logrus.Fields{
			"deleted": len(plan.Deletes),
			"merged":  len(plan.Updates),
		}).Info("Track series cleaned up")
	}

	var (
		notifications []Notification
		afterID       uint64
		checked       int
	)
	for {
		rows, hasMore, err := c.db.TrackSeriesPage(afterID, TrackPageSize)
		if err != nil {
			return fmt.Errorf("failed to fetch track series page: %w", err)
		}

		var moved []*models.TrackSeries
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			checked++

			notification, changed := c.checkSeries(ctx, row)
			if changed {
				moved = append(moved, row)
			}
			if notification != nil {
				notifications = append(notifications, *notification)
			}
		}

		if err := c.db.UpdateTrackPositions(moved); err != nil {
			return err
		}

		if !hasMore || len(rows) == 0 {
			break
		}
		afterID = rows[len(rows)-1].ID
	}

	c.deliver(ctx, notifications)

	c.metrics.TrackCycleTime.Observe(time.Since(start).Seconds())
	c.logger.WithFields(logrus.Fields{
		"checked":       checked,
		"notifications": len(notifications),
		"duration":      time.Since(start).String(),
	}).Info("Track series cycle completed")

	return nil
}

// checkSeries resolves one row and advances its position in memory. It
// reports whether the position changed.
func (c *TrackingController) checkSeries(ctx context.Context, row *models.TrackSeries) (*Notification, bool) {
	log := c.logger.WithFields(logrus.Fields{
		"series_id":       row.ID,
		"item_id":         row.ItemID,
		"translator_id":   row.TranslatorID,
		"last_season_id":  row.LastSeasonID,
		"last_episode_id": row.LastEpisodeID,
	})
	log.Debug("Checking track series")

	content, err := c.resolver.Resolve(ctx, row.ResolveRequest())
	if err != nil {
		if rezka.IsPremium(err) {
			log.Debug("Series requires premium, skipping")
		} else {
			log.WithError(err).Error("Failed to resolve tracked series")
		}
		_ = c.sleep(ctx, c.cfg.PerItemDelay)
		return nil, false
	}

	if !content.HasListing() {
		return nil, false
	}

	if !row.HasPosition() {
		seasonID, episodeID, ok := latestPosition(content)
		if !ok {
			return nil, false
		}
		row.LastSeasonID, row.LastEpisodeID = seasonID, episodeID
		log.WithFields(logrus.Fields{"season_id": seasonID, "episode_id": episodeID}).Info("Track series position seeded")
		_ = c.sleep(ctx, c.cfg.PerItemDelay)
		return nil, true
	}

	diff, ok := DiffEpisodes(content, row.LastSeasonID, row.LastEpisodeID)
	if !ok {
		// The recorded position vanished from the listing; restart from the newest episode
		seasonID, episodeID, found := latestPosition(content)
		if !found {
			return nil, false
		}
		log.Warn("Last known position not in listing, reseeding")
		row.LastSeasonID, row.LastEpisodeID = seasonID, episodeID
		return nil, true
	}
	if len(diff.Fragments) == 0 {
		return nil, false
	}

	row.LastSeasonID, row.LastEpisodeID = diff.LastSeasonID, diff.LastEpisodeID
	c.metrics.SeriesUpdates.Inc()
	log.WithField("fragments", len(diff.Fragments)).Info("New episodes found")

	return &Notification{
		SeriesID:    row.ID,
		Text:        FormatUpdate(row.ItemTitle, diff.Fragments),
		Subscribers: row.Subscribers,
	}, true
}

// deliver sends every notification to every subscriber, skipping failures
func (c *TrackingController) deliver(ctx context.Context, notifications []Notification) {
	for _, n := range notifications {
		for _, sub := range n.Subscribers {
			_, err := c.notifier.SendMessage(ctx, sub.ChatID, n.Text, sub.OriginMessageID)
			c.metrics.Delivery("series_update", err)
			if err != nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"series_id": n.SeriesID,
					"chat_id":   sub.ChatID,
				}).Debug("Failed to send series update")
			}
			if err := c.sleep(ctx, c.cfg.PerMessageDelay); err != nil {
				return
			}
		}
	}
}

// MergeTrackSeries plans the cleanup of tracking rows: rows without
// subscribers are deleted, and rows sharing item and translator collapse
// into the lowest ID which receives the union of their subscribers.
func MergeTrackSeries(rows []*models.TrackSeries) models.TrackMaintenancePlan {
	var plan models.TrackMaintenancePlan

	sorted := make([]*models.TrackSeries, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type seriesKey struct{ item, translator string }
	canonical := make(map[seriesKey]*models.TrackSeries)
	updated := make(map[uint64]bool)

	for _, row := range sorted {
		if len(row.Subscribers) == 0 {
			plan.Deletes = append(plan.Deletes, row.ID)
			continue
		}

		key := seriesKey{row.ItemID, row.TranslatorID}
		first, ok := canonical[key]
		if !ok {
			canonical[key] = row
			continue
		}

		if !updated[first.ID] {
			updated[first.ID] = true
			plan.Updates = append(plan.Updates, first)
		}
		first.Subscribers = first.Subscribers.Union(row.Subscribers)
		plan.Deletes = append(plan.Deletes, row.ID)
	}

	return plan
}

// DiffEpisodes compares the listing against the last known position. It
// reports false when that position is not part of the listing.
func DiffEpisodes(content *models.ResolvedContent, lastSeasonID, lastEpisodeID string) (DiffResult, bool) {
	seasonIndex := content.Seasons.IndexOf(lastSeasonID)
	episodes := content.SeasonEpisodes(lastSeasonID)
	episodeIndex := episodes.IndexOf(lastEpisodeID)
	if seasonIndex < 0 || episodeIndex < 0 {
		return DiffResult{}, false
	}

	result := DiffResult{LastSeasonID: lastSeasonID, LastEpisodeID: lastEpisodeID}
	seasonTitle, _ := content.Seasons.Get(lastSeasonID)

	if episodeIndex < episodes.Len()-1 {
		first := episodes.At(episodeIndex + 1)
		last, _ := episodes.Last()
		result.Fragments = append(result.Fragments, Fragment{
			Season:      utils.ExtractDigits(seasonTitle),
			EpisodeFrom: utils.ExtractDigits(first.Value),
			EpisodeTo:   utils.ExtractDigits(last.Value),
			Count:       episodes.Len() - 1 - episodeIndex,
		})
		result.LastEpisodeID = last.Key
	}

	for i := seasonIndex + 1; i < content.Seasons.Len(); i++ {
		season := content.Seasons.At(i)
		seasonEpisodes := content.SeasonEpisodes(season.Key)
		if seasonEpisodes.Len() == 0 {
			continue
		}

		first := seasonEpisodes.At(0)
		last, _ := seasonEpisodes.Last()
		result.Fragments = append(result.Fragments, Fragment{
			NewSeason:   true,
			Season:      utils.ExtractDigits(season.Value),
			EpisodeFrom: utils.ExtractDigits(first.Value),
			EpisodeTo:   utils.ExtractDigits(last.Value),
			Count:       seasonEpisodes.Len(),
		})
		result.LastSeasonID = season.Key
		result.LastEpisodeID = last.Key
	}

	return result, true
}

// latestPosition returns the newest episode of the newest season that has episodes
func latestPosition(content *models.ResolvedContent) (string, string, bool) {
	for i := content.Seasons.Len() - 1; i >= 0; i-- {
		season := content.Seasons.At(i)
		if last, ok := content.SeasonEpisodes(season.Key).Last(); ok {
			return season.Key, last.Key, true
		}
	}
	return "", "", false
}
