package controllers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/arynyklas/HDRFilmsBot/internal/mp4"
	"github.com/arynyklas/HDRFilmsBot/internal/services/telegram"
	"github.com/arynyklas/HDRFilmsBot/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ProgressInterval is the minimum wall time between two progress edits
const ProgressInterval = 1500 * time.Millisecond

// ContentResolver returns resolved direct URLs, normally the Resolution Cache
type ContentResolver interface {
	Resolve(ctx context.Context, req models.ResolveRequest) (*models.ResolvedContent, error)
}

// Delivery is the chat channel the workers talk to users through
type Delivery interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SendVideoFile(ctx context.Context, upload telegram.VideoUpload) (string, error)
	SendVideoByID(ctx context.Context, chatID int64, fileID, caption string, replyTo int64) error
}

// Downloader fetches a URL into a local file, reporting percent progress
type Downloader interface {
	Download(ctx context.Context, url, out string, onProgress func(percent int)) error
}

// SizeProber returns the remote size of a URL
type SizeProber interface {
	ContentLength(ctx context.Context, url string) (int64, error)
}

// QueueConfig holds the download worker settings
type QueueConfig struct {
	TempDir         string
	MaxUploadSize   int64 // exclusive
	ArchiveChatID   int64
	PerMessageDelay time.Duration
}

// QueueController drains the download queue and serves enqueue requests
type QueueController struct {
	db         *models.Database
	resolver   ContentResolver
	delivery   Delivery
	downloader Downloader
	prober     SizeProber
	metrics    *metrics.Metrics
	cfg        QueueConfig
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *logrus.Logger
}

// NewQueueController creates a new queue controller
func NewQueueController(db *models.Database, resolver ContentResolver, delivery Delivery, downloader Downloader, prober SizeProber, m *metrics.Metrics, cfg QueueConfig, logger *logrus.Logger) *QueueController {
	return &QueueController{
		db:         db,
		resolver:   resolver,
		delivery:   delivery,
		downloader: downloader,
		prober:     prober,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepContext,
		logger:     logger,
	}
}

// EnqueueRequest asks for one piece of content to be sent as a video
type EnqueueRequest struct {
	Content    models.ResolveRequest
	Subscriber models.Subscriber
}

// EnqueueOutcome is either an existing upload or the queue row now holding the subscriber
type EnqueueOutcome struct {
	Downloaded *models.DownloadedItem
	Queue      *models.EnqueueResult
}

// Enqueue returns the stored upload when the content was already downloaded,
// otherwise adds the subscriber to the matching queue row or creates one
func (c *QueueController) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueOutcome, error) {
	content := req.Content

	downloaded, err := c.db.FindDownloaded(content.ItemID, content.TranslatorID, content.SeasonID, content.EpisodeID)
	switch {
	case err == nil:
		return &EnqueueOutcome{Downloaded: downloaded}, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to look up downloaded item: %w", err)
	}

	result, err := c.db.EnqueueDownload(&models.DownloadQueueItem{
		ItemID:          content.ItemID,
		TranslatorID:    content.TranslatorID,
		SeasonID:        content.SeasonID,
		EpisodeID:       content.EpisodeID,
		ItemTitle:       content.ItemTitle,
		TranslatorTitle: content.TranslatorTitle,
		TranslatorArgs:  content.TranslatorArgs,
		IsFilm:          content.IsFilm,
	}, req.Subscriber)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"queue_id": result.Item.ID,
		"key":      result.Item.Key(),
		"chat_id":  req.Subscriber.ChatID,
		"created":  result.Created,
		"added":    result.Added,
	}).Info("Download requested")

	return &EnqueueOutcome{Queue: result}, nil
}

// QueuedText is the status text shown while a request waits in the queue
func QueuedText() string {
	return textQueued
}

// SendDownloaded sends an existing upload to a chat by its media handle
func (c *QueueController) SendDownloaded(ctx context.Context, d *models.DownloadedItem, chatID, replyTo int64) error {
	err := c.delivery.SendVideoByID(ctx, chatID, d.VideoFileID, VideoCaption(d), replyTo)
	c.metrics.Delivery("video", err)
	return err
}

// ProcessNext handles one queue row end to end and reports whether a row
// was found. On error the row is left in place and retried next time.
func (c *QueueController) ProcessNext(ctx context.Context) (bool, error) {
	item, err := c.db.NextQueueItem()
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch queue item: %w", err)
	}

	log := c.logger.WithFields(logrus.Fields{
		"queue_id":      item.ID,
		"item_id":       item.ItemID,
		"translator_id": item.TranslatorID,
		"season_id":     item.SeasonID,
		"episode_id":    item.EpisodeID,
		"subscribers":   len(item.Subscribers),
	})
	log.Info("Processing download queue item")

	content, err := c.resolver.Resolve(ctx, item.ResolveRequest())
	if err != nil {
		c.metrics.Downloads.WithLabelValues("failed").Inc()
		return true, err
	}

	if content.URLs.Len() == 0 {
		log.Warn("No direct URLs, dropping queue item")
		return true, c.abandon(ctx, item)
	}

	quality, size, ok, err := SelectQuality(ctx, content.URLs, c.cfg.MaxUploadSize, c.prober)
	if err != nil {
		c.metrics.Downloads.WithLabelValues("failed").Inc()
		return true, fmt.Errorf("failed to probe qualities: %w", err)
	}
	if !ok {
		log.WithField("max_size", humanize.IBytes(uint64(c.cfg.MaxUploadSize))).Warn("No quality fits the upload limit, dropping queue item")
		return true, c.abandon(ctx, item)
	}

	log = log.WithFields(logrus.Fields{
		"quality": quality.Key,
		"size":    humanize.IBytes(uint64(size)),
	})
	log.Info("Quality selected")

	if err := c.download(ctx, item, quality, size, log); err != nil {
		c.metrics.Downloads.WithLabelValues("failed").Inc()
		return true, err
	}

	c.metrics.Downloads.WithLabelValues("completed").Inc()
	return true, nil
}

func (c *QueueController) download(ctx context.Context, item *models.DownloadQueueItem, quality models.Pair, size int64, log *logrus.Entry) error {
	c.editAll(ctx, item.Subscribers, downloadingText(quality.Key, 0))

	path := filepath.Join(c.cfg.TempDir, fmt.Sprintf("item_%s_%s.mp4", item.Key(), utils.FileLabel(quality.Key)))
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("Failed to remove temp file")
		}
	}()

	throttle := NewProgressThrottle(ProgressInterval, c.now)
	err := c.downloader.Download(ctx, quality.Value, path, func(percent int) {
		if throttle.Allow() {
			c.editAll(ctx, item.Subscribers, downloadingText(quality.Key, percent))
		}
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", item.Key(), err)
	}
	c.metrics.DownloadedBytes.Add(float64(size))

	c.editAll(ctx, item.Subscribers, uploadingText(quality.Key))

	res, found, err := mp4.ProbeFile(path, mp4.DefaultProbeSize)
	if err != nil {
		log.WithError(err).Warn("Failed to probe video resolution")
	}
	if found {
		log = log.WithFields(logrus.Fields{"width": res.Width, "height": res.Height})
	}

	fileID, err := c.delivery.SendVideoFile(ctx, telegram.VideoUpload{
		ChatID:  c.cfg.ArchiveChatID,
		Path:    path,
		Caption: archiveCaption(item, quality.Key),
		Width:   res.Width,
		Height:  res.Height,
	})
	c.metrics.Delivery("archive_upload", err)
	if err != nil {
		return fmt.Errorf("upload %s: %w", item.Key(), err)
	}

	downloaded := &models.DownloadedItem{
		ItemID:          item.ItemID,
		TranslatorID:    item.TranslatorID,
		SeasonID:        item.SeasonID,
		EpisodeID:       item.EpisodeID,
		ItemTitle:       item.ItemTitle,
		TranslatorTitle: item.TranslatorTitle,
		TranslatorArgs:  item.TranslatorArgs,
		IsFilm:          item.IsFilm,
		Quality:         quality.Key,
		VideoFileID:     fileID,
		Width:           res.Width,
		Height:          res.Height,
	}

	final, err := c.db.CompleteDownload(item.ID, downloaded)
	if err != nil {
		return err
	}
	log.WithField("file_id", fileID).Info("Download completed")

	c.deliverAll(ctx, final.Subscribers, downloaded)
	return nil
}

// abandon drops a queue row that can never succeed and tells its subscribers
func (c *QueueController) abandon(ctx context.Context, item *models.DownloadQueueItem) error {
	final, err := c.db.AbandonDownload(item.ID)
	if err != nil {
		return err
	}
	c.metrics.Downloads.WithLabelValues("unavailable").Inc()
	c.editAll(ctx, final.Subscribers, textNotAvailable)
	return nil
}

// editAll rewrites every subscriber's status message. Failures only affect
// that subscriber.
func (c *QueueController) editAll(ctx context.Context, subs models.Subscribers, text string) {
	for _, sub := range subs {
		if sub.StatusMessageID != 0 {
			err := c.delivery.EditMessageText(ctx, sub.ChatID, sub.StatusMessageID, text)
			c.metrics.Delivery("status", err)
			if err != nil {
				c.logger.WithError(err).WithField("chat_id", sub.ChatID).Debug("Failed to edit status message")
			}
		}
		if err := c.sleep(ctx, c.cfg.PerMessageDelay); err != nil {
			return
		}
	}
}

// deliverAll replaces each subscriber's status message with the video
func (c *QueueController) deliverAll(ctx context.Context, subs models.Subscribers, d *models.DownloadedItem) {
	caption := VideoCaption(d)

	for _, sub := range subs {
		if sub.StatusMessageID != 0 {
			if err := c.delivery.DeleteMessage(ctx, sub.ChatID, sub.StatusMessageID); err != nil {
				c.logger.WithError(err).WithField("chat_id", sub.ChatID).Debug("Failed to delete status message")
			}
			if err := c.sleep(ctx, c.cfg.PerMessageDelay); err != nil {
				return
			}
		}

		err := c.delivery.SendVideoByID(ctx, sub.ChatID, d.VideoFileID, caption, sub.OriginMessageID)
		c.metrics.Delivery("video", err)
		if err != nil {
			c.logger.WithError(err).WithField("chat_id", sub.ChatID).Warn("Failed to deliver video")
		}

		if err := c.sleep(ctx, c.cfg.PerMessageDelay); err != nil {
			return
		}
	}
}

// SelectQuality walks qualities best to worst and returns the first whose
// remote size is below ceiling, with that size. A probe error aborts the walk.
func SelectQuality(ctx context.Context, urls *models.OrderedMap, ceiling int64, prober SizeProber) (models.Pair, int64, bool, error) {
	for _, candidate := range utils.RankQualities(urls) {
		size, err := prober.ContentLength(ctx, candidate.Value)
		if err != nil {
			return models.Pair{}, 0, false, fmt.Errorf("quality %s: %w", candidate.Key, err)
		}
		if size < ceiling {
			return candidate, size, true, nil
		}
	}
	return models.Pair{}, 0, false, nil
}

// ProgressThrottle lets through at most one event per interval. The first
// event is allowed only once interval has passed since creation.
type ProgressThrottle struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

// NewProgressThrottle creates a throttle starting now
func NewProgressThrottle(interval time.Duration, now func() time.Time) *ProgressThrottle {
	return &ProgressThrottle{interval: interval, now: now, last: now()}
}

// Allow reports whether an event may pass and records it if so
func (t *ProgressThrottle) Allow() bool {
	now := t.now()
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
