package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when no record matches
var ErrNotFound = bolthold.ErrNotFound

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Ping reports whether the store can still open a read transaction
func (db *Database) Ping() error {
	return db.store.Bolt().View(func(tx *bbolt.Tx) error { return nil })
}

func (db *Database) update(fn func(tx *bbolt.Tx) error) error {
	return db.store.Bolt().Update(fn)
}

func contentQuery(itemID, translatorID string) *bolthold.Query {
	return bolthold.Where("ItemID").Eq(itemID).And("TranslatorID").Eq(translatorID)
}

// Download queue operations

// EnqueueResult describes what EnqueueDownload did
type EnqueueResult struct {
	Item    *DownloadQueueItem
	Created bool // a new row was inserted
	Added   bool // the subscriber was appended (always true when Created)
}

// EnqueueDownload appends sub to the queue row matching item's content or
// inserts item as a new row, in one transaction
func (db *Database) EnqueueDownload(item *DownloadQueueItem, sub Subscriber) (*EnqueueResult, error) {
	var result EnqueueResult

	err := db.update(func(tx *bbolt.Tx) error {
		var rows []*DownloadQueueItem
		if err := db.store.TxFind(tx, &rows, contentQuery(item.ItemID, item.TranslatorID)); err != nil {
			return err
		}

		for _, row := range rows {
			if row.SeasonID != item.SeasonID || row.EpisodeID != item.EpisodeID {
				continue
			}
			result.Item = row
			if row.Subscribers.Add(sub) {
				result.Added = true
				row.UpdatedAt = time.Now()
				return db.store.TxUpdate(tx, row.ID, row)
			}
			return nil
		}

		now := time.Now()
		item.Subscribers = Subscribers{sub}
		item.CreatedAt = now
		item.UpdatedAt = now
		if err := db.store.TxInsert(tx, bolthold.NextSequence(), item); err != nil {
			return err
		}
		result.Item = item
		result.Created = true
		result.Added = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue download: %w", err)
	}

	return &result, nil
}

// NextQueueItem returns one pending queue row, lowest identifier first
func (db *Database) NextQueueItem() (*DownloadQueueItem, error) {
	var rows []*DownloadQueueItem
	query := bolthold.Where(bolthold.Key).Gt(uint64(0)).SortBy("ID").Limit(1)
	if err := db.store.Find(&rows, query); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// GetQueueItems retrieves all pending queue rows
func (db *Database) GetQueueItems() ([]*DownloadQueueItem, error) {
	var rows []*DownloadQueueItem
	err := db.store.Find(&rows, nil)
	return rows, err
}

// CompleteDownload stores the finished item and removes the queue row in one
// transaction. The queue row is re-read inside the transaction so the
// returned subscribers include anyone who joined during the download.
func (db *Database) CompleteDownload(queueID uint64, downloaded *DownloadedItem) (*DownloadQueueItem, error) {
	var row DownloadQueueItem

	err := db.update(func(tx *bbolt.Tx) error {
		if err := db.store.TxGet(tx, queueID, &row); err != nil {
			return fmt.Errorf("queue item %d: %w", queueID, err)
		}
		downloaded.CreatedAt = time.Now()
		if err := db.store.TxInsert(tx, bolthold.NextSequence(), downloaded); err != nil {
			return err
		}
		return db.store.TxDelete(tx, queueID, &DownloadQueueItem{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete download: %w", err)
	}

	row.ID = queueID
	return &row, nil
}

// AbandonDownload deletes a queue row and returns its last stored state
func (db *Database) AbandonDownload(queueID uint64) (*DownloadQueueItem, error) {
	var row DownloadQueueItem

	err := db.update(func(tx *bbolt.Tx) error {
		if err := db.store.TxGet(tx, queueID, &row); err != nil {
			return fmt.Errorf("queue item %d: %w", queueID, err)
		}
		return db.store.TxDelete(tx, queueID, &DownloadQueueItem{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to abandon download: %w", err)
	}

	row.ID = queueID
	return &row, nil
}

// Downloaded item operations

// FindDownloaded returns the stored upload for the given content
func (db *Database) FindDownloaded(itemID, translatorID, seasonID, episodeID string) (*DownloadedItem, error) {
	var rows []*DownloadedItem
	if err := db.store.Find(&rows, contentQuery(itemID, translatorID)); err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.SeasonID == seasonID && row.EpisodeID == episodeID {
			return row, nil
		}
	}

	return nil, ErrNotFound
}

// GetDownloadedItems retrieves every finished upload
func (db *Database) GetDownloadedItems() ([]*DownloadedItem, error) {
	var rows []*DownloadedItem
	err := db.store.Find(&rows, nil)
	return rows, err
}

// Track series operations

// TrackResult describes what TrackSubscribe did
type TrackResult struct {
	Series  *TrackSeries
	Created bool
	Added   bool
}

// TrackSubscribe adds sub to the tracking row of series' item/translator or
// inserts series as a new row
func (db *Database) TrackSubscribe(series *TrackSeries, sub Subscriber) (*TrackResult, error) {
	var result TrackResult

	err := db.update(func(tx *bbolt.Tx) error {
		var rows []*TrackSeries
		query := contentQuery(series.ItemID, series.TranslatorID).SortBy("ID").Limit(1)
		if err := db.store.TxFind(tx, &rows, query); err != nil {
			return err
		}

		if len(rows) > 0 {
			row := rows[0]
			result.Series = row
			if row.Subscribers.Add(sub) {
				result.Added = true
				row.UpdatedAt = time.Now()
				return db.store.TxUpdate(tx, row.ID, row)
			}
			return nil
		}

		now := time.Now()
		series.Subscribers = Subscribers{sub}
		series.CreatedAt = now
		series.UpdatedAt = now
		if err := db.store.TxInsert(tx, bolthold.NextSequence(), series); err != nil {
			return err
		}
		result.Series = series
		result.Created = true
		result.Added = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to track series: %w", err)
	}

	return &result, nil
}

// TrackUnsubscribe removes chatID from every tracking row of item/translator.
// Rows left without subscribers are pruned by the series checker.
func (db *Database) TrackUnsubscribe(itemID, translatorID string, chatID int64) (bool, error) {
	removed := false

	err := db.update(func(tx *bbolt.Tx) error {
		var rows []*TrackSeries
		if err := db.store.TxFind(tx, &rows, contentQuery(itemID, translatorID)); err != nil {
			return err
		}
		for _, row := range rows {
			if !row.Subscribers.Remove(chatID) {
				continue
			}
			removed = true
			row.UpdatedAt = time.Now()
			if err := db.store.TxUpdate(tx, row.ID, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to untrack series: %w", err)
	}

	return removed, nil
}

// IsTracking reports whether chatID tracks any translator of itemID
func (db *Database) IsTracking(itemID string, chatID int64) (bool, error) {
	var rows []*TrackSeries
	if err := db.store.Find(&rows, bolthold.Where("ItemID").Eq(itemID)); err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Subscribers.Has(chatID) {
			return true, nil
		}
	}
	return false, nil
}

// TrackSubscriberCount returns how many distinct chats track any
// translator of itemID
func (db *Database) TrackSubscriberCount(itemID string) (int, error) {
	var rows []*TrackSeries
	if err := db.store.Find(&rows, bolthold.Where("ItemID").Eq(itemID)); err != nil {
		return 0, err
	}

	var all Subscribers
	for _, row := range rows {
		all = all.Union(row.Subscribers)
	}
	return len(all), nil
}

// TrackMaintenancePlan lists rows to rewrite and rows to delete
type TrackMaintenancePlan struct {
	Updates []*TrackSeries
	Deletes []uint64
}

// MaintainTrackSeries loads every tracking row, lets plan decide what to
// rewrite or delete, and applies the result in the same transaction
func (db *Database) MaintainTrackSeries(plan func(rows []*TrackSeries) TrackMaintenancePlan) (*TrackMaintenancePlan, error) {
	var applied TrackMaintenancePlan

	err := db.update(func(tx *bbolt.Tx) error {
		var rows []*TrackSeries
		if err := db.store.TxFind(tx, &rows, nil); err != nil {
			return err
		}

		applied = plan(rows)

		for _, id := range applied.Deletes {
			if err := db.store.TxDelete(tx, id, &TrackSeries{}); err != nil {
				return fmt.Errorf("delete track series %d: %w", id, err)
			}
		}
		for _, row := range applied.Updates {
			row.UpdatedAt = time.Now()
			if err := db.store.TxUpdate(tx, row.ID, row); err != nil {
				return fmt.Errorf("update track series %d: %w", row.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to maintain track series: %w", err)
	}

	return &applied, nil
}

// TrackSeriesPage returns up to limit rows with ID greater than afterID in
// ascending order, and whether more rows follow
func (db *Database) TrackSeriesPage(afterID uint64, limit int) ([]*TrackSeries, bool, error) {
	var rows []*TrackSeries
	query := bolthold.Where(bolthold.Key).Gt(afterID).SortBy("ID").Limit(limit + 1)
	if err := db.store.Find(&rows, query); err != nil {
		return nil, false, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	return rows, hasMore, nil
}

// UpdateTrackPositions persists last season/episode of the given rows in one
// transaction. Other fields are re-read so concurrent subscribes survive.
func (db *Database) UpdateTrackPositions(rows []*TrackSeries) error {
	if len(rows) == 0 {
		return nil
	}

	err := db.update(func(tx *bbolt.Tx) error {
		for _, row := range rows {
			var current TrackSeries
			if err := db.store.TxGet(tx, row.ID, &current); err != nil {
				if errors.Is(err, bolthold.ErrNotFound) {
					continue
				}
				return err
			}
			current.ID = row.ID
			current.LastSeasonID = row.LastSeasonID
			current.LastEpisodeID = row.LastEpisodeID
			current.UpdatedAt = time.Now()
			if err := db.store.TxUpdate(tx, row.ID, &current); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update track positions: %w", err)
	}

	return nil
}

// GetAllTrackSeries retrieves every tracking row
func (db *Database) GetAllTrackSeries() ([]*TrackSeries, error) {
	var rows []*TrackSeries
	err := db.store.Find(&rows, nil)
	return rows, err
}
