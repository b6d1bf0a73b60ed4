package controllers

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/arynyklas/HDRFilmsBot/internal/services/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// listing builds ordered maps from alternating key/value strings
func listing(kv ...string) *models.OrderedMap {
	m := models.NewOrderedMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

type fakeResolver struct {
	mu      sync.Mutex
	answers map[string]*models.DirectURLs
	errs    map[string]error
	calls   map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		answers: make(map[string]*models.DirectURLs),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (r *fakeResolver) set(itemID string, resp *models.DirectURLs) {
	r.mu.Lock()
	r.answers[itemID] = resp
	r.mu.Unlock()
}

func (r *fakeResolver) fail(itemID string, err error) {
	r.mu.Lock()
	r.errs[itemID] = err
	r.mu.Unlock()
}

func (r *fakeResolver) callCount(itemID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[itemID]
}

func (r *fakeResolver) Resolve(ctx context.Context, req models.ResolveRequest) (*models.ResolvedContent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[req.ItemID]++

	if err := r.errs[req.ItemID]; err != nil {
		return nil, err
	}
	return models.NewResolvedContent(req, r.answers[req.ItemID]), nil
}

type sentMessage struct {
	ChatID  int64
	Text    string
	ReplyTo int64
}

type editedMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type sentVideo struct {
	ChatID  int64
	FileID  string
	Caption string
	ReplyTo int64
}

type fakeDelivery struct {
	mu       sync.Mutex
	messages []sentMessage
	edits    []editedMessage
	deletes  []editedMessage
	uploads  []telegram.VideoUpload
	videos   []sentVideo
	failFor  map[int64]bool
	fileID   string
	uploadFn func(upload telegram.VideoUpload)
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{failFor: make(map[int64]bool), fileID: "file-1"}
}

var errRejected = errors.New("Forbidden: bot was blocked by the user")

func (d *fakeDelivery) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[chatID] {
		return 0, errRejected
	}
	d.messages = append(d.messages, sentMessage{ChatID: chatID, Text: text, ReplyTo: replyTo})
	return int64(len(d.messages)), nil
}

func (d *fakeDelivery) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[chatID] {
		return errRejected
	}
	d.edits = append(d.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (d *fakeDelivery) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[chatID] {
		return errRejected
	}
	d.deletes = append(d.deletes, editedMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (d *fakeDelivery) SendVideoFile(ctx context.Context, upload telegram.VideoUpload) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadFn != nil {
		d.uploadFn(upload)
	}
	d.uploads = append(d.uploads, upload)
	return d.fileID, nil
}

func (d *fakeDelivery) SendVideoByID(ctx context.Context, chatID int64, fileID, caption string, replyTo int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[chatID] {
		return errRejected
	}
	d.videos = append(d.videos, sentVideo{ChatID: chatID, FileID: fileID, Caption: caption, ReplyTo: replyTo})
	return nil
}

type fakeDownloader struct {
	data     []byte
	progress []int
	err      error
	during   func()
	urls     []string
}

func (d *fakeDownloader) Download(ctx context.Context, url, out string, onProgress func(percent int)) error {
	d.urls = append(d.urls, url)
	if d.during != nil {
		d.during()
	}
	for _, p := range d.progress {
		onProgress(p)
	}
	if d.err != nil {
		return d.err
	}
	return os.WriteFile(out, d.data, 0o644)
}

type fakeProber struct {
	sizes map[string]int64
	errs  map[string]error
	asked []string
}

func (p *fakeProber) ContentLength(ctx context.Context, url string) (int64, error) {
	p.asked = append(p.asked, url)
	if err := p.errs[url]; err != nil {
		return 0, err
	}
	return p.sizes[url], nil
}

// mp4Header builds a minimal moov/trak/tkhd file with the given dimensions
func mp4Header(width, height uint32) []byte {
	box := func(kind string, payload []byte) []byte {
		out := make([]byte, 8, 8+len(payload))
		binary.BigEndian.PutUint32(out, uint32(8+len(payload)))
		copy(out[4:], kind)
		return append(out, payload...)
	}

	tkhd := make([]byte, 84)
	binary.BigEndian.PutUint32(tkhd[76:], width<<16)
	binary.BigEndian.PutUint32(tkhd[80:], height<<16)

	return box("moov", box("trak", box("tkhd", tkhd)))
}
