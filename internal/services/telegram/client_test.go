package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/arynyklas/HDRFilmsBot/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := NewClient(&config.Config{BotToken: "123:abc", TelegramAPIURL: srv.URL}, logger)
	require.NoError(t, err)
	return c
}

// parseForm reads the multipart body every Bot API call is sent as
func parseForm(t *testing.T, r *http.Request) bool {
	t.Helper()
	return assert.NoError(t, r.ParseMultipartForm(1<<20))
}

type replyParams struct {
	MessageID                int  `json:"message_id"`
	AllowSendingWithoutReply bool `json:"allow_sending_without_reply"`
}

func replyOf(t *testing.T, r *http.Request) replyParams {
	t.Helper()
	var reply replyParams
	raw := r.FormValue("reply_parameters")
	if raw != "" {
		assert.NoError(t, json.Unmarshal([]byte(raw), &reply))
	}
	return reply
}

func TestSendMessageReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		if !parseForm(t, r) {
			return
		}
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "hello", r.FormValue("text"))
		assert.Contains(t, r.FormValue("parse_mode"), "HTML")
		assert.Equal(t, replyParams{MessageID: 7, AllowSendingWithoutReply: true}, replyOf(t, r))

		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 99, "chat": {"id": 42}}}`)
	})

	id, err := c.SendMessage(context.Background(), 42, "hello", 7)
	require.NoError(t, err)
	assert.EqualValues(t, 99, id)
}

func TestSendMessageWithoutReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if parseForm(t, r) {
			assert.Empty(t, r.FormValue("reply_parameters"))
		}
		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 1}}`)
	})

	_, err := c.SendMessage(context.Background(), 42, "hello", 0)
	require.NoError(t, err)
}

func TestErrorOnRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok": false, "error_code": 400, "description": "Bad Request: message to edit not found"}`)
	})

	err := c.EditMessageText(context.Background(), 1, 2, "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "editMessageText")
	assert.Contains(t, err.Error(), "message to edit not found")
}

func TestEditMessageText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/editMessageText", r.URL.Path)
		if parseForm(t, r) {
			assert.Equal(t, "1", r.FormValue("chat_id"))
			assert.Equal(t, "2", r.FormValue("message_id"))
			assert.Equal(t, "<b>50%</b>", r.FormValue("text"))
		}
		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 2}}`)
	})

	assert.NoError(t, c.EditMessageText(context.Background(), 1, 2, "<b>50%</b>"))
}

func TestDeleteMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/deleteMessage", r.URL.Path)
		if parseForm(t, r) {
			assert.Equal(t, "2", r.FormValue("message_id"))
		}
		_, _ = io.WriteString(w, `{"ok": true, "result": true}`)
	})

	assert.NoError(t, c.DeleteMessage(context.Background(), 1, 2))
}

func TestSendVideoByIDProtected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendVideo", r.URL.Path)
		if parseForm(t, r) {
			assert.Equal(t, "file-xyz", r.FormValue("video"))
			assert.Equal(t, "true", r.FormValue("protect_content"))
			assert.Equal(t, 5, replyOf(t, r).MessageID)
		}
		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 3}}`)
	})

	assert.NoError(t, c.SendVideoByID(context.Background(), 1, "file-xyz", "caption", 5))
}

func TestSendVideoFileUploadsMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item_1_1_720p.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendVideo", r.URL.Path)
		if !parseForm(t, r) {
			return
		}
		assert.Equal(t, "-100500", r.FormValue("chat_id"))
		assert.Equal(t, "1920", r.FormValue("width"))
		assert.Equal(t, "1080", r.FormValue("height"))
		assert.Equal(t, "true", r.FormValue("supports_streaming"))
		assert.Equal(t, "Title\nDub\n720p", r.FormValue("caption"))

		file, header, err := r.FormFile("video")
		if assert.NoError(t, err) {
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "video-bytes", string(data))
			assert.Equal(t, "item_1_1_720p.mp4", header.Filename)
		}

		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 10, "video": {"file_id": "AAA", "width": 1920, "height": 1080}}}`)
	})

	fileID, err := c.SendVideoFile(context.Background(), VideoUpload{
		ChatID: -100500, Path: path, Caption: "Title\nDub\n720p", Width: 1920, Height: 1080,
	})
	require.NoError(t, err)
	assert.Equal(t, "AAA", fileID)
}

func TestSendVideoFileOmitsUnknownResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("v"), 0o644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if parseForm(t, r) {
			assert.Contains(t, []string{"", "0"}, r.FormValue("width"))
			assert.Contains(t, []string{"", "0"}, r.FormValue("height"))
		}
		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 10, "video": {"file_id": "B"}}}`)
	})

	fileID, err := c.SendVideoFile(context.Background(), VideoUpload{ChatID: 1, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "B", fileID)
}

func TestSendVideoFileWithoutFileID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("v"), 0o644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok": true, "result": {"message_id": 10}}`)
	})

	_, err := c.SendVideoFile(context.Background(), VideoUpload{ChatID: 1, Path: path})
	assert.ErrorContains(t, err, "no video file id")
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(&config.Config{}, logrus.New())
	assert.Error(t, err)
}
