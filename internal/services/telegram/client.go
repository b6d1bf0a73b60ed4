package telegram

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/config"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
)

// callTimeout bounds every request except video uploads
const callTimeout = 30 * time.Second

// VideoUpload describes a local file sent as a video
type VideoUpload struct {
	ChatID  int64
	Path    string
	Caption string
	Width   int // zero leaves the dimension to the server
	Height  int
}

// Client sends the bot's messages and videos through the Bot API
type Client struct {
	bot    *bot.Bot
	logger *logrus.Logger
}

// NewClient creates a new Bot API client. No request is made until the
// first send.
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		// Uploads of multi-gigabyte files are bounded by the context only
		bot.WithHTTPClient(callTimeout, &http.Client{}),
	}
	if cfg.TelegramAPIURL != "" {
		opts = append(opts, bot.WithServerURL(strings.TrimRight(cfg.TelegramAPIURL, "/")))
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Client{bot: b, logger: logger}, nil
}

// replyTo quotes messageID but still sends if it is gone. Zero means no reply.
func replyTo(messageID int64) *models.ReplyParameters {
	if messageID == 0 {
		return nil
	}
	return &models.ReplyParameters{
		MessageID:                int(messageID),
		AllowSendingWithoutReply: true,
	}
}

// SendMessage sends text to a chat and returns the new message id
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, reply int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            text,
		ParseMode:       models.ParseModeHTML,
		ReplyParameters: replyTo(reply),
	})
	if err != nil {
		return 0, fmt.Errorf("telegram sendMessage: %w", err)
	}
	return int64(msg.ID), nil
}

// EditMessageText replaces the text of a sent message
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := c.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: int(messageID),
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}); err != nil {
		return fmt.Errorf("telegram editMessageText: %w", err)
	}
	return nil
}

// DeleteMessage deletes a message
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: int(messageID),
	}); err != nil {
		return fmt.Errorf("telegram deleteMessage: %w", err)
	}
	return nil
}

// SendVideoByID re-sends an already uploaded video by its file id as a
// protected reply
func (c *Client) SendVideoByID(ctx context.Context, chatID int64, fileID, caption string, reply int64) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := c.bot.SendVideo(ctx, &bot.SendVideoParams{
		ChatID:          chatID,
		Video:           &models.InputFileString{Data: fileID},
		Caption:         caption,
		ParseMode:       models.ParseModeHTML,
		ProtectContent:  true,
		ReplyParameters: replyTo(reply),
	}); err != nil {
		return fmt.Errorf("telegram sendVideo: %w", err)
	}
	return nil
}

// SendVideoFile uploads a local file and returns the reusable file id of
// the uploaded video
func (c *Client) SendVideoFile(ctx context.Context, upload VideoUpload) (string, error) {
	f, err := os.Open(upload.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	params := &bot.SendVideoParams{
		ChatID:            upload.ChatID,
		Video:             &models.InputFileUpload{Filename: filepath.Base(upload.Path), Data: f},
		Caption:           upload.Caption,
		ParseMode:         models.ParseModeHTML,
		SupportsStreaming: true,
	}
	if upload.Width > 0 && upload.Height > 0 {
		params.Width = upload.Width
		params.Height = upload.Height
	}

	c.logger.WithFields(logrus.Fields{
		"chat_id": upload.ChatID,
		"path":    upload.Path,
	}).Debug("Uploading video")

	msg, err := c.bot.SendVideo(ctx, params)
	if err != nil {
		return "", fmt.Errorf("telegram upload failed: %w", err)
	}
	if msg.Video == nil || msg.Video.FileID == "" {
		return "", fmt.Errorf("telegram upload returned no video file id")
	}
	return msg.Video.FileID, nil
}
