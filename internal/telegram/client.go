package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
)

// Client wraps the Telegram Bot API in the two capabilities the workflows
// need: hosting product images (Telegram doubles as the image CDN) and
// alerting the admin chat about new orders.
//
// The underlying library has no context support; ctx parameters bound the
// caller's intent, not the transport.
type Client struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
	logger      *slog.Logger
}

func NewClient(token string, adminChatID int64, logger *slog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Client{
		bot:         bot,
		adminChatID: adminChatID,
		logger:      logger,
	}, nil
}

// UploadImage posts the image to the admin chat and resolves the durable
// file URL of the largest size Telegram kept.
func (c *Client) UploadImage(_ context.Context, data []byte, filename string) (string, string, error) {
	photo := tgbotapi.NewPhoto(c.adminChatID, tgbotapi.FileBytes{
		Name:  filename,
		Bytes: data,
	})

	msg, err := c.bot.Send(photo)
	if err != nil {
		return "", "", fmt.Errorf("send photo: %w", err)
	}
	if len(msg.Photo) == 0 {
		return "", "", errors.New("no photo sizes in response")
	}

	best := msg.Photo[len(msg.Photo)-1]
	url, err := c.bot.GetFileDirectURL(best.FileID)
	if err != nil {
		return "", "", fmt.Errorf("resolve file url: %w", err)
	}

	return url, best.FileID, nil
}

// SendOrderNotification posts a human-readable order summary to the admin
// chat, with an HTML link to the buyer when their identity is known.
func (c *Client) SendOrderNotification(_ context.Context, order domain.Order) error {
	msg := tgbotapi.NewMessage(c.adminChatID, formatOrderNotification(order))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send order notification: %w", err)
	}
	return nil
}
