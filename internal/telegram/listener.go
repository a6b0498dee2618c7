package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
	"github.com/asarvarbek/tgshop-backend/internal/store"
)

// Listener drives the bot's chat interface: role-aware commands plus direct
// photo uploads from admins. It shares the record store with the HTTP
// server but runs its own long-polling dispatch loop.
type Listener struct {
	client    *Client
	store     *store.Store
	adminIDs  map[string]struct{}
	webAppURL string
	logger    *slog.Logger
}

func NewListener(client *Client, st *store.Store, adminIDs []string, webAppURL string, logger *slog.Logger) *Listener {
	ids := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &Listener{
		client:    client,
		store:     st,
		adminIDs:  ids,
		webAppURL: webAppURL,
		logger:    logger,
	}
}

// Run polls for updates until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := l.client.bot.GetUpdatesChan(cfg)
	l.logger.Info("telegram listener started")

	for {
		select {
		case <-ctx.Done():
			l.client.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				l.handleMessage(update.Message)
			}
		}
	}
}

func (l *Listener) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	isAdmin := l.isAdmin(msg.From.ID)

	switch {
	case msg.IsCommand():
		l.handleCommand(msg, isAdmin)
	case len(msg.Photo) > 0:
		l.handlePhoto(msg, isAdmin)
	default:
		if isAdmin {
			l.reply(msg.Chat.ID, "🖼️ Mahsulot uchun rasm yuklash uchun rasmni botga yuboring.")
		} else {
			l.replyWithKeyboard(msg.Chat.ID, "👋 Bizning do'konimizga xush kelibsiz!", l.userKeyboard())
		}
	}
}

func (l *Listener) handleCommand(msg *tgbotapi.Message, isAdmin bool) {
	switch msg.Command() {
	case "start":
		if isAdmin {
			l.replyWithKeyboard(msg.Chat.ID,
				"👋 Salom, Admin! Bu bot orqali mahsulot rasmlarini yuklashingiz mumkin.",
				l.adminKeyboard())
		} else {
			l.replyWithKeyboard(msg.Chat.ID,
				"👋 Salom! Bizning do'konimizga xush kelibsiz!",
				l.userKeyboard())
		}

	case "help":
		if isAdmin {
			l.reply(msg.Chat.ID,
				"🔹 Admin uchun yordam:\n\n"+
					"- Mahsulotlar ro'yxatini ko'rish uchun /products buyrug'ini yuboring\n"+
					"- Oxirgi buyurtmalarni ko'rish uchun /orders buyrug'ini yuboring")
		} else {
			l.reply(msg.Chat.ID,
				"🔹 Foydalanuvchi uchun yordam:\n\n"+
					"- Do'kon ilovasini ochish uchun /start buyrug'ini yuboring")
		}

	case "products":
		if !isAdmin {
			l.reply(msg.Chat.ID, "⛔ Bu buyruq faqat adminlar uchun.")
			return
		}
		products := l.store.Menu.Load()
		if len(products) == 0 {
			l.reply(msg.Chat.ID, "ℹ️ Hozircha mahsulotlar yo'q.")
			return
		}
		l.replyWithKeyboard(msg.Chat.ID, formatProductList(products), l.adminKeyboard())

	case "orders":
		if !isAdmin {
			l.reply(msg.Chat.ID, "⛔ Bu buyruq faqat adminlar uchun.")
			return
		}
		orders := l.store.Orders.Load()
		if len(orders) > 5 {
			orders = orders[len(orders)-5:]
		}
		if len(orders) == 0 {
			l.reply(msg.Chat.ID, "ℹ️ Hozircha buyurtmalar yo'q.")
			return
		}
		for _, order := range orders {
			l.reply(msg.Chat.ID, formatOrderSummary(order))
		}

	default:
		l.reply(msg.Chat.ID, "ℹ️ Noma'lum buyruq. /help buyrug'ini yuboring.")
	}
}

// handlePhoto resolves a durable URL for an admin-sent photo so it can be
// pasted into the product form, and records the upload's provenance.
func (l *Listener) handlePhoto(msg *tgbotapi.Message, isAdmin bool) {
	if !isAdmin {
		l.reply(msg.Chat.ID, "⛔ Faqat adminlar rasm yuklay oladi.")
		return
	}

	best := msg.Photo[len(msg.Photo)-1]
	url, err := l.client.bot.GetFileDirectURL(best.FileID)
	if err != nil {
		l.logger.Error("failed to resolve photo url", "file_id", best.FileID, "error", err)
		l.reply(msg.Chat.ID, "❌ Rasmni yuklashda xatolik yuz berdi. Iltimos, qayta urinib ko'ring.")
		return
	}

	l.recordUpload(best.FileID, url)

	l.reply(msg.Chat.ID,
		"✅ Rasm muvaffaqiyatli yuklandi!\n\n"+
			"🔗 URL: "+url+"\n\n"+
			"Bu URL ni mahsulot rasmi sifatida ishlatishingiz mumkin.")
}

func (l *Listener) recordUpload(fileID, url string) {
	err := l.store.Uploads.Update(func(items []domain.Upload) ([]domain.Upload, error) {
		return append(items, domain.Upload{
			ID:         store.NextID(items),
			FileID:     fileID,
			URL:        url,
			UploadDate: time.Now().UTC(),
		}), nil
	})
	if err != nil {
		l.logger.Error("failed to record upload", "file_id", fileID, "error", err)
	}
}

func (l *Listener) isAdmin(userID int64) bool {
	_, ok := l.adminIDs[strconv.FormatInt(userID, 10)]
	return ok
}

func (l *Listener) reply(chatID int64, text string) {
	if _, err := l.client.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		l.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (l *Listener) replyWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := l.client.bot.Send(msg); err != nil {
		l.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (l *Listener) adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.InlineKeyboardButton{
			Text:   "🌐 WebApp'ni ochish",
			WebApp: &tgbotapi.WebAppInfo{URL: l.webAppURL},
		}),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.InlineKeyboardButton{
			Text:   "🌐 Admin panel",
			WebApp: &tgbotapi.WebAppInfo{URL: l.webAppURL + "/admin"},
		}),
	)
}

func (l *Listener) userKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.InlineKeyboardButton{
			Text:   "🛒 Do'konga kirish",
			WebApp: &tgbotapi.WebAppInfo{URL: l.webAppURL},
		}),
	)
}
