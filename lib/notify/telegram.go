package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatId int64  `json:"chat_id"`
}

type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:  bot,
		chat: &tele.Chat{ID: cfg.ChatId},
	}, nil
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	text := msg.Text
	parseMode := tele.ModeDefault
	if msg.HTML != "" {
		text = msg.HTML
		parseMode = tele.ModeHTML
	}

	_, err := t.bot.Send(t.chat, prefixForPriority(msg.Priority)+text, &tele.SendOptions{
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	})
	return err
}
