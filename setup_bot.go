package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SetupBot connects the bot used for welcome messages. The API still serves
// when Telegram is unreachable; only the welcome DM is skipped.
func SetupBot(token string) *tgbotapi.BotAPI {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		ErrorLogger.Println("telegram bot unavailable:", err)
		return nil
	}

	return bot
}
