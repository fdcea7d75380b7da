// Package telegram is the conversation front end over the Telegram Bot API
// (github.com/go-telegram-bot-api/telegram-bot-api/v5). It parses inbound
// links and button presses, hands them to the pipeline and implements the
// pipeline's Conversation on top of status messages and file uploads.
package telegram
