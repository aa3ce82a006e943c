// Package telegram sends strategy notifications to a Telegram chat.
package telegram

import (
	"fmt"
	"log"

	"grid_trading/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts Markdown messages to one chat. A nil *Notifier is valid
// and drops every message.
type Notifier struct {
	sender Sender
	chatID int64
}

// New connects to the bot API. Missing credentials disable notifications
// (nil notifier, nil error).
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		log.Println("Warning: Telegram credentials missing, notifications disabled")
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewWithSender(bot, chatID), nil
}

func NewWithSender(s Sender, chatID int64) *Notifier {
	return &Notifier{sender: s, chatID: chatID}
}

// Notify sends a message. Delivery failures are logged, never returned.
func (n *Notifier) Notify(text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.sender.Send(msg); err != nil {
		log.Printf("WARN: Telegram Alert Failed: %v", err)
	}
}

// Started announces a strategy loop.
func Started(st *models.StockState, mode string) string {
	return fmt.Sprintf("🚀 *%s grid started* (%s)\nSession: %s | Initial: $%s | Spacing: $%s | Target: %d",
		st.Symbol, mode, st.SessionDate, st.InitialPrice.StringFixed(2), st.Spacing.StringFixed(2), st.TargetPosition)
}

var reasonText = map[models.CloseReason]string{
	models.CloseWin:  "profit target hit",
	models.CloseLoss: "loss limit hit",
	models.CloseTime: "session ended",
}

// Closed reports a strategy's outcome.
func Closed(st *models.StockState) string {
	return fmt.Sprintf("🏁 *%s grid closed* [%s] %s\nRealized PnL: $%s (%s%%) | Trades: %d",
		st.Symbol, st.CloseReason, reasonText[st.CloseReason],
		st.RealizedPnL.StringFixed(2), st.RealizedPnLPct.StringFixed(2), len(st.TradingLog))
}

// Failed reports a loop stopped by an error. The error text is escaped since
// paths and broker messages carry Markdown characters.
func Failed(symbol string, err error) string {
	return fmt.Sprintf("🚨 *%s grid stopped*: %s", symbol, tgbotapi.EscapeText(tgbotapi.ModeMarkdown, err.Error()))
}
