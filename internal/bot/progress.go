package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// progress is the single status message a request edits as it moves
// through its stages. If the first send failed, later updates fall back
// to new messages so the user still sees the outcome.
type progress struct {
	h         *Handler
	chatID    int64
	messageID int
}

func (h *Handler) startProgress(chatID int64, replyTo int) *progress {
	p := &progress{h: h, chatID: chatID}

	msg := tgbotapi.NewMessage(chatID, msgProcessing)
	msg.ReplyToMessageID = replyTo
	sent, err := h.msgr.Send(msg)
	if err != nil {
		h.logger.Error("telegram send failed", "chat_id", chatID, "err", err)
		return p
	}
	p.messageID = sent.MessageID
	return p
}

func (p *progress) update(text string) {
	text = truncate(text, maxMessageLen)

	if p.messageID == 0 {
		sent, err := p.h.msgr.Send(tgbotapi.NewMessage(p.chatID, text))
		if err != nil {
			p.h.logger.Error("telegram send failed", "chat_id", p.chatID, "err", err)
			return
		}
		p.messageID = sent.MessageID
		return
	}

	edit := tgbotapi.NewEditMessageText(p.chatID, p.messageID, text)
	if _, err := p.h.msgr.Send(edit); err != nil {
		p.h.logger.Warn("telegram edit failed", "chat_id", p.chatID, "message_id", p.messageID, "err", err)
	}
}
