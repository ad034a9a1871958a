package bot

import (
	"context"

	kit "habitbot/internal/transport"
)

// ChatSender adapts kit.Adapter to the habit.Sender surface: owners are
// reached via their private chat (chat id == user id for Telegram DMs).
type ChatSender struct {
	adapter kit.Adapter
}

func NewChatSender(adapter kit.Adapter) *ChatSender {
	return &ChatSender{adapter: adapter}
}

func (s *ChatSender) Send(ctx context.Context, ownerID int64, text string, markup any) error {
	_, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: ownerID}, text, &kit.SendOptions{
		ReplyMarkupAdapter: markup,
	})
	return err
}
