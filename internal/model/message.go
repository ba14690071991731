package model

import "time"

// TimestampLayout 消息时间, 与浏览器 Date.toISOString 输出一致
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Message messages/{conversationKey}/{messageId} 下的一条消息
type Message struct {
	ID        string `json:"id" validate:"required"`
	SenderID  string `json:"userId" validate:"required"`
	Body      string `json:"message" validate:"required"`
	Timestamp string `json:"date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Read      bool   `json:"isRead"`
}

// LastMessagePreview lastMessages/{owner}/{counterpart} 下的最近消息, 双方各存一份
type LastMessagePreview = Message

// NewMessage 构造一条未读消息
func NewMessage(id, senderID, body string, now time.Time) *Message {
	return &Message{
		ID:        id,
		SenderID:  senderID,
		Body:      body,
		Timestamp: now.UTC().Format(TimestampLayout),
		Read:      false,
	}
}

// SentAt 解析发送时间, 格式错误时返回零值
func (m *Message) SentAt() time.Time {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Field names used by partial updates.
const (
	FieldBody = "message"
	FieldRead = "isRead"
)
