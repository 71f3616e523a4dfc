package domain

import (
	"sort"
	"time"
)

// Bounds on anonymous message content, counted in runes after trimming.
const (
	MessageMinLength = 2
	MessageMaxLength = 1000
)

// Message is a single anonymous note owned by exactly one User.
// PK: user_id, SK: message_id.
type Message struct {
	UserID    string    `json:"-" dynamodbav:"user_id"`
	MessageID string    `json:"id" dynamodbav:"message_id"`
	Content   string    `json:"content" dynamodbav:"content"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

type SendMessageRequest struct {
	Username string `json:"username" validate:"required,username"`
	Content  string `json:"content" validate:"min=2,max=1000"`
}

// SortNewestFirst orders msgs by CreatedAt descending. Equal timestamps fall
// back to MessageID descending so the order is total.
func SortNewestFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].MessageID > msgs[j].MessageID
	})
}
