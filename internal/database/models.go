package database

import "time"

// Alert is one dispatch attempt of a notification to a group's recipient.
type Alert struct {
	ID        string    `db:"id"         json:"id"`
	GroupName string    `db:"group_name" json:"group"`
	Recipient int64     `db:"recipient"  json:"recipient"`
	SenderID  int64     `db:"sender_id"  json:"sender_id"`
	ChatID    int64     `db:"chat_id"    json:"chat_id"`
	MessageID int       `db:"message_id" json:"message_id"`
	Text      string    `db:"text"       json:"text"` // normalized text
	Outcome   string    `db:"outcome"    json:"outcome"`
	Error     string    `db:"error"      json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OutcomeCount is the number of alerts with one outcome.
type OutcomeCount struct {
	Outcome string `db:"outcome" json:"outcome"`
	Count   int    `db:"count"   json:"count"`
}
