package models

import (
	"strings"
	"time"
)

// ParticipantKind tells which identity space an id belongs to. Student and
// tutor ids are not unique across the two spaces.
type ParticipantKind string

const (
	KindUser  ParticipantKind = "user"
	KindTutor ParticipantKind = "tutor"
)

// ParseKind normalizes a client supplied kind, defaulting to KindUser.
// The legacy model names "User" and "Newtutor" are accepted.
func ParseKind(s string) ParticipantKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tutor", "newtutor":
		return KindTutor
	default:
		return KindUser
	}
}

// Message is a persisted chat message. Seen only ever flips false -> true.
type Message struct {
	ID            string          `json:"_id" bson:"_id"`
	RoomID        string          `json:"roomId" bson:"roomId"`
	SenderID      string          `json:"senderId" bson:"senderId"`
	SenderName    string          `json:"senderName" bson:"senderName"`
	SenderKind    ParticipantKind `json:"senderKind" bson:"senderKind"`
	ReceiverID    string          `json:"receiverId" bson:"receiverId"`
	ReceiverKind  ParticipantKind `json:"receiverKind" bson:"receiverKind"`
	Body          string          `json:"message" bson:"message"`
	IsLiveSession bool            `json:"isLiveSession" bson:"isLiveSession"`
	Seen          bool            `json:"seen" bson:"seen"`
	CreatedAt     time.Time       `json:"timestamp" bson:"createdAt"`
}

// InboxEntry is the latest message exchanged with one contact.
type InboxEntry struct {
	ContactID   string          `json:"contactId"`
	ContactKind ParticipantKind `json:"contactKind"`
	Text        string          `json:"text"`
	Timestamp   time.Time       `json:"timestamp"`
	UnseenCount int64           `json:"unseenCount"`
}
