// Package messaging persists chat messages, fans them out to rooms and keeps
// receivers' unseen counters current.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/models"
)

// ErrBadRequest is returned when a query is missing a participant id.
var ErrBadRequest = errors.New("messaging: bad request")

// Store is the durable message store. Every count is a fresh query.
type Store interface {
	Create(ctx context.Context, m *models.Message) error
	CountUnseen(ctx context.Context, receiverID, senderID string) (int64, error)
	MarkSeen(ctx context.Context, receiverID, senderID string) (int64, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.Message, error)
	Conversation(ctx context.Context, a, b string) ([]models.Message, error)
}

// UnseenCount is the payload of unseenCountUpdate.
type UnseenCount struct {
	Count int64 `json:"count"`
}

// ConversationUnseen is the payload of conversationUnseenUpdate.
type ConversationUnseen struct {
	ContactID string `json:"contactId"`
	Count     int64  `json:"count"`
}

// ChatError is sent to the sender when a message could not be stored.
type ChatError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TypingPayload is relayed to the other members of a room.
type TypingPayload struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Typing     bool   `json:"typing"`
}

// ConversationView is a two-way history with its direct room id.
type ConversationView struct {
	RoomID   string           `json:"roomId"`
	Messages []models.Message `json:"messages"`
}

// Service implements messaging operations as effect producers.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a messaging service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// IsBroadcastReceiver reports whether id addresses a room rather than a person.
func IsBroadcastReceiver(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || strings.EqualFold(id, "all")
}

// SendMessage stores a chat message, broadcasts it to its room and pushes the
// receiver's refreshed unseen counts. A store failure is reported to the
// sending connection only.
func (s *Service) SendMessage(ctx context.Context, connID string, in *events.ChatMessage) []events.Effect {
	msg := &models.Message{
		RoomID:        in.RoomID,
		SenderID:      in.SenderID,
		SenderName:    in.SenderName,
		SenderKind:    models.ParseKind(firstNonEmpty(in.SenderKind, in.SenderModel)),
		ReceiverID:    in.ReceiverID,
		ReceiverKind:  models.ParseKind(firstNonEmpty(in.ReceiverKind, in.ReceiverModel)),
		Body:          in.Message,
		IsLiveSession: events.IsLiveSessionRoom(in.RoomID),
	}
	if err := s.store.Create(ctx, msg); err != nil {
		s.logger.Error("store chat message",
			zap.String("room", in.RoomID), zap.String("sender_id", in.SenderID), zap.Error(err))
		return []events.Effect{
			events.ToConn(connID, events.OutChatError, ChatError{Error: "Failed to send message", Message: in.Message}),
		}
	}

	effects := []events.Effect{events.ToRoom(msg.RoomID, events.OutChatMessage, *msg)}
	if IsBroadcastReceiver(msg.ReceiverID) {
		return effects
	}
	counts, err := s.counts(ctx, msg.ReceiverID, msg.SenderID)
	if err != nil {
		s.logger.Error("count unseen messages", zap.String("receiver_id", msg.ReceiverID), zap.Error(err))
		return effects
	}
	return append(effects, append(counts,
		events.ToRoom(msg.ReceiverID, events.OutNewMessageNotification, *msg))...)
}

// RejectMessage answers a chat message that failed validation with the same
// chatError a store failure produces. data is read leniently for the text.
func (s *Service) RejectMessage(connID string, data json.RawMessage) []events.Effect {
	var partial struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &partial)
	return []events.Effect{
		events.ToConn(connID, events.OutChatError, ChatError{Error: "Failed to send message", Message: partial.Message}),
	}
}

// counts returns the receiver's total and per-sender unseen count pushes.
func (s *Service) counts(ctx context.Context, receiverID, senderID string) ([]events.Effect, error) {
	total, err := s.store.CountUnseen(ctx, receiverID, "")
	if err != nil {
		return nil, err
	}
	conv, err := s.store.CountUnseen(ctx, receiverID, senderID)
	if err != nil {
		return nil, err
	}
	room := events.UserMessagesChannel(receiverID)
	return []events.Effect{
		events.ToRoom(room, events.OutUnseenCountUpdate, UnseenCount{Count: total}),
		events.ToRoom(room, events.OutConversationUnseen, ConversationUnseen{ContactID: senderID, Count: conv}),
	}, nil
}

// MarkSeen flips every unseen message from contactID to userID and pushes the
// new total and a zero conversation count to userID.
func (s *Service) MarkSeen(ctx context.Context, userID, contactID string) []events.Effect {
	n, err := s.store.MarkSeen(ctx, userID, contactID)
	if err != nil {
		s.logger.Error("mark messages seen", zap.String("user_id", userID), zap.String("contact_id", contactID), zap.Error(err))
		return nil
	}
	total, err := s.store.CountUnseen(ctx, userID, "")
	if err != nil {
		s.logger.Error("count unseen messages", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	s.logger.Debug("messages marked seen",
		zap.String("user_id", userID), zap.String("contact_id", contactID), zap.Int64("updated", n))
	room := events.UserMessagesChannel(userID)
	return []events.Effect{
		events.ToRoom(room, events.OutUnseenCountUpdate, UnseenCount{Count: total}),
		events.ToRoom(room, events.OutConversationUnseen, ConversationUnseen{ContactID: contactID}),
	}
}

// UnseenCount counts userID's unseen messages, from contactID only when set.
func (s *Service) UnseenCount(ctx context.Context, userID, contactID string) (int64, error) {
	if userID == "" {
		return 0, ErrBadRequest
	}
	return s.store.CountUnseen(ctx, userID, contactID)
}

// JoinMessageRoom subscribes connID to userID's counter channel and sends the
// current total.
func (s *Service) JoinMessageRoom(ctx context.Context, connID, userID string) []events.Effect {
	effects := []events.Effect{events.Join(connID, events.UserMessagesChannel(userID))}
	return append(effects, s.RequestUnseen(ctx, connID, userID)...)
}

// RequestUnseen sends userID's total unseen count to connID.
func (s *Service) RequestUnseen(ctx context.Context, connID, userID string) []events.Effect {
	total, err := s.store.CountUnseen(ctx, userID, "")
	if err != nil {
		s.logger.Error("count unseen messages", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return []events.Effect{events.ToConn(connID, events.OutUnseenCountUpdate, UnseenCount{Count: total})}
}

// RequestConversationUnseen sends the unseen count from contactID to connID.
func (s *Service) RequestConversationUnseen(ctx context.Context, connID, userID, contactID string) []events.Effect {
	n, err := s.store.CountUnseen(ctx, userID, contactID)
	if err != nil {
		s.logger.Error("count conversation unseen", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return []events.Effect{
		events.ToConn(connID, events.OutConversationUnseen, ConversationUnseen{ContactID: contactID, Count: n}),
	}
}

// JoinRoom subscribes connID to a chat room.
func (s *Service) JoinRoom(connID, roomID string) []events.Effect {
	return []events.Effect{events.Join(connID, roomID)}
}

// JoinUser subscribes connID to userID's notification room.
func (s *Service) JoinUser(connID, userID string) []events.Effect {
	return []events.Effect{events.Join(connID, userID)}
}

// Typing relays a typing indicator to everyone in the room but the sender.
func (s *Service) Typing(connID string, in *events.Typing) []events.Effect {
	return []events.Effect{
		events.ToRoomExcept(in.RoomID, connID, events.OutTyping, TypingPayload{
			SenderID:   in.SenderID,
			SenderName: firstNonEmpty(in.SenderName, "User"),
			Typing:     in.IsTyping(),
		}),
	}
}

// Inbox returns the latest message exchanged with each contact, newest first,
// with the number of unseen messages from that contact.
func (s *Service) Inbox(ctx context.Context, userID string) ([]models.InboxEntry, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	msgs, err := s.store.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	index := make(map[string]int)
	inbox := make([]models.InboxEntry, 0)
	for _, m := range msgs {
		contact, kind := m.ReceiverID, m.ReceiverKind
		if m.SenderID != userID {
			contact, kind = m.SenderID, m.SenderKind
		}
		if IsBroadcastReceiver(contact) || contact == userID {
			continue
		}
		i, ok := index[contact]
		if !ok {
			i = len(inbox)
			index[contact] = i
			inbox = append(inbox, models.InboxEntry{
				ContactID:   contact,
				ContactKind: kind,
				Text:        m.Body,
				Timestamp:   m.CreatedAt,
			})
		}
		if m.ReceiverID == userID && !m.Seen {
			inbox[i].UnseenCount++
		}
	}
	return inbox, nil
}

// Conversation marks contactID's messages to userID as seen and returns the
// two-way history, oldest first. The returned effects push the new counts.
func (s *Service) Conversation(ctx context.Context, userID, contactID string) (*ConversationView, []events.Effect, error) {
	if userID == "" || contactID == "" {
		return nil, nil, ErrBadRequest
	}
	effects := s.MarkSeen(ctx, userID, contactID)
	msgs, err := s.store.Conversation(ctx, userID, contactID)
	if err != nil {
		return nil, effects, fmt.Errorf("load conversation: %w", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &ConversationView{RoomID: events.DirectRoomID(userID, contactID), Messages: msgs}, effects, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
