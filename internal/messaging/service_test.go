package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/memstore"
	"github.com/tutorlive/backend/internal/models"
)

func find(effects []events.Effect, room, event string) (events.Effect, bool) {
	for _, e := range effects {
		if e.Room == room && e.Event == event {
			return e, true
		}
	}
	return events.Effect{}, false
}

func TestSendMessage_PushesReceiverCounts(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMessages()
	require.NoError(t, store.Create(ctx, &models.Message{SenderID: "C", ReceiverID: "B", Body: "old"}))
	require.NoError(t, store.Create(ctx, &models.Message{SenderID: "A", ReceiverID: "B", Body: "older"}))
	svc := NewService(store, nil)

	effects := svc.SendMessage(ctx, "c-a", &events.ChatMessage{
		RoomID: "rA_B", SenderID: "A", SenderName: "Al", ReceiverID: "B", Message: "hi",
	})
	require.Len(t, effects, 4)

	chat := effects[0]
	assert.Equal(t, events.EffectEmitRoom, chat.Kind)
	assert.Equal(t, "rA_B", chat.Room)
	assert.Equal(t, events.OutChatMessage, chat.Event)
	msg := chat.Payload.(models.Message)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Seen)
	assert.False(t, msg.IsLiveSession)
	assert.Equal(t, models.KindUser, msg.SenderKind)

	total, ok := find(effects, "user-messages-B", events.OutUnseenCountUpdate)
	require.True(t, ok)
	assert.Equal(t, UnseenCount{Count: 3}, total.Payload)

	conv, ok := find(effects, "user-messages-B", events.OutConversationUnseen)
	require.True(t, ok)
	assert.Equal(t, ConversationUnseen{ContactID: "A", Count: 2}, conv.Payload)

	note, ok := find(effects, "B", events.OutNewMessageNotification)
	require.True(t, ok)
	assert.Equal(t, msg, note.Payload)
}

func TestSendMessage_LiveSessionBroadcastSkipsCounts(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.NewMessages(), nil)
	effects := svc.SendMessage(ctx, "c1", &events.ChatMessage{
		RoomID: "tutor-t1", SenderID: "s1", SenderModel: "User", ReceiverID: "all", ReceiverModel: "Newtutor", Message: "hello",
	})
	require.Len(t, effects, 1)
	msg := effects[0].Payload.(models.Message)
	assert.True(t, msg.IsLiveSession)
	assert.Equal(t, models.KindTutor, msg.ReceiverKind)
}

type brokenStore struct {
	*memstore.Messages
}

func (brokenStore) Create(context.Context, *models.Message) error { return errors.New("disk full") }

func TestSendMessage_StoreFailureGoesToSenderOnly(t *testing.T) {
	svc := NewService(brokenStore{memstore.NewMessages()}, nil)
	effects := svc.SendMessage(context.Background(), "c-a", &events.ChatMessage{
		RoomID: "r", SenderID: "A", ReceiverID: "B", Message: "lost",
	})
	assert.Equal(t, []events.Effect{
		events.ToConn("c-a", events.OutChatError, ChatError{Error: "Failed to send message", Message: "lost"}),
	}, effects)
}

func TestRejectMessage_RepliesToSenderOnly(t *testing.T) {
	svc := NewService(memstore.NewMessages(), nil)
	assert.Equal(t, []events.Effect{
		events.ToConn("c-a", events.OutChatError, ChatError{Error: "Failed to send message", Message: "hi"}),
	}, svc.RejectMessage("c-a", []byte(`{"roomId":"r","message":"hi"}`)))
	assert.Equal(t, []events.Effect{
		events.ToConn("c-a", events.OutChatError, ChatError{Error: "Failed to send message"}),
	}, svc.RejectMessage("c-a", []byte(`"garbage"`)))
}

func TestMarkSeen_ZeroesConversation(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMessages()
	svc := NewService(store, nil)
	for _, from := range []string{"S", "S", "X"} {
		svc.SendMessage(ctx, "c", &events.ChatMessage{RoomID: "r", SenderID: from, ReceiverID: "R", Message: "m"})
	}

	effects := svc.MarkSeen(ctx, "R", "S")
	assert.Equal(t, []events.Effect{
		events.ToRoom("user-messages-R", events.OutUnseenCountUpdate, UnseenCount{Count: 1}),
		events.ToRoom("user-messages-R", events.OutConversationUnseen, ConversationUnseen{ContactID: "S"}),
	}, effects)

	n, err := svc.UnseenCount(ctx, "R", "S")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Idempotent.
	assert.Equal(t, effects, svc.MarkSeen(ctx, "R", "S"))
}

func TestRequests(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.NewMessages(), nil)
	svc.SendMessage(ctx, "c", &events.ChatMessage{RoomID: "r", SenderID: "S", ReceiverID: "R", Message: "m"})

	effects := svc.JoinMessageRoom(ctx, "c-r", "R")
	assert.Equal(t, []events.Effect{
		events.Join("c-r", "user-messages-R"),
		events.ToConn("c-r", events.OutUnseenCountUpdate, UnseenCount{Count: 1}),
	}, effects)

	assert.Equal(t, []events.Effect{
		events.ToConn("c-r", events.OutConversationUnseen, ConversationUnseen{ContactID: "S", Count: 1}),
	}, svc.RequestConversationUnseen(ctx, "c-r", "R", "S"))

	assert.Equal(t, []events.Effect{events.Join("c-r", "room-1")}, svc.JoinRoom("c-r", "room-1"))
	assert.Equal(t, []events.Effect{events.Join("c-r", "R")}, svc.JoinUser("c-r", "R"))

	_, err := svc.UnseenCount(ctx, "", "")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestTyping_ExcludesSender(t *testing.T) {
	svc := NewService(memstore.NewMessages(), nil)
	off := false
	assert.Equal(t, []events.Effect{
		events.ToRoomExcept("r", "c1", events.OutTyping, TypingPayload{SenderID: "s", SenderName: "User", Typing: true}),
	}, svc.Typing("c1", &events.Typing{RoomID: "r", SenderID: "s"}))
	assert.False(t, svc.Typing("c1", &events.Typing{RoomID: "r", SenderID: "s", Typing: &off})[0].Payload.(TypingPayload).Typing)
}

func TestInboxAndConversation(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMessages()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []models.Message{
		{SenderID: "T1", SenderKind: models.KindTutor, ReceiverID: "U", Body: "first", CreatedAt: base},
		{SenderID: "U", ReceiverID: "T2", ReceiverKind: models.KindTutor, Body: "to t2", CreatedAt: base.Add(time.Minute)},
		{SenderID: "T1", SenderKind: models.KindTutor, ReceiverID: "U", Body: "second", CreatedAt: base.Add(2 * time.Minute)},
		{SenderID: "U", ReceiverID: "all", RoomID: "tutor-T1", Body: "live", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range seed {
		require.NoError(t, store.Create(ctx, &seed[i]))
	}
	svc := NewService(store, nil)

	inbox, err := svc.Inbox(ctx, "U")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, models.InboxEntry{
		ContactID: "T1", ContactKind: models.KindTutor, Text: "second", Timestamp: base.Add(2 * time.Minute), UnseenCount: 2,
	}, inbox[0])
	assert.Equal(t, "T2", inbox[1].ContactID)
	assert.Zero(t, inbox[1].UnseenCount)

	view, effects, err := svc.Conversation(ctx, "U", "T1")
	require.NoError(t, err)
	assert.Equal(t, "T1_U", view.RoomID)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "first", view.Messages[0].Body)
	require.Len(t, effects, 2)

	inbox, err = svc.Inbox(ctx, "U")
	require.NoError(t, err)
	assert.Zero(t, inbox[0].UnseenCount)

	_, _, err = svc.Conversation(ctx, "U", "")
	assert.ErrorIs(t, err, ErrBadRequest)
}
