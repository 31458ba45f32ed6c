package realtime

import (
	"context"
	"encoding/json"

	"github.com/tutorlive/backend/internal/events"
	"github.com/tutorlive/backend/internal/messaging"
	"github.com/tutorlive/backend/internal/presence"
	"github.com/tutorlive/backend/internal/signaling"
)

// Services are the components inbound events are routed to.
type Services struct {
	Presence  *presence.Service
	Signaling *signaling.Router
	Messaging *messaging.Service
}

// handle adapts a handler for one concrete event type.
func handle[T events.Inbound](fn func(ctx context.Context, connID string, in T) []events.Effect) HandlerFunc {
	return func(ctx context.Context, connID string, in events.Inbound) []events.Effect {
		v, ok := in.(T)
		if !ok {
			return nil
		}
		return fn(ctx, connID, v)
	}
}

// DispatchTable maps every inbound event kind to its handler.
func DispatchTable(s Services) map[events.Kind]HandlerFunc {
	p, sig, m := s.Presence, s.Signaling, s.Messaging
	return map[events.Kind]HandlerFunc{
		events.KindTutorStart: handle(func(ctx context.Context, conn string, in *events.TutorStart) []events.Effect {
			return p.StartSession(ctx, conn, in.TutorID)
		}),
		events.KindTutorStop: handle(func(ctx context.Context, _ string, in *events.TutorStop) []events.Effect {
			return p.StopSession(ctx, in.TutorID)
		}),
		events.KindStudentJoin: handle(func(_ context.Context, conn string, in *events.StudentJoin) []events.Effect {
			return p.JoinViewer(conn, in)
		}),
		events.KindStudentVerify: handle(func(_ context.Context, conn string, in *events.StudentVerify) []events.Effect {
			return p.Verify(conn, in)
		}),
		events.KindJoinStudentDashboard: handle(func(ctx context.Context, conn string, _ *events.JoinStudentDashboard) []events.Effect {
			return p.JoinDashboard(ctx, conn)
		}),
		events.KindTutorOffer: handle(func(_ context.Context, _ string, in *events.TutorOffer) []events.Effect {
			return sig.Offer(in)
		}),
		events.KindStudentAnswer: handle(func(_ context.Context, conn string, in *events.StudentAnswer) []events.Effect {
			return sig.Answer(conn, in)
		}),
		events.KindICECandidate: handle(func(_ context.Context, conn string, in *events.ICECandidate) []events.Effect {
			return sig.Candidate(conn, in)
		}),
		events.KindJoinMessageRoom: handle(func(ctx context.Context, conn string, in *events.JoinMessageRoom) []events.Effect {
			return m.JoinMessageRoom(ctx, conn, in.UserID)
		}),
		events.KindRequestUnseenCount: handle(func(ctx context.Context, conn string, in *events.RequestUnseenCount) []events.Effect {
			return m.RequestUnseen(ctx, conn, in.UserID)
		}),
		events.KindRequestConversationUnseen: handle(func(ctx context.Context, conn string, in *events.RequestConversationUnseen) []events.Effect {
			return m.RequestConversationUnseen(ctx, conn, in.UserID, in.ContactID)
		}),
		events.KindMarkMessagesAsSeen: handle(func(ctx context.Context, _ string, in *events.MarkMessagesAsSeen) []events.Effect {
			return m.MarkSeen(ctx, in.UserID, in.ContactID)
		}),
		events.KindJoinRoom: handle(func(_ context.Context, conn string, in *events.JoinRoom) []events.Effect {
			return m.JoinRoom(conn, in.RoomID)
		}),
		events.KindJoinUser: handle(func(_ context.Context, conn string, in *events.JoinUser) []events.Effect {
			return m.JoinUser(conn, in.UserID)
		}),
		events.KindChatMessage: handle(func(ctx context.Context, conn string, in *events.ChatMessage) []events.Effect {
			return m.SendMessage(ctx, conn, in)
		}),
		events.KindTyping: handle(func(_ context.Context, conn string, in *events.Typing) []events.Effect {
			return m.Typing(conn, in)
		}),
	}
}

// RejectReplies answers malformed events whose senders expect an error back.
func RejectReplies(s Services) RejectHandler {
	return func(connID, event string, data json.RawMessage) []events.Effect {
		if events.Kind(event) == events.KindChatMessage {
			return s.Messaging.RejectMessage(connID, data)
		}
		return nil
	}
}
