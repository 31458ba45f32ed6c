package events

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Signaling roles carried by ice-candidate events.
const (
	RoleTutor   = "tutor"
	RoleStudent = "student"
)

// Inbound is a decoded and validated inbound event. The set of
// implementations is closed to this package.
type Inbound interface {
	Kind() Kind
	validate() error
}

var errMissing = errors.New("missing required field")

func required(fields ...string) error {
	for _, f := range fields {
		if f == "" {
			return errMissing
		}
	}
	return nil
}

func requiredRaw(fields ...json.RawMessage) error {
	for _, f := range fields {
		if isEmptyJSON(f) {
			return errMissing
		}
	}
	return nil
}

func isEmptyJSON(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// bareString decodes b when the client sent a JSON string instead of an object.
func bareString(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", false
	}
	return s, true
}

// TutorStart marks a tutor as broadcasting.
type TutorStart struct {
	TutorID string `json:"tutorId"`
}

func (TutorStart) Kind() Kind        { return KindTutorStart }
func (e TutorStart) validate() error { return required(e.TutorID) }

// TutorStop ends a tutor's broadcast.
type TutorStop struct {
	TutorID string `json:"tutorId"`
}

func (TutorStop) Kind() Kind        { return KindTutorStop }
func (e TutorStop) validate() error { return required(e.TutorID) }

// StudentJoin adds a viewer to a live session. ConnectionID defaults to the
// sending connection.
type StudentJoin struct {
	TutorID      string `json:"tutorId"`
	StudentID    string `json:"studentId"`
	ConnectionID string `json:"connectionId"`
	StudentName  string `json:"studentName"`
}

func (StudentJoin) Kind() Kind        { return KindStudentJoin }
func (e StudentJoin) validate() error { return required(e.TutorID, e.StudentID) }

// StudentVerify is a viewer's connectivity check against a session.
type StudentVerify struct {
	StudentID string `json:"studentId"`
	TutorID   string `json:"tutorId"`
}

func (StudentVerify) Kind() Kind        { return KindStudentVerify }
func (e StudentVerify) validate() error { return required(e.TutorID, e.StudentID) }

// TutorOffer carries a tutor's session description for one viewer.
type TutorOffer struct {
	Offer     json.RawMessage `json:"offer"`
	StudentID string          `json:"studentId"`
	TutorID   string          `json:"tutorId"`
}

func (TutorOffer) Kind() Kind { return KindTutorOffer }
func (e TutorOffer) validate() error {
	if err := required(e.TutorID, e.StudentID); err != nil {
		return err
	}
	return requiredRaw(e.Offer)
}

// StudentAnswer carries a viewer's answer back to the tutor.
type StudentAnswer struct {
	StudentID    string          `json:"studentId"`
	TutorID      string          `json:"tutorId"`
	Answer       json.RawMessage `json:"answer"`
	ConnectionID string          `json:"connectionId"`
}

func (StudentAnswer) Kind() Kind { return KindStudentAnswer }
func (e StudentAnswer) validate() error {
	if err := required(e.TutorID, e.StudentID); err != nil {
		return err
	}
	return requiredRaw(e.Answer)
}

// ICECandidate carries a trickled candidate in either direction.
type ICECandidate struct {
	Candidate    json.RawMessage `json:"candidate"`
	TutorID      string          `json:"tutorId"`
	Role         string          `json:"role"`
	StudentID    string          `json:"studentId"`
	ConnectionID string          `json:"connectionId"`
}

func (ICECandidate) Kind() Kind { return KindICECandidate }
func (e ICECandidate) validate() error {
	if err := required(e.TutorID, e.StudentID, e.Role); err != nil {
		return err
	}
	if e.Role != RoleTutor && e.Role != RoleStudent {
		return errors.New("role must be tutor or student")
	}
	return requiredRaw(e.Candidate)
}

// UnmarshalJSON accepts "viewer" as an alias of the student role.
func (e *ICECandidate) UnmarshalJSON(b []byte) error {
	type plain ICECandidate
	if err := json.Unmarshal(b, (*plain)(e)); err != nil {
		return err
	}
	if e.Role == "viewer" {
		e.Role = RoleStudent
	}
	return nil
}

// JoinStudentDashboard subscribes the caller to live tutor list updates.
type JoinStudentDashboard struct{}

func (JoinStudentDashboard) Kind() Kind      { return KindJoinStudentDashboard }
func (JoinStudentDashboard) validate() error { return nil }

// JoinMessageRoom subscribes the caller to a user's unseen-count channel.
type JoinMessageRoom struct {
	UserID string `json:"userId"`
}

func (JoinMessageRoom) Kind() Kind        { return KindJoinMessageRoom }
func (e JoinMessageRoom) validate() error { return required(e.UserID) }

func (e *JoinMessageRoom) UnmarshalJSON(b []byte) error {
	if s, ok := bareString(b); ok {
		e.UserID = s
		return nil
	}
	type plain JoinMessageRoom
	return json.Unmarshal(b, (*plain)(e))
}

// RequestUnseenCount asks for a user's total unseen count.
type RequestUnseenCount struct {
	UserID string `json:"userId"`
}

func (RequestUnseenCount) Kind() Kind        { return KindRequestUnseenCount }
func (e RequestUnseenCount) validate() error { return required(e.UserID) }

func (e *RequestUnseenCount) UnmarshalJSON(b []byte) error {
	if s, ok := bareString(b); ok {
		e.UserID = s
		return nil
	}
	type plain RequestUnseenCount
	return json.Unmarshal(b, (*plain)(e))
}

// RequestConversationUnseen asks for the unseen count from one contact.
type RequestConversationUnseen struct {
	UserID    string `json:"userId"`
	ContactID string `json:"contactId"`
}

func (RequestConversationUnseen) Kind() Kind        { return KindRequestConversationUnseen }
func (e RequestConversationUnseen) validate() error { return required(e.UserID, e.ContactID) }

// MarkMessagesAsSeen flips every unseen message from ContactID to UserID.
type MarkMessagesAsSeen struct {
	UserID    string `json:"userId"`
	ContactID string `json:"contactId"`
}

func (MarkMessagesAsSeen) Kind() Kind        { return KindMarkMessagesAsSeen }
func (e MarkMessagesAsSeen) validate() error { return required(e.UserID, e.ContactID) }

// JoinRoom subscribes the caller to an arbitrary chat room.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

func (JoinRoom) Kind() Kind        { return KindJoinRoom }
func (e JoinRoom) validate() error { return required(e.RoomID) }

func (e *JoinRoom) UnmarshalJSON(b []byte) error {
	if s, ok := bareString(b); ok {
		e.RoomID = s
		return nil
	}
	type plain JoinRoom
	return json.Unmarshal(b, (*plain)(e))
}

// JoinUser subscribes the caller to a user's personal notification room.
type JoinUser struct {
	UserID string `json:"userId"`
}

func (JoinUser) Kind() Kind        { return KindJoinUser }
func (e JoinUser) validate() error { return required(e.UserID) }

func (e *JoinUser) UnmarshalJSON(b []byte) error {
	if s, ok := bareString(b); ok {
		e.UserID = s
		return nil
	}
	type plain JoinUser
	return json.Unmarshal(b, (*plain)(e))
}

// ChatMessage is a chat line sent to a room. SenderModel and ReceiverModel
// are the legacy names of the kind fields.
type ChatMessage struct {
	RoomID        string `json:"roomId"`
	SenderID      string `json:"senderId"`
	SenderName    string `json:"senderName"`
	SenderKind    string `json:"senderKind"`
	SenderModel   string `json:"senderModel"`
	ReceiverID    string `json:"receiverId"`
	ReceiverKind  string `json:"receiverKind"`
	ReceiverModel string `json:"receiverModel"`
	Message       string `json:"message"`
}

func (ChatMessage) Kind() Kind        { return KindChatMessage }
func (e ChatMessage) validate() error { return required(e.RoomID, e.SenderID, e.Message) }

// Typing is a typing indicator relayed to a room.
type Typing struct {
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Typing     *bool  `json:"typing"`
}

func (Typing) Kind() Kind        { return KindTyping }
func (e Typing) validate() error { return required(e.RoomID, e.SenderID) }

// IsTyping defaults to true when the flag is absent.
func (e Typing) IsTyping() bool {
	return e.Typing == nil || *e.Typing
}
