package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is returned for an event name outside the inbound set.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload is returned when a payload does not match its schema.
	ErrInvalidPayload = errors.New("invalid payload")
)

var registry = map[Kind]func() Inbound{
	KindTutorStart:                func() Inbound { return &TutorStart{} },
	KindTutorStop:                 func() Inbound { return &TutorStop{} },
	KindStudentJoin:               func() Inbound { return &StudentJoin{} },
	KindStudentVerify:             func() Inbound { return &StudentVerify{} },
	KindTutorOffer:                func() Inbound { return &TutorOffer{} },
	KindStudentAnswer:             func() Inbound { return &StudentAnswer{} },
	KindICECandidate:              func() Inbound { return &ICECandidate{} },
	KindJoinStudentDashboard:      func() Inbound { return &JoinStudentDashboard{} },
	KindJoinMessageRoom:           func() Inbound { return &JoinMessageRoom{} },
	KindRequestUnseenCount:        func() Inbound { return &RequestUnseenCount{} },
	KindRequestConversationUnseen: func() Inbound { return &RequestConversationUnseen{} },
	KindMarkMessagesAsSeen:        func() Inbound { return &MarkMessagesAsSeen{} },
	KindJoinRoom:                  func() Inbound { return &JoinRoom{} },
	KindJoinUser:                  func() Inbound { return &JoinUser{} },
	KindChatMessage:               func() Inbound { return &ChatMessage{} },
	KindTyping:                    func() Inbound { return &Typing{} },
}

// Kinds returns every inbound kind the decoder accepts.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// Decode turns a wire event into its typed variant and validates it.
// The returned value is always a pointer to one of this package's types.
func Decode(event string, data json.RawMessage) (Inbound, error) {
	newFn, ok := registry[Kind(event)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	in := newFn()
	if !isEmptyJSON(data) {
		if err := json.Unmarshal(data, in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event, err)
		}
	}
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event, err)
	}
	return in, nil
}
