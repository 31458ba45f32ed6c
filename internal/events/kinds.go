// Package events defines the wire vocabulary of the live core: the closed set
// of inbound event kinds with their payload schemas, the outbound event names,
// channel naming, and the effect values handlers return to the hub.
package events

import "strings"

// Kind names an inbound event.
type Kind string

const (
	KindTutorStart                Kind = "tutor-start"
	KindTutorStop                 Kind = "tutor-stop"
	KindStudentJoin               Kind = "student-join"
	KindStudentVerify             Kind = "student-verify"
	KindTutorOffer                Kind = "tutor-offer"
	KindStudentAnswer             Kind = "student-answer"
	KindICECandidate              Kind = "ice-candidate"
	KindJoinStudentDashboard      Kind = "joinStudentDashboard"
	KindJoinMessageRoom           Kind = "joinMessageRoom"
	KindRequestUnseenCount        Kind = "requestUnseenCount"
	KindRequestConversationUnseen Kind = "requestConversationUnseen"
	KindMarkMessagesAsSeen        Kind = "markMessagesAsSeen"
	KindJoinRoom                  Kind = "joinRoom"
	KindJoinUser                  Kind = "joinUser"
	KindChatMessage               Kind = "chatMessage"
	KindTyping                    Kind = "typing"
)

// Outbound event names.
const (
	OutLiveTutorsData         = "liveTutorsData"
	OutStudentJoin            = "student-join"
	OutStudentAnswer          = "student-answer"
	OutICECandidate           = "ice-candidate"
	OutTutorOffer             = "tutor-offer"
	OutViewerCountUpdate      = "viewerCountUpdate"
	OutTutorStoppedLive       = "tutorStoppedLive"
	OutStudentDisconnect      = "student-disconnect"
	OutUnseenCountUpdate      = "unseenCountUpdate"
	OutConversationUnseen     = "conversationUnseenUpdate"
	OutChatMessage            = "chatMessage"
	OutNewMessageNotification = "newMessageNotification"
	OutChatError              = "chatError"
	OutTyping                 = "typing"
	OutVerificationResponse   = "verification-response"
)

// StudentsChannel is joined by every open student dashboard.
const StudentsChannel = "students"

const (
	tutorChannelPrefix = "tutor-"
	userMessagesPrefix = "user-messages-"
)

// TutorChannel is the audience channel of one tutor's live session.
func TutorChannel(tutorID string) string {
	return tutorChannelPrefix + tutorID
}

// UserMessagesChannel carries unseen-count updates for one user.
func UserMessagesChannel(userID string) string {
	return userMessagesPrefix + userID
}

// IsLiveSessionRoom reports whether a chat room id belongs to a live session
// rather than a direct conversation.
func IsLiveSessionRoom(roomID string) bool {
	return strings.HasPrefix(roomID, tutorChannelPrefix)
}

// DirectRoomID returns the canonical room id of a two-party conversation.
func DirectRoomID(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}
