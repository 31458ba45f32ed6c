package events

// EffectKind selects how the hub applies an Effect.
type EffectKind int

const (
	// EffectJoin subscribes ConnID to Room.
	EffectJoin EffectKind = iota
	// EffectEmitRoom sends Event to every connection in Room except ConnID (if set).
	EffectEmitRoom
	// EffectEmitConn sends Event to ConnID only.
	EffectEmitConn
)

// Effect is one outbound side effect produced by a handler. Handlers never
// touch the transport; the hub applies effects in order.
type Effect struct {
	Kind    EffectKind
	Room    string
	ConnID  string
	Event   string
	Payload any
}

// Join subscribes a connection to a room.
func Join(connID, room string) Effect {
	return Effect{Kind: EffectJoin, ConnID: connID, Room: room}
}

// ToRoom emits to every connection in room.
func ToRoom(room, event string, payload any) Effect {
	return Effect{Kind: EffectEmitRoom, Room: room, Event: event, Payload: payload}
}

// ToRoomExcept emits to every connection in room but exceptConn.
func ToRoomExcept(room, exceptConn, event string, payload any) Effect {
	return Effect{Kind: EffectEmitRoom, Room: room, ConnID: exceptConn, Event: event, Payload: payload}
}

// ToConn emits to a single connection.
func ToConn(connID, event string, payload any) Effect {
	return Effect{Kind: EffectEmitConn, ConnID: connID, Event: event, Payload: payload}
}
