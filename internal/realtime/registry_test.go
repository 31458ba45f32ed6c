package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id   string
	full bool

	mu   sync.Mutex
	msgs []WSMessage
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg WSMessage) bool {
	if p.full {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return true
}

func (p *fakePeer) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Event)
	}
	return out
}

func (p *fakePeer) last(event string) (WSMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.msgs) - 1; i >= 0; i-- {
		if p.msgs[i].Event == event {
			return p.msgs[i], true
		}
	}
	return WSMessage{}, false
}

func TestRegistry_JoinAndRemove(t *testing.T) {
	r := NewRegistry()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.Add(a, ConnInfo{UserID: "u-a"})
	r.Add(b, ConnInfo{UserID: "u-b"})

	assert.True(t, r.Join("a", "room"))
	assert.False(t, r.Join("a", "room"))
	assert.False(t, r.Join("b", "room"))
	assert.True(t, r.Join("a", "solo"))
	assert.False(t, r.Join("ghost", "room"))

	assert.Equal(t, 2, r.RoomSize("room"))
	assert.Len(t, r.Members("room", "a"), 1)
	assert.Equal(t, []string{"room", "solo"}, r.Rooms("a"))

	info, ok := r.Info("b")
	require.True(t, ok)
	assert.Equal(t, "u-b", info.UserID)

	assert.Equal(t, []string{"solo"}, r.Remove("a"))
	assert.Nil(t, r.Remove("a"))
	assert.Equal(t, []string{"room"}, r.Remove("b"))
	assert.Zero(t, r.Len())
	_, ok = r.Peer("a")
	assert.False(t, ok)
}
