package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavlink/realtime/ws"
)

func presenceEvents(p *fakePublisher) []ws.UserPresenceData {
	var out []ws.UserPresenceData
	for _, c := range p.snapshot() {
		if c.event.Op != ws.OpUserPresence {
			continue
		}
		data, err := ws.Decode[ws.UserPresenceData](c.event.Data)
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out
}

func TestPresenceBroadcastsTransitionsOnly(t *testing.T) {
	pub := newFakePublisher()
	svc := NewPresenceService(pub)

	svc.UserConnected("alice")
	svc.UserConnected("alice") // second tab, no transition

	events := presenceEvents(pub)
	require.Len(t, events, 1)
	assert.Equal(t, ws.UserPresenceData{UserID: "alice", Online: true}, events[0])
	assert.True(t, svc.IsOnline("alice"))

	svc.UserDisconnected("alice")
	events = presenceEvents(pub)
	require.Len(t, events, 2)
	assert.Equal(t, ws.UserPresenceData{UserID: "alice", Online: false}, events[1])
	assert.False(t, svc.IsOnline("alice"))
}

func TestPresenceIgnoresUnknownDisconnect(t *testing.T) {
	pub := newFakePublisher()
	svc := NewPresenceService(pub)

	svc.UserDisconnected("ghost")
	assert.Empty(t, presenceEvents(pub))
}

func TestPresenceAnnounceRepairsMissedTransition(t *testing.T) {
	pub := newFakePublisher()
	svc := NewPresenceService(pub)

	svc.UserAnnounced("alice")
	events := presenceEvents(pub)
	require.Len(t, events, 1)
	assert.True(t, events[0].Online)

	// Already online: announcing again stays quiet.
	svc.UserAnnounced("alice")
	assert.Len(t, presenceEvents(pub), 1)
}

func TestPresenceOnlineUserIDs(t *testing.T) {
	pub := newFakePublisher()
	svc := NewPresenceService(pub)

	svc.UserConnected("alice")
	svc.UserConnected("bob")
	svc.UserDisconnected("alice")

	assert.ElementsMatch(t, []string{"bob"}, svc.OnlineUserIDs())
}
