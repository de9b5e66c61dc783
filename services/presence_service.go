package services

import (
	"log"
	"sync"

	"github.com/xavlink/realtime/ws"
)

// PresenceService tracks which users are online and broadcasts transitions.
// State is rebuilt from connections each session; nothing is persisted, so a
// gateway restart simply starts everyone offline until they reconnect.
type PresenceService interface {
	UserConnected(userID string)
	UserDisconnected(userID string)
	UserAnnounced(userID string)
	OnlineUserIDs() []string
	IsOnline(userID string) bool
}

type presenceService struct {
	mu        sync.RWMutex
	online    map[string]bool
	publisher ws.Publisher
}

// NewPresenceService creates the presence tracker.
func NewPresenceService(publisher ws.Publisher) PresenceService {
	return &presenceService{
		online:    make(map[string]bool),
		publisher: publisher,
	}
}

// UserConnected handles a user's first connection.
func (s *presenceService) UserConnected(userID string) {
	s.mu.Lock()
	already := s.online[userID]
	s.online[userID] = true
	s.mu.Unlock()

	if already {
		return
	}
	s.broadcast(userID, true)
	log.Printf("[presence] user %s is now online", userID)
}

// UserDisconnected handles a user's last connection dropping.
func (s *presenceService) UserDisconnected(userID string) {
	s.mu.Lock()
	was := s.online[userID]
	delete(s.online, userID)
	s.mu.Unlock()

	if !was {
		return
	}
	s.broadcast(userID, false)
	log.Printf("[presence] user %s is now offline", userID)
}

// UserAnnounced handles an explicit user_online op. The connect path already
// marked the user online, so this only repairs state after a missed
// transition (e.g. a hub restart that kept the TCP connection alive).
func (s *presenceService) UserAnnounced(userID string) {
	s.mu.Lock()
	already := s.online[userID]
	s.online[userID] = true
	s.mu.Unlock()

	if !already {
		s.broadcast(userID, true)
	}
}

func (s *presenceService) OnlineUserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.online))
	for id := range s.online {
		ids = append(ids, id)
	}
	return ids
}

func (s *presenceService) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online[userID]
}

func (s *presenceService) broadcast(userID string, online bool) {
	event, err := ws.NewEvent(ws.OpUserPresence, ws.UserPresenceData{
		UserID: userID,
		Online: online,
	})
	if err != nil {
		log.Printf("[presence] failed to build presence event: %v", err)
		return
	}
	s.publisher.BroadcastToAll(event)
}
