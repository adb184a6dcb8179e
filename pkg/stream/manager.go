package stream

import (
	"context"
	"sync"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
)

// Manager keeps at most one live session per conversation. Starting a new
// session for a conversation cancels the one it replaces.
type Manager struct {
	transport     Transport
	opts          []Option
	activeStreams map[string]*ActiveStream
	mu            sync.RWMutex
}

type ActiveStream struct {
	ConversationID string
	Session        *Session
	StartTime      time.Time
}

func NewManager(transport Transport, opts ...Option) *Manager {
	return &Manager{
		transport:     transport,
		opts:          opts,
		activeStreams: make(map[string]*ActiveStream),
	}
}

// Start begins a session for conversationID. Extra options are applied
// after the manager defaults.
func (m *Manager) Start(ctx context.Context, conversationID string, req chat.ChatRequest, onSnapshot SnapshotFunc, onError ErrorFunc, opts ...Option) *Session {
	m.mu.Lock()
	if prev, exists := m.activeStreams[conversationID]; exists {
		prev.Session.Cancel()
	}

	all := append(append([]Option{}, m.opts...), opts...)
	session := Start(ctx, m.transport, req, onSnapshot, onError, all...)
	m.activeStreams[conversationID] = &ActiveStream{
		ConversationID: conversationID,
		Session:        session,
		StartTime:      time.Now(),
	}
	m.mu.Unlock()

	go func() {
		<-session.Done()
		m.endStream(conversationID, session)
	}()

	return session
}

// GetStream returns the live session of a conversation.
func (m *Manager) GetStream(conversationID string) (*ActiveStream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stream, exists := m.activeStreams[conversationID]
	return stream, exists
}

// Cancel stops the live session of a conversation, reporting whether there
// was one.
func (m *Manager) Cancel(conversationID string) bool {
	m.mu.RLock()
	stream, exists := m.activeStreams[conversationID]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	stream.Session.Cancel()
	return true
}

// CancelAll stops every live session.
func (m *Manager) CancelAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, stream := range m.activeStreams {
		stream.Session.Cancel()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeStreams)
}

// endStream forgets a finished session unless it was already replaced.
func (m *Manager) endStream(conversationID string, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stream, exists := m.activeStreams[conversationID]; exists && stream.Session == session {
		delete(m.activeStreams, conversationID)
	}
}
