package dialog

import (
	"sync"
	"time"
)

// SweepInterval is how often expired contexts are evicted.
const SweepInterval = 6 * time.Hour

// Store keeps the per-chat contexts in memory.
type Store struct {
	mu          sync.RWMutex
	contexts    map[int64]*ChatContext
	sweepTicker *time.Ticker
	stopChan    chan struct{}
}

func NewStore() *Store {
	return &Store{
		contexts: make(map[int64]*ChatContext),
		stopChan: make(chan struct{}),
	}
}

// Get returns the context for a chat, creating a fresh one when none
// exists or the existing one has expired.
func (s *Store) Get(chatID int64) *ChatContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.contexts[chatID]
	if !ok {
		ctx = NewChatContext(chatID)
		s.contexts[chatID] = ctx
		log.Info("Created new context for chat %d", chatID)
		return ctx
	}
	if ctx.IsExpired() {
		log.Info("Context for chat %d expired, creating new", chatID)
		ctx = NewChatContext(chatID)
		s.contexts[chatID] = ctx
	}
	return ctx
}

// Reset discards the context for a chat and returns a fresh one.
func (s *Store) Reset(chatID int64) *ChatContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := NewChatContext(chatID)
	s.contexts[chatID] = ctx
	log.Info("Reset context for chat %d", chatID)
	return ctx
}

// Len reports the number of stored contexts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// CleanupExpired evicts expired contexts and returns how many went.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []int64
	for chatID, ctx := range s.contexts {
		if ctx.IsExpired() {
			expired = append(expired, chatID)
		}
	}
	for _, chatID := range expired {
		delete(s.contexts, chatID)
		log.Info("Removed expired context for chat %d", chatID)
	}
	if len(expired) > 0 {
		log.Info("Cleaned up %d expired contexts", len(expired))
	}
	return len(expired)
}

// StartSweeper evicts expired contexts on a fixed interval until Stop.
func (s *Store) StartSweeper() {
	s.sweepTicker = time.NewTicker(SweepInterval)
	go func() {
		for {
			select {
			case <-s.sweepTicker.C:
				s.CleanupExpired()
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *Store) Stop() {
	if s.sweepTicker != nil {
		s.sweepTicker.Stop()
	}
	close(s.stopChan)
}
