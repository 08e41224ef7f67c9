// Package scheduler deletes delivered messages after a delay.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Key identifies one chat message
type Key struct {
	ChatID    int64
	MessageID int
}

// Deleter removes a message from a chat.
type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type task struct {
	timer *time.Timer
}

// Scheduler runs one delayed deletion per message key. Scheduling a key
// again replaces its pending task.
type Scheduler struct {
	deleter Deleter
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	tasks  map[Key]*task
	closed bool
	wg     sync.WaitGroup
}

func New(deleter Deleter, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		deleter: deleter,
		logger:  logger,
		timeout: 10 * time.Second,
		tasks:   make(map[Key]*task),
	}
}

// Schedule deletes key after the given delay. then, if non-nil, runs after a
// successful deletion.
func (s *Scheduler) Schedule(key Key, after time.Duration, then func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}

	t := &task{}
	t.timer = time.AfterFunc(after, func() { s.run(key, t, then) })
	s.tasks[key] = t
}

// Cancel drops the pending deletion for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	return t.timer.Stop()
}

// Pending returns the number of scheduled deletions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending deletion and waits for running ones to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(key Key, t *task, then func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed || s.tasks[key] != t {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	log := s.logger.With(zap.Int64("chat_id", key.ChatID), zap.Int("message_id", key.MessageID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered in scheduled deletion", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.deleter.DeleteMessage(ctx, key.ChatID, key.MessageID); err != nil {
		log.Debug("Scheduled deletion failed", zap.Error(err))
		return
	}
	if then != nil {
		then(ctx)
	}
}
