package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/logger"

	"github.com/google/uuid"
)

// Background task numbers, one redis token key per user and number.
const (
	TaskQueueKick      = 101
	TaskBattleShutdown = 102
)

// TimeoutScheduler arms per-user delayed tasks. Each schedule writes a fresh
// token under the task's redis key and starts an in-process timer; the timer
// only fires its callback while its token is still the current one, so
// re-scheduling or cancelling supersedes any armed timer, including one on
// another instance.
type TimeoutScheduler struct {
	cache *cache.Client

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimeoutScheduler(c *cache.Client) *TimeoutScheduler {
	return &TimeoutScheduler{
		cache:  c,
		timers: make(map[string]*time.Timer),
	}
}

func taskID(uid string, taskNo int) string {
	return fmt.Sprintf("%s:%d", uid, taskNo)
}

// Schedule arms fn to run after delay for (uid, taskNo), superseding any
// earlier schedule for the same pair.
func (s *TimeoutScheduler) Schedule(ctx context.Context, uid string, taskNo int, delay time.Duration, fn func(ctx context.Context)) {
	key := s.cache.Keys().UserBackgroundTask(uid, taskNo)
	token := uuid.NewString()
	if err := s.cache.SetString(ctx, key, token, delay+time.Minute); err != nil {
		logger.Error("failed to store delay task token", "uid", uid, "task", taskNo, "error", err)
		// Still arm the local timer; without the token the callback is
		// skipped, which fails toward not kicking.
	}

	id := taskID(uid, taskNo)
	t := time.AfterFunc(delay, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		current, existed, err := s.cache.GetString(runCtx, key)
		if err != nil || !existed || current != token {
			return
		}
		_ = s.cache.Delete(runCtx, key)
		s.forget(id)
		fn(runCtx)
	})

	s.mu.Lock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = t
	s.mu.Unlock()
}

// Cancel disarms the task for (uid, taskNo).
func (s *TimeoutScheduler) Cancel(ctx context.Context, uid string, taskNo int) {
	key := s.cache.Keys().UserBackgroundTask(uid, taskNo)
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Error("failed to delete delay task token", "uid", uid, "task", taskNo, "error", err)
	}

	id := taskID(uid, taskNo)
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// Stop disarms every pending timer (shutdown path).
func (s *TimeoutScheduler) Stop() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

func (s *TimeoutScheduler) forget(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
}
