package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"
)

// snapshot is the single durable blob: every entity map serialized together.
type snapshot struct {
	Customers     map[string]*Customer        `json:"customers"`
	Orders        map[string]*Order           `json:"orders"`
	Conversations map[string]*Conversation    `json:"conversations"`
	FollowUps     map[string]*PendingFollowUp `json:"follow_ups"`
	SavedAt       time.Time                   `json:"saved_at"`
}

// Save serializes all maps to path atomically (temp file + rename). The copy
// is taken under the store lock so the blob never observes a half-written
// entity.
func (s *RecordStore) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Customers:     make(map[string]*Customer, len(s.customers)),
		Orders:        make(map[string]*Order, len(s.orders)),
		Conversations: make(map[string]*Conversation, len(s.conversations)),
		FollowUps:     make(map[string]*PendingFollowUp, len(s.followUps)),
		SavedAt:       s.now(),
	}
	for k, c := range s.customers {
		cp := copyCustomer(c)
		snap.Customers[k] = &cp
	}
	for k, o := range s.orders {
		cp := *o
		snap.Orders[k] = &cp
	}
	for k, conv := range s.conversations {
		cp := copyConversation(conv)
		snap.Conversations[k] = &cp
	}
	for k, fu := range s.followUps {
		cp := *fu
		snap.FollowUps[k] = &cp
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	cleanup = false
	return nil
}

// Restore loads a snapshot blob back into the store. A missing or corrupt
// blob is not an error: the store starts empty and says so.
func (s *RecordStore) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no snapshot found, starting empty", "path", path)
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("snapshot unreadable, starting empty", "path", path, "error", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Customers != nil {
		s.customers = snap.Customers
	}
	if snap.Orders != nil {
		s.orders = snap.Orders
	}
	if snap.Conversations != nil {
		s.conversations = snap.Conversations
	}
	if snap.FollowUps != nil {
		s.followUps = snap.FollowUps
	}

	slog.Info("snapshot restored",
		"customers", len(s.customers),
		"orders", len(s.orders),
		"conversations", len(s.conversations),
		"follow_ups", len(s.followUps))
	return nil
}

// RunSnapshots saves the store on a schedule until ctx is cancelled, then
// takes a final save on the way out. cronExpr, when valid, drives the
// schedule; otherwise interval is used.
func (s *RecordStore) RunSnapshots(ctx context.Context, path, cronExpr string, interval time.Duration) {
	useCron := cronExpr != "" && gronx.New().IsValid(cronExpr)
	if cronExpr != "" && !useCron {
		slog.Warn("invalid snapshot cron expression, using interval", "cron", cronExpr, "interval", interval)
	}

	for {
		var wait time.Duration
		if useCron {
			next, err := gronx.NextTick(cronExpr, false)
			if err != nil {
				useCron = false
				continue
			}
			wait = time.Until(next)
		} else {
			wait = interval
		}

		select {
		case <-ctx.Done():
			if err := s.Save(path); err != nil {
				slog.Error("final snapshot failed", "error", err)
			}
			return
		case <-time.After(wait):
		}

		if err := s.Save(path); err != nil {
			slog.Error("snapshot failed", "error", err)
		} else {
			slog.Debug("snapshot saved", "path", path)
		}
	}
}
