// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists investigation records in BadgerDB.
//
// BadgerDB gives us local embedded storage with low-latency access, which
// fits the investigation lifecycle: one write per phase checkpoint plus one
// final write, and reads dominated by the case-review API.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
)

var (
	// ErrNotFound is returned when an investigation record does not exist.
	ErrNotFound = errors.New("investigation record not found")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("investigation store is closed")
)

const keyPrefix = "investigation/"

// Config holds configuration for the investigation store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the BadgerDB-backed investigation record store.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions provide
// isolation; the store itself holds no mutable state.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// Open creates the investigation store.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if path is invalid or the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open investigation store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// guard returns ErrClosed after Close, or the context error if any.
func (s *Store) guard(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

func recordKey(investigationID string) []byte {
	return []byte(keyPrefix + investigationID)
}

// SaveInvestigation upserts one investigation record.
//
// Inputs:
//
//	ctx - Cancellation. Checked before the write, not mid-transaction.
//	state - The record to persist. InvestigationID must not be empty.
//
// Outputs:
//
//	error - Non-nil on serialization or storage failure.
func (s *Store) SaveInvestigation(ctx context.Context, state *datatypes.InvestigationState) error {
	if state == nil || state.InvestigationID == "" {
		return errors.New("state with non-empty investigation_id is required")
	}
	if err := s.guard(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal investigation %s: %w", state.InvestigationID, err)
	}

	start := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(state.InvestigationID), payload)
	})
	if err != nil {
		return fmt.Errorf("save investigation %s: %w", state.InvestigationID, err)
	}

	slog.Debug("investigation record saved",
		slog.String("investigation_id", state.InvestigationID),
		slog.Int("bytes", len(payload)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// GetInvestigation loads one investigation record by ID.
//
// Outputs:
//
//	*datatypes.InvestigationState - The stored record.
//	error - ErrNotFound when the ID is unknown; other errors are storage
//	or deserialization failures.
func (s *Store) GetInvestigation(ctx context.Context, investigationID string) (*datatypes.InvestigationState, error) {
	if investigationID == "" {
		return nil, errors.New("investigation_id is required")
	}
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	var state datatypes.InvestigationState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(investigationID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, investigationID)
		}
		return nil, fmt.Errorf("get investigation %s: %w", investigationID, err)
	}
	return &state, nil
}

// ListInvestigations returns all stored investigation records.
//
// A record that fails to deserialize is skipped with a logged error rather
// than failing the whole listing: one corrupt value must not hide every
// other case from review.
func (s *Store) ListInvestigations(ctx context.Context) ([]*datatypes.InvestigationState, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	var records []*datatypes.InvestigationState
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				var state datatypes.InvestigationState
				if err := json.Unmarshal(val, &state); err != nil {
					slog.Error("skipping undecodable investigation record",
						slog.String("key", strings.TrimPrefix(key, keyPrefix)),
						slog.String("error", err.Error()),
					)
					return nil
				}
				records = append(records, &state)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	return records, nil
}

// DeleteInvestigation removes one record. Deleting an unknown ID is a no-op.
func (s *Store) DeleteInvestigation(ctx context.Context, investigationID string) error {
	if investigationID == "" {
		return errors.New("investigation_id is required")
	}
	if err := s.guard(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(investigationID))
	})
	if err != nil {
		return fmt.Errorf("delete investigation %s: %w", investigationID, err)
	}
	return nil
}
