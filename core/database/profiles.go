package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/infohelper/euwork-bot/core/telegram/state"
)

// ProfileStore keeps chat profiles in the chat_profiles table.
type ProfileStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var (
	_ state.Store   = (*ProfileStore)(nil)
	_ state.Counter = (*ProfileStore)(nil)
)

// NewProfileStore wraps an open, migrated database.
func NewProfileStore(db *sqlx.DB) *ProfileStore {
	return &ProfileStore{db: db, now: time.Now}
}

type profileRow struct {
	ChatID      int64     `db:"chat_id"`
	Stage       string    `db:"stage"`
	Age         string    `db:"age"`
	Country     string    `db:"country"`
	Citizenship string    `db:"citizenship"`
	History     string    `db:"history"`
	UpdatedAt   time.Time `db:"updated_at"`
}

const selectProfile = `SELECT chat_id, stage, age, country, citizenship, history, updated_at
FROM chat_profiles WHERE chat_id = ?`

const upsertProfile = `INSERT INTO chat_profiles (chat_id, stage, age, country, citizenship, history, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (chat_id) DO UPDATE SET
    stage = excluded.stage,
    age = excluded.age,
    country = excluded.country,
    citizenship = excluded.citizenship,
    history = excluded.history,
    updated_at = excluded.updated_at`

// Get loads the profile for chatID or returns state.ErrNotFound.
func (s *ProfileStore) Get(ctx context.Context, chatID int64) (state.Profile, error) {
	var row profileRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(selectProfile), chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state.Profile{}, state.ErrNotFound
		}
		return state.Profile{}, fmt.Errorf("get profile %d: %w", chatID, err)
	}
	return row.toProfile()
}

// Put inserts or replaces the profile.
func (s *ProfileStore) Put(ctx context.Context, p state.Profile) error {
	history, err := json.Marshal(historyOrEmpty(p.History))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	stage := p.Stage
	if stage == "" {
		stage = state.StageNew
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(upsertProfile),
		p.ChatID, string(stage), p.Age, p.Country, p.Citizenship, string(history), s.now().UTC())
	if err != nil {
		return fmt.Errorf("put profile %d: %w", p.ChatID, err)
	}
	return nil
}

// Count returns the number of stored profiles.
func (s *ProfileStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chat_profiles`); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func (r profileRow) toProfile() (state.Profile, error) {
	stage := state.Stage(r.Stage)
	if !stage.Valid() {
		return state.Profile{}, fmt.Errorf("profile %d: unknown stage %q", r.ChatID, r.Stage)
	}
	var history []state.Turn
	if r.History != "" {
		if err := json.Unmarshal([]byte(r.History), &history); err != nil {
			return state.Profile{}, fmt.Errorf("profile %d: decode history: %w", r.ChatID, err)
		}
	}
	if len(history) == 0 {
		history = nil
	}
	return state.Profile{
		ChatID:      r.ChatID,
		Stage:       stage,
		Age:         r.Age,
		Country:     r.Country,
		Citizenship: r.Citizenship,
		History:     history,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func historyOrEmpty(h []state.Turn) []state.Turn {
	if h == nil {
		return []state.Turn{}
	}
	return h
}
