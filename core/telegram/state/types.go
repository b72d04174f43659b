package state

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned by Store.Get for a chat that has no profile yet.
var ErrNotFound = errors.New("state: profile not found")

// Stage identifies the intake step a chat is at.
type Stage string

const (
	StageNew              Stage = "NEW"
	StageAskedAge         Stage = "ASKED_AGE"
	StageAskedCountry     Stage = "ASKED_COUNTRY"
	StageAskedCitizenship Stage = "ASKED_CITIZENSHIP"
	StageComplete         Stage = "COMPLETE"
)

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageNew, StageAskedAge, StageAskedCountry, StageAskedCitizenship, StageComplete:
		return true
	}
	return false
}

// Roles used in conversation memory.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of conversation memory.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Profile is everything the bot knows about a chat. Empty strings mean "not collected".
type Profile struct {
	ChatID      int64
	Stage       Stage
	Age         string
	Country     string
	Citizenship string
	History     []Turn
	UpdatedAt   time.Time
}

// NewProfile returns a fresh profile at StageNew.
func NewProfile(chatID int64) Profile {
	return Profile{ChatID: chatID, Stage: StageNew}
}

// AgeYears returns the age as an integer when it was given as digits.
func (p Profile) AgeYears() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(p.Age))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Complete reports whether all fields were collected.
func (p Profile) Complete() bool {
	return p.Stage == StageComplete
}

// Reset clears collected fields and memory and moves back to StageNew.
func (p *Profile) Reset() {
	*p = Profile{ChatID: p.ChatID, Stage: StageNew, UpdatedAt: p.UpdatedAt}
}

// Remember appends turns and keeps only the last limit entries. limit <= 0 keeps nothing.
func (p *Profile) Remember(limit int, turns ...Turn) {
	if limit <= 0 {
		p.History = nil
		return
	}
	h := append(slices.Clone(p.History), turns...)
	if len(h) > limit {
		h = h[len(h)-limit:]
	}
	p.History = h
}

// Clone returns a deep copy so callers never share the History backing array.
func (p Profile) Clone() Profile {
	p.History = slices.Clone(p.History)
	return p
}

// Store persists profiles by chat id. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, chatID int64) (Profile, error)
	Put(ctx context.Context, p Profile) error
}

// Counter is implemented by stores that can report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}
