package state

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorePutReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := NewProfile(7)
	p.Age = "25"
	p.Remember(10, Turn{Role: RoleUser, Text: "hi"})
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the caller's value must not leak into the store.
	p.History[0].Text = "changed"

	got, err := s.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Age != "25" || got.Stage != StageNew {
		t.Fatalf("unexpected profile %+v", got)
	}
	if got.History[0].Text != "hi" {
		t.Fatalf("history shared with caller: %q", got.History[0].Text)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt not set")
	}

	got.History[0].Text = "again"
	again, _ := s.Get(ctx, 7)
	if again.History[0].Text != "hi" {
		t.Fatalf("history shared with reader: %q", again.History[0].Text)
	}

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d", n)
	}
}

func TestMemoryStoreConcurrentLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := NewProfile(1)
			p.Country = string(rune('A' + i))
			_ = s.Put(ctx, p)
			_, _ = s.Get(ctx, 1)
		}(i)
	}
	wg.Wait()
	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Country) != 1 {
		t.Fatalf("country = %q", got.Country)
	}
}

func TestProfileHelpers(t *testing.T) {
	p := NewProfile(3)
	p.Stage = StageComplete
	p.Age, p.Country, p.Citizenship = "31", "Poland", "Uzbekistan"
	if years, ok := p.AgeYears(); !ok || years != 31 {
		t.Fatalf("AgeYears = %d %v", years, ok)
	}
	p.Age = "thirty"
	if _, ok := p.AgeYears(); ok {
		t.Fatal("non-numeric age reported as numeric")
	}

	for i := 0; i < 5; i++ {
		p.Remember(3, Turn{Role: RoleUser, Text: string(rune('a' + i))})
	}
	if len(p.History) != 3 || p.History[0].Text != "c" || p.History[2].Text != "e" {
		t.Fatalf("history = %+v", p.History)
	}

	p.Reset()
	if p.Stage != StageNew || p.Age != "" || p.Country != "" || p.Citizenship != "" || p.History != nil {
		t.Fatalf("reset left data: %+v", p)
	}
	if p.ChatID != 3 {
		t.Fatalf("reset lost chat id: %d", p.ChatID)
	}

	if !StageAskedCountry.Valid() || Stage("DONE").Valid() {
		t.Fatal("Stage.Valid mismatch")
	}
}
