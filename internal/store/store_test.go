package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := testStore(t)

	var v string
	found, err := s.Get("nothing", &v)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected missing key to report not found")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := testStore(t)

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	want := record{Name: "alpha", Count: 7}

	if err := s.Set("rec", want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got record
	found, err := s.Get("rec", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to exist")
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}
}

func TestSetOverwrites(t *testing.T) {
	s := testStore(t)

	if err := s.Set("k", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("k", 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var v int
	if _, err := s.Get("k", &v); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 2 {
		t.Errorf("got %d, want 2", v)
	}
}

func TestUpdateMergesExistingValue(t *testing.T) {
	s := testStore(t)

	if err := s.Set("counters", map[string]int{"a": 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err := s.Update("counters", func(raw []byte) (any, error) {
		m := map[string]int{}
		if raw != nil {
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
		}
		m["a"]++
		m["b"] = 5
		return m, nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var m map[string]int
	if _, err := s.Get("counters", &m); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m["a"] != 2 || m["b"] != 5 {
		t.Errorf("merged value = %v, want a=2 b=5", m)
	}
}

func TestUpdateMissingKeyGetsNilRaw(t *testing.T) {
	s := testStore(t)

	err := s.Update("fresh", func(raw []byte) (any, error) {
		if raw != nil {
			t.Errorf("expected nil raw for missing key, got %s", raw)
		}
		return "seeded", nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var v string
	if _, err := s.Get("fresh", &v); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "seeded" {
		t.Errorf("got %q, want %q", v, "seeded")
	}
}

func TestSubscribeFiresOnWrite(t *testing.T) {
	s := testStore(t)

	var seen []string
	s.Subscribe(func(key string) {
		seen = append(seen, key)
	})

	if err := s.Set("watched", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != "watched" {
		t.Errorf("subscriber saw %v, want [watched]", seen)
	}
}

func TestSessionAnalyticsMerge(t *testing.T) {
	s := testStore(t)
	day := "2026-08-30"

	if err := s.AddSessionAnalytics(day, Analytics{Likes: 2}); err != nil {
		t.Fatalf("AddSessionAnalytics failed: %v", err)
	}
	if err := s.AddSessionAnalytics(day, Analytics{Likes: 1, Nopes: 3}); err != nil {
		t.Fatalf("AddSessionAnalytics failed: %v", err)
	}

	a, err := s.SessionAnalytics(day)
	if err != nil {
		t.Fatalf("SessionAnalytics failed: %v", err)
	}
	if a.Likes != 3 || a.Nopes != 3 {
		t.Errorf("merged analytics = %+v, want likes=3 nopes=3", a)
	}
	if a.Total() != 6 {
		t.Errorf("Total() = %d, want 6", a.Total())
	}
}

func TestSessionAnalyticsSeparateDays(t *testing.T) {
	s := testStore(t)

	if err := s.AddSessionAnalytics("2026-08-29", Analytics{Likes: 1}); err != nil {
		t.Fatalf("AddSessionAnalytics failed: %v", err)
	}
	if err := s.AddSessionAnalytics("2026-08-30", Analytics{Likes: 5}); err != nil {
		t.Fatalf("AddSessionAnalytics failed: %v", err)
	}

	a, err := s.SessionAnalytics("2026-08-30")
	if err != nil {
		t.Fatalf("SessionAnalytics failed: %v", err)
	}
	if a.Likes != 5 {
		t.Errorf("today's bucket = %+v, want likes=5", a)
	}
}

func TestResetSessionAnalytics(t *testing.T) {
	s := testStore(t)
	day := "2026-08-30"

	if err := s.AddSessionAnalytics(day, Analytics{Likes: 4, Matches: 2}); err != nil {
		t.Fatalf("AddSessionAnalytics failed: %v", err)
	}
	if err := s.ResetSessionAnalytics(day); err != nil {
		t.Fatalf("ResetSessionAnalytics failed: %v", err)
	}

	a, err := s.SessionAnalytics(day)
	if err != nil {
		t.Fatalf("SessionAnalytics failed: %v", err)
	}
	if a != (Analytics{}) {
		t.Errorf("bucket after reset = %+v, want zero", a)
	}
}

func TestAllTimeAnalyticsAccumulates(t *testing.T) {
	s := testStore(t)

	if err := s.AddAllTimeAnalytics(Analytics{Likes: 10}); err != nil {
		t.Fatalf("AddAllTimeAnalytics failed: %v", err)
	}
	if err := s.AddAllTimeAnalytics(Analytics{Likes: 5, MessagesSent: 2}); err != nil {
		t.Fatalf("AddAllTimeAnalytics failed: %v", err)
	}

	a, err := s.AllTimeAnalytics()
	if err != nil {
		t.Fatalf("AllTimeAnalytics failed: %v", err)
	}
	if a.Likes != 15 || a.MessagesSent != 2 {
		t.Errorf("all-time = %+v, want likes=15 messages=2", a)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := s.Set("durable", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := New(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s2.Close()

	var v string
	found, err := s2.Get("durable", &v)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || v != "value" {
		t.Errorf("after reopen: found=%v v=%q, want value", found, v)
	}
}
