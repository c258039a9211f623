package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(base time.Time) []Record {
	return []Record{
		{
			Timestamp:  base,
			Kind:       "ambulance",
			Originator: "amb",
			Selected:   []string{"d1", "d2"},
			Delivered:  map[string]bool{"d1": true, "d2": false},
			Committed:  map[string]bool{"d1": true},
			Notified:   1,
			Skipped:    1,
		},
		{
			Timestamp:  base.Add(time.Minute),
			Kind:       "person",
			Originator: "p1",
			Selected:   []string{"d1"},
			Delivered:  map[string]bool{"d1": true},
			Notified:   1,
		},
	}
}

func runStoreTests(t *testing.T, store LogStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, rec := range sampleRecords(base) {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].Notified != 1 || all[0].Committed["d1"] != true {
		t.Fatalf("record did not round-trip: %+v", all[0])
	}

	byKind, err := store.Query(ctx, Query{Kind: "person"})
	if err != nil {
		t.Fatalf("query kind: %v", err)
	}
	if len(byKind) != 1 || byKind[0].Originator != "p1" {
		t.Fatalf("kind filter failed: %+v", byKind)
	}

	byToken, err := store.Query(ctx, Query{Token: "d2"})
	if err != nil {
		t.Fatalf("query token: %v", err)
	}
	if len(byToken) != 1 || byToken[0].Kind != "ambulance" {
		t.Fatalf("token filter failed: %+v", byToken)
	}

	byTime, err := store.Query(ctx, Query{Start: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("query time: %v", err)
	}
	if len(byTime) != 1 || byTime[0].Kind != "person" {
		t.Fatalf("time filter failed: %+v", byTime)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "dispatch.log"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	runStoreTests(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "dispatch.log"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	runStoreTests(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dispatch.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	runStoreTests(t, store)
}

func TestQueryMatches(t *testing.T) {
	rec := Record{
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:       "ambulance",
		Originator: "amb",
		Selected:   []string{"d1"},
	}
	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"kind match", Query{Kind: "ambulance"}, true},
		{"kind mismatch", Query{Kind: "person"}, false},
		{"originator token", Query{Token: "amb"}, true},
		{"selected token", Query{Token: "d1"}, true},
		{"unknown token", Query{Token: "d9"}, false},
		{"before start", Query{Start: rec.Timestamp.Add(time.Second)}, false},
		{"after end", Query{End: rec.Timestamp.Add(-time.Second)}, false},
	}
	for _, c := range cases {
		if got := c.q.Matches(rec); got != c.want {
			t.Errorf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
}
