package inmemdb

import (
	"context"
	"testing"

	"github.com/kozihub/kozi/core/alog"
)

func Test_logStore_Find(t *testing.T) {
	db, err := Open()
	if err != nil {
		t.Fatal(err)
	}
	store := NewLogStore(db)
	ctx := context.Background()

	type body struct {
		N int `json:"n"`
	}
	record := func(track string, rel ...string) {
		if _, err := store.Record(ctx, track, rel, body{N: 1}); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	record("A.Send", "c1", "u1")
	record("A.Send", "c1", "u2")
	record("A.Result", "c1", "u1")
	record("B.Send", "c2")

	tests := []struct {
		name string
		q    alog.Query
		want int
	}{
		{name: "by track", q: alog.Query{Track: "A.Send"}, want: 2},
		{name: "track and one rel", q: alog.Query{Track: "A.Send", Rel: []string{"u1"}}, want: 1},
		{name: "all rel ids must match", q: alog.Query{Track: "A.Send", Rel: []string{"c1", "u2"}}, want: 1},
		{name: "rel only", q: alog.Query{Rel: []string{"c1"}}, want: 3},
		{name: "empty query matches everything", q: alog.Query{}, want: 4},
		{name: "no match", q: alog.Query{Track: "A.Send", Rel: []string{"c2"}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Find(ctx, tt.q)
			if err != nil {
				t.Fatalf("Find() failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Find() = %d entries; want %d", len(got), tt.want)
			}
		})
	}
}
