package filter

import (
	"reflect"
	"testing"
	"time"
)

func Test_predicates_paramRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		pred  Predicate
		param string
	}{
		{"string", String, "yoga"},
		{"id", ID, "r9TgXk"},
		{"ids", IDs, "b,a,c"},
		{"require", Require, "yes"},
		{"flag true", Flag, "1"},
		{"flag false", Flag, "0"},
		{"date day", Date, "2021-03-14"},
		{"date now", Date, "now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig, err := tt.pred(tt.param)
			if err != nil {
				t.Fatalf("constructor: %v", err)
			}
			if orig == nil {
				t.Fatal("constructor rejected param")
			}
			again, err := tt.pred(orig.Param())
			if err != nil {
				t.Fatalf("re-parsing %q: %v", orig.Param(), err)
			}
			if again == nil {
				t.Fatalf("re-parsing %q rejected", orig.Param())
			}
			if !again.Equals(orig) {
				t.Errorf("round trip changed value: %q -> %q", tt.param, again.Param())
			}
		})
	}
}

func Test_ids(t *testing.T) {
	w, _ := IDs("a,b,a")
	got := w.Get().([]string)
	if len(got) != 2 {
		t.Fatalf("expected 2 ids, got %v", got)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected {a,b}, got %v", got)
	}

	ab, _ := IDs("a,b")
	bc, _ := IDs("b,c")
	union := ab.Merge(bc)
	if !reflect.DeepEqual(union.Get(), []string{"a", "b", "c"}) {
		t.Errorf("merge: expected {a,b,c}, got %v", union.Get())
	}
	// operands untouched
	if !reflect.DeepEqual(ab.Get(), []string{"a", "b"}) || !reflect.DeepEqual(bc.Get(), []string{"b", "c"}) {
		t.Error("merge mutated an operand")
	}

	abc, _ := IDs("a,b,c")
	all, _ := IDs("c,a,b")
	if rest := abc.Without(all); rest != nil {
		t.Errorf("removing everything should collapse the predicate, got %v", rest.Get())
	}
	if rest := abc.Without(bc); !reflect.DeepEqual(rest.Get(), []string{"a"}) {
		t.Errorf("difference: expected {a}, got %v", rest.Get())
	}

	ordered, _ := IDs("c,b,a")
	if !abc.Equals(ordered) {
		t.Error("set equality must ignore order")
	}
}

func Test_id_allSentinel(t *testing.T) {
	w, err := ID("all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != nil {
		t.Error(`"all" should be rejected (no filter)`)
	}
}

func Test_flag(t *testing.T) {
	tests := []struct {
		param    string
		rejected bool
		value    bool
	}{
		{"1", false, true},
		{"0", false, false},
		{"", true, false},
		// base-2 prefix parse, kept bug-for-bug compatible with the
		// legacy system: "10" is binary 2 (true), "2" has no binary
		// digits at all and is rejected.
		{"10", false, true},
		{"2", true, false},
		{"01", false, true},
		{"0x", false, false},
	}
	for _, tt := range tests {
		w, err := Flag(tt.param)
		if err != nil {
			t.Fatalf("Flag(%q): %v", tt.param, err)
		}
		if tt.rejected {
			if w != nil {
				t.Errorf("Flag(%q): expected rejection, got %v", tt.param, w.Get())
			}
			continue
		}
		if w == nil {
			t.Fatalf("Flag(%q): unexpected rejection", tt.param)
		}
		if w.Get() != tt.value {
			t.Errorf("Flag(%q) = %v, want %v", tt.param, w.Get(), tt.value)
		}
	}
}

func Test_require(t *testing.T) {
	if w, _ := Require(""); w != nil {
		t.Error("empty param should be rejected")
	}
	w, _ := Require("anything")
	if w.Get() != true {
		t.Error("any non-empty param should activate the flag")
	}
	if w.Param() != "1" {
		t.Errorf("canonical encoding should be \"1\", got %q", w.Param())
	}
	if w.Without(w) != nil {
		t.Error("presence flags cannot be partially removed")
	}
}

func Test_date(t *testing.T) {
	w, err := Date("now")
	if err != nil {
		t.Fatalf("Date(now): %v", err)
	}
	q, ok := w.Query().(time.Time)
	if !ok {
		t.Fatalf("Query() should be a time.Time, got %T", w.Query())
	}
	if d := time.Since(q); d < 0 || d > time.Second {
		t.Errorf("Date(now) is %v off current time", d)
	}

	for _, bad := range []string{"", "not-a-date", "2021-13-45"} {
		if _, err := Date(bad); !IsReadError(err) {
			t.Errorf("Date(%q): expected ReadError, got %v", bad, err)
		}
	}

	day, err := Date("2021-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if got := day.Query().(time.Time); got.Year() != 2021 || got.Month() != time.March || got.Day() != 14 {
		t.Errorf("unexpected parsed day: %v", got)
	}
}
