package filter

import (
	"net/url"
	"reflect"
	"testing"
)

func testSchema() Schema {
	return Schema{
		"region":     ID,
		"search":     String,
		"categories": IDs,
		"start":      Date,
		"internal":   Flag,
		"upcoming":   Require,
	}
}

func Test_filtering_addRejectionLeavesStateUntouched(t *testing.T) {
	f := NewFiltering(testSchema())
	if _, err := f.Add("region", "gotham"); err != nil {
		t.Fatal(err)
	}
	f.Done()

	ok, err := f.Add("region", "all")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error(`add("region", "all") should report rejection`)
	}
	f.Done()
	if got := f.Get("region"); got != "gotham" {
		t.Errorf("rejected add must leave existing state, got %v", got)
	}
}

func Test_filtering_unknownName(t *testing.T) {
	f := NewFiltering(testSchema())
	if _, err := f.Add("bogus", "x"); !IsReadError(err) {
		t.Errorf("expected ReadError for unknown filter, got %v", err)
	}
}

func Test_filtering_settledOnlyAfterDone(t *testing.T) {
	f := NewFiltering(testSchema())
	_, _ = f.Add("search", "painting")
	if got := f.Get("search"); got != nil {
		t.Errorf("draft edits must not be visible before Done, got %v", got)
	}
	if len(f.ToQuery()) != 0 {
		t.Error("ToQuery must read settled state only")
	}
	f.Done()
	if got := f.Get("search"); got != "painting" {
		t.Errorf("expected committed value, got %v", got)
	}

	// Clear touches the draft only.
	f.Clear()
	if got := f.Get("search"); got != "painting" {
		t.Errorf("Clear before Done must not change settled state, got %v", got)
	}
	f.Done()
	if got := f.Get("search"); got != nil {
		t.Errorf("cleared state should commit empty, got %v", got)
	}
}

func Test_filtering_doneNotifiesOnlyOnRealChange(t *testing.T) {
	f := NewFiltering(testSchema())
	var fired int
	cancel := f.Subscribe(func() { fired++ })

	_, _ = f.Add("categories", "a,b")
	f.Done()
	if fired != 1 {
		t.Fatalf("expected 1 notification, got %d", fired)
	}

	// no intervening edits: second Done is a no-op
	f.Done()
	if fired != 1 {
		t.Errorf("unchanged Done must not notify, got %d", fired)
	}

	// re-reading identical input is not a change either
	_ = f.Clear().Read(map[string]string{"categories": "b,a"})
	f.Done()
	if fired != 1 {
		t.Errorf("equal settled state must not notify, got %d", fired)
	}

	cancel()
	_, _ = f.Add("categories", "c")
	f.Done()
	if fired != 1 {
		t.Errorf("cancelled subscriber must not fire, got %d", fired)
	}
}

func Test_filtering_toggle(t *testing.T) {
	f := NewFiltering(testSchema())

	// boolean style
	if err := f.Toggle("upcoming"); err != nil {
		t.Fatal(err)
	}
	f.Done()
	if f.Get("upcoming") != true {
		t.Error("first toggle should set the flag")
	}
	if err := f.Toggle("upcoming"); err != nil {
		t.Fatal(err)
	}
	f.Done()
	if f.Get("upcoming") != nil {
		t.Error("second toggle should disable the flag")
	}

	// set style
	_ = f.Toggle("categories", "a")
	_ = f.Toggle("categories", "b")
	f.Done()
	if got := f.Get("categories"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected {a,b}, got %v", got)
	}
	_ = f.Toggle("categories", "a")
	f.Done()
	if got := f.Get("categories"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected {b}, got %v", got)
	}
	_ = f.Toggle("categories", "b")
	f.Done()
	if f.Get("categories") != nil {
		t.Error("removing the last member should delete the predicate")
	}
}

func Test_filtering_readSwallowsReadErrors(t *testing.T) {
	f := NewFiltering(testSchema())
	err := f.Read(map[string]string{
		"region": "gotham",
		"start":  "garbage", // ReadError, skipped
		"bogus":  "x",       // unknown, skipped
	})
	if err != nil {
		t.Fatalf("Read must fail open per key: %v", err)
	}
	f.Done()
	if f.Get("region") != "gotham" {
		t.Error("valid keys should still apply")
	}
	if f.Get("start") != nil {
		t.Error("invalid date must not apply")
	}

	v := NewFiltering(testSchema())
	if err := v.ReadAndValidate(map[string]string{"start": "garbage"}); !IsReadError(err) {
		t.Errorf("ReadAndValidate must propagate, got %v", err)
	}
}

func Test_filtering_paramsRoundTrip(t *testing.T) {
	f := NewFiltering(testSchema())
	err := f.Read(map[string]string{
		"region":     "gotham",
		"categories": "sport,craft",
		"start":      "2021-03-14",
	})
	if err != nil {
		t.Fatal(err)
	}
	f.Done()

	// through URL encoding and back
	values := make(url.Values)
	for name, param := range f.ToParams() {
		values.Set(name, param)
	}
	decoded, err := url.ParseQuery(values.Encode())
	if err != nil {
		t.Fatal(err)
	}

	g := NewFiltering(testSchema())
	if err := g.ReadValues(decoded, true); err != nil {
		t.Fatal(err)
	}
	g.Done()

	if !reflect.DeepEqual(f.ToParams(), g.ToParams()) {
		t.Errorf("round trip mismatch:\n  first:  %v\n  second: %v", f.ToParams(), g.ToParams())
	}
	if !reflect.DeepEqual(f.ToQuery(), g.ToQuery()) {
		t.Errorf("query mismatch after round trip")
	}
}

func Test_filtering_removeCollapses(t *testing.T) {
	f := NewFiltering(testSchema())
	_, _ = f.Add("categories", "a,b")
	if err := f.Remove("categories", "b,a"); err != nil {
		t.Fatal(err)
	}
	f.Done()
	if f.Get("categories") != nil {
		t.Error("removing all values should delete the key")
	}
}
