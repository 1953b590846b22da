package filter

import (
	"net/url"
	"sync"
)

type (
	// Schema fixes the filterable fields of one entity type:
	// predicate name -> constructor.
	Schema map[string]Predicate

	// Query is the name -> query-shaped value mapping handed to repositories.
	Query map[string]interface{}

	// Filtering composes named predicates into a query object. Edits go to a
	// draft set; Done commits the draft to the settled set, which is the only
	// state ToQuery/ToParams/Get read. Subscribers are notified on commit,
	// but only when the settled state actually changed.
	Filtering struct {
		mu      sync.Mutex
		schema  Schema
		draft   map[string]Wrapper
		settled map[string]Wrapper
		subs    map[int]func()
		nextSub int
	}
)

func NewFiltering(schema Schema) *Filtering {
	return &Filtering{
		schema:  schema,
		draft:   make(map[string]Wrapper),
		settled: make(map[string]Wrapper),
		subs:    make(map[int]func()),
	}
}

// Subscribe registers fn to run after every Done that changed the settled
// state. The returned func cancels the subscription.
func (f *Filtering) Subscribe(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *Filtering) parse(name, param string) (Wrapper, error) {
	pred, ok := f.schema[name]
	if !ok {
		return nil, &ReadError{Name: name, Reason: "unknown filter"}
	}
	w, err := pred(param)
	if err != nil {
		if rerr, ok := err.(*ReadError); ok && rerr.Name == "" {
			rerr.Name = name
		}
		return nil, err
	}
	return w, nil
}

// Add parses param for the named predicate and merges it into the draft.
// It returns false when the parameter was rejected (draft untouched).
func (f *Filtering) Add(name, param string) (bool, error) {
	w, err := f.parse(name, param)
	if err != nil {
		return false, err
	}
	if w == nil {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.draft[name]; ok {
		f.draft[name] = existing.Merge(w)
	} else {
		f.draft[name] = w
	}
	return true, nil
}

// Remove subtracts param's value from the named predicate; when nothing
// remains the predicate is deleted from the draft.
func (f *Filtering) Remove(name, param string) error {
	w, err := f.parse(name, param)
	if err != nil {
		return err
	}
	if w == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.draft[name]
	if !ok {
		return nil
	}
	if rest := existing.Without(w); rest != nil {
		f.draft[name] = rest
	} else {
		delete(f.draft, name)
	}
	return nil
}

// Toggle with no param flips a boolean-style predicate: disables it when
// set, adds it with "1" otherwise. With a param it toggles membership of
// that value in a set-style predicate.
func (f *Filtering) Toggle(name string, param ...string) error {
	if len(param) == 0 {
		f.mu.Lock()
		_, set := f.draft[name]
		f.mu.Unlock()
		if set {
			f.Disable(name)
			return nil
		}
		_, err := f.Add(name, "1")
		return err
	}

	f.mu.Lock()
	existing, ok := f.draft[name]
	var present bool
	if ok {
		if vals, isList := existing.Get().([]string); isList {
			for _, v := range vals {
				if v == param[0] {
					present = true
					break
				}
			}
		}
	}
	f.mu.Unlock()

	if present {
		return f.Remove(name, param[0])
	}
	_, err := f.Add(name, param[0])
	return err
}

// Disable unconditionally deletes the named predicate from the draft.
func (f *Filtering) Disable(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.draft, name)
}

// Clear empties the draft; the settled state is untouched until Done.
func (f *Filtering) Clear() *Filtering {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = make(map[string]Wrapper)
	return f
}

// Read bulk-adds a name -> param mapping. Per-key ReadErrors are swallowed
// (best-effort parse of user-supplied URL state); anything else propagates.
func (f *Filtering) Read(list map[string]string) error {
	for name, param := range list {
		if _, err := f.Add(name, param); err != nil {
			if IsReadError(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// ReadAndValidate is Read without the fail-open behavior: the first
// ReadError aborts and propagates. Used where hard validation is wanted
// (API endpoints) rather than best-effort URL parsing.
func (f *Filtering) ReadAndValidate(list map[string]string) error {
	for name, param := range list {
		if _, err := f.Add(name, param); err != nil {
			return err
		}
	}
	return nil
}

// ReadValues reads URL query values, merging repeated keys.
func (f *Filtering) ReadValues(values url.Values, validate bool) error {
	for name, params := range values {
		for _, param := range params {
			if _, err := f.Add(name, param); err != nil {
				if !validate && IsReadError(err) {
					continue
				}
				return err
			}
		}
	}
	return nil
}

// Done commits the draft to the settled state. When the dirty-check finds
// no real change (same names, all wrappers equal) nothing happens; otherwise
// subscribers are notified.
func (f *Filtering) Done() *Filtering {
	f.mu.Lock()
	if f.equalsSettledLocked() {
		f.mu.Unlock()
		return f
	}
	settled := make(map[string]Wrapper, len(f.draft))
	for name, w := range f.draft {
		settled[name] = w
	}
	f.settled = settled
	subs := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return f
}

func (f *Filtering) equalsSettledLocked() bool {
	if len(f.draft) != len(f.settled) {
		return false
	}
	for name, w := range f.draft {
		prev, ok := f.settled[name]
		if !ok || !w.Equals(prev) {
			return false
		}
	}
	return true
}

// Get returns the settled semantic value for name, or nil.
func (f *Filtering) Get(name string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.settled[name]; ok {
		return w.Get()
	}
	return nil
}

// ToParams serializes the settled state to canonical string params.
func (f *Filtering) ToParams() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	params := make(map[string]string, len(f.settled))
	for name, w := range f.settled {
		params[name] = w.Param()
	}
	return params
}

// ToQuery maps the settled state to query-shaped values.
func (f *Filtering) ToQuery() Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := make(Query, len(f.settled))
	for name, w := range f.settled {
		q[name] = w.Query()
	}
	return q
}
