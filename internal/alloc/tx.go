package alloc

// Tx is a scoped transaction guard: Begin starts it, and the idiomatic
// pattern is `tx := a.Begin(); defer tx.Rollback()` followed by an explicit
// `tx.Commit()` on the success path — Rollback after a successful Commit is
// a no-op, the same pattern *sql.Tx uses. This is the Go-idiomatic analogue
// of the RAII guard from spec §9's DESIGN NOTES: commit is explicit,
// "destructor-time" behavior (falling out of scope without committing) is
// rollback.
type Tx struct {
	a    *Allocator
	done bool
}

// Begin starts a transaction (nesting if one is already open) and returns a
// guard for it.
func (a *Allocator) Begin() (*Tx, error) {
	if err := a.file.Begin(); err != nil {
		return nil, err
	}
	return &Tx{a: a}, nil
}

// Commit commits the transaction this guard started.
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.a.file.Commit()
}

// Rollback aborts the transaction if it hasn't already been committed. Safe
// to call unconditionally, e.g. via defer.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.a.file.Rollback()
}
