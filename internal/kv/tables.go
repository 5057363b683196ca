package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Record is a row with an integer primary key. WithID returns a copy carrying
// the assigned id.
type Record[T any] interface {
	GetID() int64
	WithID(id int64) T
}

// Tables emulates relational tables on a substrate. Every mutation reads the
// whole table, changes it in memory and writes it back; per-table mutexes
// serialize mutations of the same table within the process.
type Tables struct {
	sub    Substrate
	prefix string

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	closed bool
}

// NewTables returns a table store keeping its keys under prefix.
func NewTables(sub Substrate, prefix string) *Tables {
	return &Tables{
		sub:    sub,
		prefix: prefix,
		locks:  make(map[string]*sync.Mutex),
	}
}

// TableKey returns the key holding the rows of table.
func (t *Tables) TableKey(table string) string { return t.prefix + ":table:" + table }

// SeqKey returns the key holding the id counter of table.
func (t *Tables) SeqKey(table string) string { return t.prefix + ":seq:" + table }

// MetaKey returns a key for store-level metadata.
func (t *Tables) MetaKey(name string) string { return t.prefix + ":" + name }

// Lock acquires the mutexes of the named tables in a fixed order and returns
// the matching unlock function.
func (t *Tables) Lock(tables ...string) (unlock func()) {
	names := append([]string(nil), tables...)
	sort.Strings(names)

	held := make([]*sync.Mutex, 0, len(names))
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		l := t.lockFor(name)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (t *Tables) lockFor(table string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[table]
	if !ok {
		l = &sync.Mutex{}
		t.locks[table] = l
	}
	return l
}

// Close marks the store closed and closes the substrate if it holds
// resources. Close is idempotent.
func (t *Tables) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if c, ok := t.sub.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Tables) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return types.ErrClosed
	}
	return nil
}

// GetMeta reads a metadata value.
func (t *Tables) GetMeta(ctx context.Context, name string) (string, bool, error) {
	if err := t.checkOpen(); err != nil {
		return "", false, err
	}
	v, ok, err := t.sub.Get(ctx, t.MetaKey(name))
	return string(v), ok, err
}

// SetMeta writes a metadata value.
func (t *Tables) SetMeta(ctx context.Context, name, value string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.sub.Set(ctx, t.MetaKey(name), []byte(value))
}

// load reads every row of table. A missing key is an empty table.
func load[T any](ctx context.Context, t *Tables, table string) ([]T, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	data, ok, err := t.sub.Get(ctx, t.TableKey(table))
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", table, err)
	}
	rows := []T{}
	if !ok || len(data) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding table %s: %w", table, err)
	}
	return rows, nil
}

// save rewrites table with rows.
func save[T any](ctx context.Context, t *Tables, table string, rows []T) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if rows == nil {
		rows = []T{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding table %s: %w", table, err)
	}
	if err := t.sub.Set(ctx, t.TableKey(table), data); err != nil {
		return fmt.Errorf("writing table %s: %w", table, err)
	}
	return nil
}

// nextID advances and persists the counter of table. The counter is never
// derived from the rows, so ids of deleted rows are not reissued.
func nextID(ctx context.Context, t *Tables, table string) (int64, error) {
	data, ok, err := t.sub.Get(ctx, t.SeqKey(table))
	if err != nil {
		return 0, fmt.Errorf("reading counter %s: %w", table, err)
	}
	var last int64
	if ok {
		last, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("decoding counter %s: %w", table, err)
		}
	}
	id := last + 1
	if err := t.sub.Set(ctx, t.SeqKey(table), []byte(strconv.FormatInt(id, 10))); err != nil {
		return 0, fmt.Errorf("writing counter %s: %w", table, err)
	}
	return id, nil
}

// ListTable returns every row of table.
func ListTable[T any](ctx context.Context, t *Tables, table string) ([]T, error) {
	return load[T](ctx, t, table)
}

// Filter returns the rows of table that match.
func Filter[T any](ctx context.Context, t *Tables, table string, match func(T) bool) ([]T, error) {
	rows, err := load[T](ctx, t, table)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindFirst returns the first matching row or types.ErrNotFound.
func FindFirst[T any](ctx context.Context, t *Tables, table string, match func(T) bool) (*T, error) {
	rows, err := load[T](ctx, t, table)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if match(rows[i]) {
			return &rows[i], nil
		}
	}
	return nil, types.ErrNotFound
}

// FindByID returns the row with id or types.ErrNotFound.
func FindByID[T Record[T]](ctx context.Context, t *Tables, table string, id int64) (*T, error) {
	return FindFirst(ctx, t, table, func(r T) bool { return r.GetID() == id })
}

// InsertInto allocates the next id for table, appends rec with that id and
// persists the table. It returns the new id.
func InsertInto[T Record[T]](ctx context.Context, t *Tables, table string, rec T) (int64, error) {
	unlock := t.Lock(table)
	defer unlock()
	return insertLocked(ctx, t, table, rec)
}

func insertLocked[T Record[T]](ctx context.Context, t *Tables, table string, rec T) (int64, error) {
	rows, err := load[T](ctx, t, table)
	if err != nil {
		return 0, err
	}
	id, err := nextID(ctx, t, table)
	if err != nil {
		return 0, err
	}
	rows = append(rows, rec.WithID(id))
	if err := save(ctx, t, table, rows); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateWhere replaces every matching row with update(row) and returns the
// number of rows changed.
func UpdateWhere[T any](ctx context.Context, t *Tables, table string, match func(T) bool, update func(T) T) (int64, error) {
	unlock := t.Lock(table)
	defer unlock()
	return updateLocked(ctx, t, table, match, update)
}

func updateLocked[T any](ctx context.Context, t *Tables, table string, match func(T) bool, update func(T) T) (int64, error) {
	rows, err := load[T](ctx, t, table)
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range rows {
		if match(rows[i]) {
			rows[i] = update(rows[i])
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, save(ctx, t, table, rows)
}

// DeleteWhere removes every matching row and returns how many were removed.
func DeleteWhere[T any](ctx context.Context, t *Tables, table string, match func(T) bool) (int64, error) {
	unlock := t.Lock(table)
	defer unlock()
	return deleteLocked(ctx, t, table, match)
}

func deleteLocked[T any](ctx context.Context, t *Tables, table string, match func(T) bool) (int64, error) {
	rows, err := load[T](ctx, t, table)
	if err != nil {
		return 0, err
	}
	kept := rows[:0]
	for _, r := range rows {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	n := int64(len(rows) - len(kept))
	if n == 0 {
		return 0, nil
	}
	return n, save(ctx, t, table, kept)
}

// byID matches the row with the given id.
func byID[T Record[T]](id int64) func(T) bool {
	return func(r T) bool { return r.GetID() == id }
}
