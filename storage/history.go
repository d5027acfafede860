// Package storage keeps a history of validation results in NATS KV.
package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/c360studio/defcheck/validation"
	"github.com/google/uuid"
)

// DefaultBucket is the KV bucket holding validation records.
const DefaultBucket = "DEFCHECK_RESULTS"

// Record is one stored validation.
type Record struct {
	ID       string             `json:"id"`
	Term     string             `json:"term"`
	StoredAt time.Time          `json:"stored_at"`
	Result   *validation.Result `json:"result"`
}

// bucket is the key/value surface the history needs.
type bucket interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, value []byte) error
	keys(ctx context.Context) ([]string, error)
	delete(ctx context.Context, key string) error
}

// History stores and retrieves validation records.
type History struct {
	kv  bucket
	now func() time.Time
}

func newHistory(kv bucket) *History {
	return &History{kv: kv, now: time.Now}
}

// Save stores r under a new id and returns the record.
func (h *History) Save(ctx context.Context, r *validation.Result) (*Record, error) {
	rec := &Record{
		ID:       uuid.New().String(),
		StoredAt: h.now().UTC(),
		Result:   r,
	}
	if r.Definition != nil {
		rec.Term = r.Definition.Term
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if err := h.kv.put(ctx, rec.ID, data); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}
	return rec, nil
}

// Get retrieves a record by id.
func (h *History) Get(ctx context.Context, id string) (*Record, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := h.kv.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// List returns every record, newest first.
func (h *History) List(ctx context.Context) ([]*Record, error) {
	return h.list(ctx, func(*Record) bool { return true })
}

// ListByTerm returns the records for term, newest first.
func (h *History) ListByTerm(ctx context.Context, term string) ([]*Record, error) {
	return h.list(ctx, func(r *Record) bool { return r.Term == term })
}

// Delete removes a record.
func (h *History) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if _, err := h.kv.get(ctx, id); err != nil {
		return err
	}
	return h.kv.delete(ctx, id)
}

func (h *History) list(ctx context.Context, keep func(*Record) bool) ([]*Record, error) {
	keys, err := h.kv.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list record keys: %w", err)
	}

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		data, err := h.kv.get(ctx, key)
		if err != nil {
			continue
		}
		rec, err := decode(data)
		if err != nil {
			continue
		}
		if keep(rec) {
			records = append(records, rec)
		}
	}

	slices.SortFunc(records, func(a, b *Record) int {
		if c := b.StoredAt.Compare(a.StoredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return records, nil
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return nil
}
