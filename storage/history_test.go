package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(term string, score int) *validation.Result {
	return &validation.Result{
		Definition:  &definition.Definition{Term: term, Text: "tekst."},
		Score:       score,
		Passed:      score == 100,
		Outcomes:    []rules.Outcome{{RuleID: "STR-03", Category: rules.CategorySTR, Severity: rules.SeverityWarning, Passed: score == 100, Message: "m"}},
		Suggestions: []string{},
	}
}

func steppedClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}

func TestHistory_SaveGet(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryStore()

	rec, err := h.Save(ctx, result("verdachte", 97))
	require.NoError(t, err)
	_, err = uuid.Parse(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "verdachte", rec.Term)

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 97, got.Result.Score)
	assert.Equal(t, rec.StoredAt, got.StoredAt)
}

func TestHistory_GetErrors(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryStore()

	_, err := h.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = h.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryStore()
	h.now = steppedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	first, err := h.Save(ctx, result("verdachte", 80))
	require.NoError(t, err)
	_, err = h.Save(ctx, result("getuige", 100))
	require.NoError(t, err)
	third, err := h.Save(ctx, result("verdachte", 97))
	require.NoError(t, err)

	all, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, first.ID, all[2].ID)

	byTerm, err := h.ListByTerm(ctx, "verdachte")
	require.NoError(t, err)
	require.Len(t, byTerm, 2)
	assert.Equal(t, 97, byTerm[0].Result.Score)
	assert.Equal(t, 80, byTerm[1].Result.Score)

	none, err := h.ListByTerm(ctx, "onbekend")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistory_Delete(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryStore()

	rec, err := h.Save(ctx, result("verdachte", 97))
	require.NoError(t, err)
	require.NoError(t, h.Delete(ctx, rec.ID))

	_, err = h.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.Delete(ctx, rec.ID), ErrNotFound)
	assert.ErrorIs(t, h.Delete(ctx, "x"), ErrInvalidID)
}

func TestHistory_SkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryStore()
	_, err := h.Save(ctx, result("verdachte", 97))
	require.NoError(t, err)
	require.NoError(t, h.kv.put(ctx, uuid.NewString(), []byte("{not json")))

	all, err := h.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(jetstream.ErrKeyNotFound))
	assert.True(t, isNotFound(fmt.Errorf("get: %w", jetstream.ErrKeyNotFound)))
	assert.True(t, isNotFound(jetstream.ErrKeyDeleted))
	assert.True(t, isNotFound(errors.New("nats: key not found")))
	assert.False(t, isNotFound(errors.New("timeout")))
	assert.False(t, isNotFound(nil))
}
