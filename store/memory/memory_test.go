package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/weekplan/store/memory"
	"github.com/warp/weekplan/store/storetest"
	"github.com/warp/weekplan/week"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return memory.New()
	})
}

func TestFailUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := week.NewRecord(week.MustOf(time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, store.CreateWeekRange(ctx, rec))
	boom := errors.New("boom")
	store.FailUpdates = map[string]error{rec.ID: boom}
	label := "edited"

	err := store.UpdateWeekRange(ctx, rec.ID, week.Patch{Label: &label})

	assert.ErrorIs(t, err, boom)
	got, err := store.GetWeekRangeByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Label, got.Label)
}
