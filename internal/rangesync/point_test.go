package rangesync

import (
	"context"
	"testing"
	"time"

	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPoint(t *testing.T) {
	s, ex, store, id := setup(t, twoRooms)

	result, err := s.SyncPoint(context.Background(), id, "2025-06-23", "2025-06-25")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Successfully updated prices for Le Grand", result.Message)
	assert.Equal(t, 2, result.RoomsAdded)
	assert.Equal(t, 2, result.Added)
	require.Equal(t, 1, ex.calls())
	assert.Equal(t, "2025-06-25", ex.refs[0].CheckOut)

	records, err := store.ListByListing(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-06-25", records[0].CheckOut)

	again, err := s.SyncPoint(context.Background(), id, "2025-06-23", "2025-06-25")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Added)
	assert.Equal(t, 2, again.Updated)
}

func TestSyncPointDefaultsDates(t *testing.T) {
	s, ex, _, id := setup(t, twoRooms)
	s.now = func() time.Time { return time.Date(2025, 6, 23, 15, 0, 0, 0, time.UTC) }

	result, err := s.SyncPoint(context.Background(), id, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-23", result.CheckIn)
	assert.Equal(t, "2025-06-24", result.CheckOut)

	_, err = s.SyncPoint(context.Background(), id, "2025-07-01", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-02", ex.refs[1].CheckOut)
}

func TestSyncPointValidation(t *testing.T) {
	s, ex, _, id := setup(t, twoRooms)

	_, err := s.SyncPoint(context.Background(), id, "2025-06-24", "2025-06-23")
	assert.True(t, errors.IsValidation(err))

	_, err = s.SyncPoint(context.Background(), id, "June", "")
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 0, ex.calls())
}

func TestSyncPointReportsFailure(t *testing.T) {
	s, _, _, id := setup(t, func(ref resolver.ListingReference) extractor.Result {
		return extractor.Result{Success: false, Error: "unexpected status code: 403"}
	})

	result, err := s.SyncPoint(context.Background(), id, "2025-06-23", "2025-06-24")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "unexpected status code: 403", result.Error)
	assert.Nil(t, result.PriceData)
}
