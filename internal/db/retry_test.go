package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/negotiation/internal/utils"
)

func duplicateKeyError(id utils.SixID) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.negotiations index: _id_ dup key: { : %q }", id.String()),
	}}}
}

func TestWithRetries_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	err := WithRetries(func() error { calls++; return nil }, 3, IsMongoDuplicateKeyError)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_OtherErrorNotRetried(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WithRetries(func() error { calls++; return boom }, 3, IsMongoDuplicateKeyError)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return duplicateKeyError(utils.SixID{0, 0, 0, 0, 0, 1})
	}, 2, IsMongoDuplicateKeyError)
	require.Error(t, err)
	assert.True(t, IsMongoDuplicateKeyError(err))
	assert.Equal(t, 3, calls)
}

func TestTry_CollisionResolvesWithFreshID(t *testing.T) {
	original := utils.NewSixIDHook
	t.Cleanup(func() { utils.NewSixIDHook = original })

	taken := utils.SixID{1, 2, 3, 4, 5, 1}
	free := utils.SixID{1, 2, 3, 4, 5, 2}
	sequence := []utils.SixID{taken, taken, free}
	n := 0
	utils.NewSixIDHook = func() (utils.SixID, bool) {
		if n < len(sequence) {
			id := sequence[n]
			n++
			return id, true
		}
		return utils.SixID{}, false
	}

	stored := map[utils.SixID]bool{taken: true}
	calls := 0
	err := Try(func() error {
		calls++
		id := utils.NewSixID()
		if stored[id] {
			return duplicateKeyError(id)
		}
		stored[id] = true
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, stored[free])
	assert.Len(t, stored, 2)
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.False(t, IsMongoDuplicateKeyError(nil))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("E11000 lookalike")))
	assert.True(t, IsMongoDuplicateKeyError(fmt.Errorf("insert: %w", duplicateKeyError(utils.SixID{}))))
	assert.True(t, IsMongoDuplicateKeyError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000}}},
	}))
}
