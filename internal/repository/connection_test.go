package repository

import (
	"context"
	"testing"

	"monolith/internal/models"
	"monolith/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRepository_Lifecycle(t *testing.T) {
	db := setupSQLite(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	t.Run("Create sets the pair key", func(t *testing.T) {
		conn := &models.Connection{FromUserID: b.ID, ToUserID: a.ID, Status: models.ConnectionStatusPending}
		require.NoError(t, repo.Create(ctx, conn))
		assert.Equal(t, a.ID, conn.UserLow)
		assert.Equal(t, b.ID, conn.UserHigh)
	})

	t.Run("Reverse direction is rejected", func(t *testing.T) {
		err := repo.Create(ctx, &models.Connection{FromUserID: a.ID, ToUserID: b.ID, Status: models.ConnectionStatusPending})
		assert.ErrorIs(t, err, ErrConnectionExists)
	})

	t.Run("GetBetween is order independent", func(t *testing.T) {
		c1, err := repo.GetBetween(ctx, a.ID, b.ID)
		require.NoError(t, err)
		c2, err := repo.GetBetween(ctx, b.ID, a.ID)
		require.NoError(t, err)
		require.NotNil(t, c1)
		assert.Equal(t, c1.ID, c2.ID)
		assert.Equal(t, models.ConnectionStatePendingReceived, c1.StateFor(a.ID))
		assert.Equal(t, models.ConnectionStatePendingSent, c1.StateFor(b.ID))
	})

	t.Run("Pending lists", func(t *testing.T) {
		incoming, err := repo.PendingIncoming(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, b.ID, incoming[0].ID)

		sent, err := repo.PendingSent(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, a.ID, sent[0].ID)
	})

	t.Run("AcceptPending only matches the recipient direction", func(t *testing.T) {
		ok, err := repo.AcceptPending(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.AcceptPending(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.AcceptPending(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, ok, "already accepted")
	})

	t.Run("Accepted peers from both sides", func(t *testing.T) {
		ids, err := repo.AcceptedPeerIDs(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{b.ID}, ids)

		peers, err := repo.AcceptedPeers(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, peers, 1)
		assert.Equal(t, a.ID, peers[0].ID)
	})

	t.Run("DeletePending ignores accepted rows", func(t *testing.T) {
		ok, err := repo.DeletePending(ctx, b.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestConnectionRepository_InTxRollsBack(t *testing.T) {
	db := setupSQLite(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	err := repo.InTx(ctx, func(r ConnectionRepository) error {
		if err := r.Create(ctx, &models.Connection{FromUserID: a.ID, ToUserID: b.ID, Status: models.ConnectionStatusPending}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	conn, err := repo.GetBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestConnectionRepository_DeletePending(t *testing.T) {
	db := setupSQLite(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	require.NoError(t, repo.Create(ctx, &models.Connection{FromUserID: a.ID, ToUserID: b.ID, Status: models.ConnectionStatusPending}))

	ok, err := repo.DeletePending(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "wrong direction")

	ok, err = repo.DeletePending(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	conn, err := repo.GetBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, conn)
}
