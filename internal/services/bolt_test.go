package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/MegaGrindStone/study-buddy/internal/services"
	"github.com/MegaGrindStone/study-buddy/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBolt(t *testing.T) (services.BoltDB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.db")
	db, err := services.NewBoltDB(path)
	require.NoError(t, err)
	return db, path
}

func TestBoltIdentitySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	db, path := newBolt(t)

	first, err := session.LoadIdentity(ctx, db)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = services.NewBoltDB(path)
	require.NoError(t, err)
	defer db.Close()

	second, err := session.LoadIdentity(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBoltSecondOpenFailsWhileLocked(t *testing.T) {
	db, path := newBolt(t)

	errCh := make(chan error, 1)
	go func() {
		other, err := services.NewBoltDB(path)
		if err == nil {
			_ = other.Close()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrStoreLocked)
	case <-time.After(5 * time.Second):
		t.Fatal("NewBoltDB blocked on a locked store")
	}

	require.NoError(t, db.Close())
	again, err := services.NewBoltDB(path)
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}

func TestBoltDeleteIdentity(t *testing.T) {
	ctx := context.Background()
	db, _ := newBolt(t)
	defer db.Close()

	_, ok, err := db.Identity(ctx, session.IdentityKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SetIdentity(ctx, session.IdentityKey, "session_1_abc"))
	v, ok, err := db.Identity(ctx, session.IdentityKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "session_1_abc", v)

	require.NoError(t, db.DeleteIdentity(ctx, session.IdentityKey))
	require.NoError(t, db.DeleteIdentity(ctx, session.IdentityKey))
	_, ok, err = db.Identity(ctx, session.IdentityKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltTurns(t *testing.T) {
	ctx := context.Background()
	db, _ := newBolt(t)
	defer db.Close()

	turns, err := db.Turns(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, turns)

	// More than nine turns to make sure key order follows append order.
	for i := 0; i < 12; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		_, err := db.AddTurn(ctx, "s1", models.Turn{ID: "t", Role: role, Content: string(rune('a' + i))})
		require.NoError(t, err)
	}
	_, err = db.AddTurn(ctx, "s2", models.Turn{ID: "x", Role: models.RoleUser, Content: "other"})
	require.NoError(t, err)

	turns, err = db.Turns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 12)
	for i, turn := range turns {
		assert.Equal(t, string(rune('a'+i)), turn.Content)
	}

	turns, err = db.Turns(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "other", turns[0].Content)
}

func TestBoltUploads(t *testing.T) {
	ctx := context.Background()
	db, _ := newBolt(t)
	defer db.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.AddUpload(ctx, models.Upload{FileName: "a.pdf", Size: 10, UploadedAt: now}))
	require.NoError(t, db.AddUpload(ctx, models.Upload{FileName: "b.pdf", Size: 20, UploadedAt: now.Add(time.Minute)}))

	uploads, err := db.Uploads(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "b.pdf", uploads[0].FileName)
	assert.Equal(t, "a.pdf", uploads[1].FileName)
}
