package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/livefeed/backend/internal/models"
	"github.com/ayush/livefeed/backend/internal/store"
)

func TestPosts_ListNewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	s := NewPosts()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, &models.Post{Title: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	first, err := s.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "e", first[0].Title)
	assert.Equal(t, "d", first[1].Title)

	last, err := s.List(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "a", last[0].Title)

	past, err := s.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestPosts_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewPosts()
	id, err := s.Insert(ctx, &models.Post{Title: "original"})
	require.NoError(t, err)

	p, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	p.Title = "mutated"

	again, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestUsers_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	_, err := s.CreateUser(ctx, "a@b.co", "A", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "a@b.co", "B", "hash")
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestUsers_AppendPostAndMissing(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	u, err := s.CreateUser(ctx, "a@b.co", "A", "hash")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultStatus, u.Status)

	require.NoError(t, s.AppendPost(ctx, u.ID, "p1"))
	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got.PostIDs)

	assert.ErrorIs(t, s.AppendPost(ctx, "nobody", "p1"), store.ErrNotFound)
}

func TestPosts_ImageInUse(t *testing.T) {
	ctx := context.Background()
	s := NewPosts()
	id, err := s.Insert(ctx, &models.Post{Title: "title", ImageURL: "images/a.png"})
	require.NoError(t, err)

	inUse, err := s.ImageInUse(ctx, "images/a.png", "")
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = s.ImageInUse(ctx, "images/a.png", id)
	require.NoError(t, err)
	assert.False(t, inUse, "the excluded post does not count")

	inUse, err = s.ImageInUse(ctx, "images/b.png", "")
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestUploads_RecordAndOwner(t *testing.T) {
	ctx := context.Background()
	s := NewUploads()

	require.NoError(t, s.RecordUpload(ctx, "images/a.png", "u1"))
	assert.ErrorIs(t, s.RecordUpload(ctx, "images/a.png", "u2"), store.ErrDuplicate)

	owner, err := s.UploadOwner(ctx, "images/a.png")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	_, err = s.UploadOwner(ctx, "images/b.png")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
