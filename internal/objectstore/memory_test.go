package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Move(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Write(ctx, "bucket", "ToDo/x.csv", []byte("x")))

	require.NoError(t, store.Move(ctx, "bucket", "ToDo/x.csv", "bucket", "InProgress/x.csv"))

	ok, _ := store.Exists(ctx, "bucket", "ToDo/x.csv")
	assert.False(t, ok)
	ok, _ = store.Exists(ctx, "bucket", "InProgress/x.csv")
	assert.True(t, ok)

	// the second move of the same source finds nothing
	err := store.Move(ctx, "bucket", "ToDo/x.csv", "bucket", "InProgress/x.csv")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestMemory_FailDeleteLeavesBothCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	store.FailDelete = true
	require.NoError(t, store.Write(ctx, "bucket", "ToDo/x.csv", []byte("x")))

	require.NoError(t, store.Move(ctx, "bucket", "ToDo/x.csv", "bucket", "InProgress/x.csv"))

	objects, err := store.List(ctx, "bucket", "")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "InProgress/x.csv", objects[0].Key)
	assert.Equal(t, "ToDo/x.csv", objects[1].Key)
}

func TestMemory_ListScopesToBucket(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewMemory()
	store.Now = func() time.Time { return now }

	require.NoError(t, store.Write(ctx, "a", "InProgress/x.csv", []byte("x")))
	require.NoError(t, store.Write(ctx, "a-b", "InProgress/y.csv", []byte("y")))

	objects, err := store.List(ctx, "a", "InProgress/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "InProgress/x.csv", objects[0].Key)
	assert.Equal(t, now, objects[0].LastModified)

	later := now.Add(time.Hour)
	store.Touch("a", "InProgress/x.csv", later)
	objects, _ = store.List(ctx, "a", "InProgress/")
	assert.Equal(t, later, objects[0].LastModified)
}

func TestMemory_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Write(ctx, "bucket", "k", []byte("abc")))

	data, err := store.Read(ctx, "bucket", "k")
	require.NoError(t, err)
	data[0] = 'z'

	again, _ := store.Read(ctx, "bucket", "k")
	assert.Equal(t, "abc", string(again))
}
