package pipeline

import (
	"testing"

	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "ToDo/x.csv", want: "x.csv"},
		{key: "InProgress/nested/dir/x.csv", want: "x.csv"},
		{key: "x.csv", want: "x.csv"},
		{key: "ToDo/", want: ""},
		{key: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := FileName(tt.key); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestWorkItemTransitions(t *testing.T) {
	item, err := NewWorkItem("hints-data-stg", "ToDo/x.csv")
	require.NoError(t, err)

	state, err := item.State()
	require.NoError(t, err)
	assert.Equal(t, StateToDo, state)

	inProgress := item.In(StateInProgress)
	assert.Equal(t, "InProgress/x.csv", inProgress.Key)
	assert.Equal(t, "hints-data-stg", inProgress.Bucket)

	next := inProgress.InBucket("next-data-stg", StateToDo)
	assert.Equal(t, "ToDo/x.csv", next.Key)
	assert.Equal(t, "next-data-stg", next.Bucket)
	assert.Equal(t, "s3://next-data-stg/ToDo/x.csv", next.String())
}

func TestWorkItemInPreservesFileNameFromAnyPrefix(t *testing.T) {
	for _, key := range []string{"ToDo/a.csv", "Done/a.csv", "Uploads/2024/a.csv"} {
		item, err := NewWorkItem("bucket", key)
		require.NoError(t, err)
		assert.Equal(t, "InProgress/a.csv", item.In(StateInProgress).Key)
	}
}

func TestNewWorkItemRejectsEmptyFileName(t *testing.T) {
	_, err := NewWorkItem("bucket", "ToDo/")
	assert.ErrorIs(t, err, errors.ErrInvalidKey)

	_, err = NewWorkItem("bucket", "")
	assert.ErrorIs(t, err, errors.ErrInvalidKey)
}

func TestWorkItemState(t *testing.T) {
	_, err := WorkItem{Key: "x.csv"}.State()
	assert.ErrorIs(t, err, errors.ErrInvalidKey)

	_, err = WorkItem{Key: "Archive/x.csv"}.State()
	assert.ErrorIs(t, err, errors.ErrInvalidKey)

	state, err := WorkItem{Key: "Output/x.csv"}.State()
	require.NoError(t, err)
	assert.Equal(t, StateOutput, state)
}
