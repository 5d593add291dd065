package transform

import (
	"context"
	"testing"

	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVPassThrough(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "table",
			content: "name,age\nann,3\nbob,4\n",
			want:    "name,age\nann,3\nbob,4\n",
		},
		{
			name:    "missing trailing newline",
			content: "name,age\nann,3",
			want:    "name,age\nann,3\n",
		},
		{
			name:    "quoted fields",
			content: "name,note\n\"smith, ann\",\"said \"\"hi\"\"\"\n",
			want:    "name,note\n\"smith, ann\",\"said \"\"hi\"\"\"\n",
		},
		{
			name:    "header only",
			content: "name,age\n",
			want:    "name,age\n",
		},
		{
			name:    "unicode",
			content: "name\nJosé\n",
			want:    "name\nJosé\n",
		},
		{
			name:    "empty",
			content: "",
			wantErr: true,
		},
		{
			name:    "whitespace",
			content: "  \n\n",
			wantErr: true,
		},
		{
			name:    "short row padded",
			content: "name,age\nann,3\nbob\n",
			want:    "name,age\nann,3\nbob,\n",
		},
		{
			name:    "bare quote in unquoted field",
			content: "name,note\nann,said \"hi\"\n",
			want:    "name,note\nann,\"said \"\"hi\"\"\"\n",
		},
		{
			name:    "long row",
			content: "name,age\nann,3,extra\n",
			wantErr: true,
		},
		{
			name:    "unterminated quote",
			content: "name\n\"ann\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CSVPassThrough{}.Transform(context.Background(), tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrTransform)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentity(t *testing.T) {
	got, err := Identity{}.Transform(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Equal(t, "anything at all", got)

	_, err = Identity{}.Transform(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrTransform)
}

func TestNew(t *testing.T) {
	tr, err := New("")
	require.NoError(t, err)
	assert.IsType(t, CSVPassThrough{}, tr)

	tr, err = New("Identity")
	require.NoError(t, err)
	assert.IsType(t, Identity{}, tr)

	_, err = New("pandas")
	assert.Error(t, err)
}
