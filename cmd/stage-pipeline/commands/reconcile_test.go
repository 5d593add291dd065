package commands

import (
	"testing"
	"time"

	"github.com/savaki/stage-pipeline/internal/reconcile"
	"github.com/stretchr/testify/assert"
)

func TestFindingsTable(t *testing.T) {
	got := findingsTable([]reconcile.Finding{
		{Key: "InProgress/a.csv", FileName: "a.csv", Kind: reconcile.KindStuck, Age: 3*time.Hour + 400*time.Millisecond},
		{Key: "InProgress/b.csv", FileName: "b.csv", Kind: reconcile.KindLeakedCopy, Age: time.Minute, Sibling: "ToDo/b.csv"},
	})

	assert.Contains(t, got, "STUCK")
	assert.Contains(t, got, "3h0m0s")
	assert.Contains(t, got, "LEAKED_COPY")
	assert.Contains(t, got, "ToDo/b.csv")
}
