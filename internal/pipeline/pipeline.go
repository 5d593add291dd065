// Package pipeline encodes a work item's lifecycle in object storage keys.
//
// A work item is always stored as <state>/<file name>. Moving it from one
// state to the next is a key rename inside the stage's bucket, or a write to
// the next stage's bucket for the hand-off.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/savaki/stage-pipeline/internal/errors"
)

// State is the key prefix that records where a work item is in a stage.
type State string

const (
	StateToDo       State = "ToDo"
	StateInProgress State = "InProgress"
	StateDone       State = "Done"
	StateOutput     State = "Output"
)

var states = []State{StateToDo, StateInProgress, StateDone, StateOutput}

// ParseState returns the State named by s.
func ParseState(s string) (State, error) {
	for _, state := range states {
		if string(state) == s {
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: unknown state prefix %q", errors.ErrInvalidKey, s)
}

func (s State) String() string {
	return string(s)
}

// FileName returns the final path segment of key.
func FileName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// KeyFor returns the key of fileName in state.
func KeyFor(state State, fileName string) string {
	return fmt.Sprintf("%s/%s", state, fileName)
}

// WorkItem is one file as stored in a stage bucket.
type WorkItem struct {
	Bucket string
	Key    string
}

// NewWorkItem validates key and returns the matching work item. Only the
// file name must be present; the prefix is whatever the caller sent.
func NewWorkItem(bucket, key string) (WorkItem, error) {
	if FileName(key) == "" {
		return WorkItem{}, fmt.Errorf("%w: %q has no file name", errors.ErrInvalidKey, key)
	}
	return WorkItem{Bucket: bucket, Key: key}, nil
}

// FileName returns the item's file name.
func (w WorkItem) FileName() string {
	return FileName(w.Key)
}

// State returns the item's current state, or an error when the key carries
// a prefix outside the known set.
func (w WorkItem) State() (State, error) {
	i := strings.Index(w.Key, "/")
	if i < 0 {
		return "", fmt.Errorf("%w: %q has no state prefix", errors.ErrInvalidKey, w.Key)
	}
	return ParseState(w.Key[:i])
}

// In returns the same file in state within the same bucket.
func (w WorkItem) In(state State) WorkItem {
	return w.InBucket(w.Bucket, state)
}

// InBucket returns the same file in state within bucket.
func (w WorkItem) InBucket(bucket string, state State) WorkItem {
	return WorkItem{Bucket: bucket, Key: KeyFor(state, w.FileName())}
}

func (w WorkItem) String() string {
	return fmt.Sprintf("s3://%s/%s", w.Bucket, w.Key)
}

// Handoff is the single call that passes a processed item to the next
// stage. It is built once per item and consumed once; it is never stored.
type Handoff struct {
	Endpoint string
	Origin   string
	Key      string
}
