// Package worker processes one work item inside the launched compute task.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/dao/itemdao"
	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/pipeline"
	"github.com/savaki/stage-pipeline/internal/transform"
)

// NextStage triggers the following stage with a key in its bucket.
type NextStage interface {
	Run(ctx context.Context, key string) (int, error)
}

// Config identifies the buckets a Worker reads and writes.
type Config struct {
	Bucket     string // this stage
	NextBucket string // the next stage's inbox
	DispatchID string // ledger sort key of the dispatch that launched this task; empty skips ledger updates
}

type Worker struct {
	gateway     objectstore.Gateway
	transformer transform.Transformer
	next        NextStage
	ledger      itemdao.Ledger
	cfg         Config
}

func New(gateway objectstore.Gateway, transformer transform.Transformer, next NextStage, ledger itemdao.Ledger, cfg Config) *Worker {
	if ledger == nil {
		ledger = itemdao.Nop{}
	}
	return &Worker{
		gateway:     gateway,
		transformer: transformer,
		next:        next,
		ledger:      ledger,
		cfg:         cfg,
	}
}

// RunStage processes inputKey: the transformed content is written to this
// stage's Output and the next stage's ToDo, the input is moved to Done, and
// the next stage is triggered. Any failure before the hand-off aborts the run
// and leaves what was already written in place. The hand-off itself is best
// effort and never fails the run.
func (w *Worker) RunStage(ctx context.Context, inputKey string) error {
	logger := zerolog.Ctx(ctx).With().
		Str("bucket", w.cfg.Bucket).
		Str("key", inputKey).
		Logger()
	ctx = logger.WithContext(ctx)

	defer func(begin time.Time) {
		logger.Info().Dur("elapsed", time.Since(begin)).Msg("run stage")
	}(time.Now())

	item, err := pipeline.NewWorkItem(w.cfg.Bucket, inputKey)
	if err != nil {
		return err
	}
	pk := itemdao.NewPK(item.Bucket, item.FileName())

	nextKey, err := w.process(ctx, item)
	if err != nil {
		msg := err.Error()
		w.transition(ctx, itemdao.UpdateInput{PK: pk, SK: w.cfg.DispatchID, State: itemdao.StateFailed, ErrorMsg: &msg})
		return err
	}
	w.transition(ctx, itemdao.UpdateInput{PK: pk, SK: w.cfg.DispatchID, State: itemdao.StateProcessed, Key: item.In(pipeline.StateDone).Key})

	code, err := w.next.Run(ctx, nextKey)
	switch {
	case err != nil:
		logger.Error().Err(err).Str("next_key", nextKey).Msg("unable to reach next stage")
	case code != http.StatusOK:
		logger.Error().Int("status_code", code).Str("next_key", nextKey).Msg("next stage did not accept hand-off")
	default:
		w.transition(ctx, itemdao.UpdateInput{PK: pk, SK: w.cfg.DispatchID, State: itemdao.StateHandedOff})
	}

	return nil
}

// process runs steps up to and including the move to Done and returns the
// key placed in the next stage's bucket.
func (w *Worker) process(ctx context.Context, item pipeline.WorkItem) (string, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().Msg("loading data from input file")
	data, err := w.gateway.Read(ctx, item.Bucket, item.Key)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", errors.ErrDecode, item)
	}

	out, err := w.transformer.Transform(ctx, string(data))
	if err != nil {
		return "", fmt.Errorf("transform %s: %w", item, err)
	}
	content := []byte(out)

	output := item.In(pipeline.StateOutput)
	inbox := item.InBucket(w.cfg.NextBucket, pipeline.StateToDo)

	logger.Info().Str("output_key", output.Key).Msg("writing output")
	if err := w.gateway.Write(ctx, output.Bucket, output.Key, content); err != nil {
		return "", err
	}
	logger.Info().Str("next_bucket", inbox.Bucket).Str("next_key", inbox.Key).Msg("writing next stage input")
	if err := w.gateway.Write(ctx, inbox.Bucket, inbox.Key, content); err != nil {
		return "", err
	}

	done := item.In(pipeline.StateDone)
	logger.Info().Str("done_key", done.Key).Msg("moving input to done")
	if err := w.gateway.Move(ctx, item.Bucket, item.Key, done.Bucket, done.Key); err != nil {
		return "", err
	}

	return inbox.Key, nil
}

func (w *Worker) transition(ctx context.Context, input itemdao.UpdateInput) {
	if input.SK == "" {
		zerolog.Ctx(ctx).Debug().Str("state", string(input.State)).Msg("no dispatch id; skipping ledger update")
		return
	}
	if err := w.ledger.UpdateState(ctx, input); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("state", string(input.State)).Msg("unable to update ledger entry")
	}
}
