// Package reconcile finds work items left behind by crashed or failed runs.
// Nothing here runs automatically; an operator decides what to requeue.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"
	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/pipeline"
)

// Kind classifies a Finding
type Kind string

const (
	// KindStuck is an InProgress item older than the scan threshold
	KindStuck Kind = "STUCK"

	// KindLeakedCopy is an InProgress item that is also live under ToDo, or
	// under Done with a copy at least as new, the result of a move whose
	// delete step failed
	KindLeakedCopy Kind = "LEAKED_COPY"
)

// Finding is one InProgress item that needs operator attention
type Finding struct {
	Key      string
	FileName string
	Kind     Kind
	Age      time.Duration
	Sibling  string // key of the other live copy, LEAKED_COPY only
}

// Reconciler inspects a stage bucket
type Reconciler struct {
	lister      objectstore.Lister
	gateway     objectstore.Gateway
	concurrency int
	now         func() time.Time
}

func New(lister objectstore.Lister, gateway objectstore.Gateway) *Reconciler {
	return &Reconciler{
		lister:      lister,
		gateway:     gateway,
		concurrency: 8,
		now:         time.Now,
	}
}

// Scan lists InProgress items in bucket. Leaked copies are reported
// regardless of age; everything else older than olderThan is reported as
// stuck.
func (r *Reconciler) Scan(ctx context.Context, bucket string, olderThan time.Duration) ([]Finding, error) {
	logger := zerolog.Ctx(ctx).With().Str("bucket", bucket).Logger()

	defer func(begin time.Time) {
		logger.Debug().Dur("elapsed", time.Since(begin)).Msg("scan")
	}(time.Now())

	objects, err := r.lister.List(ctx, bucket, string(pipeline.StateInProgress)+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list in progress items: %w", err)
	}

	now := r.now()
	callback := func(ctx context.Context, obj objectstore.Object) (*Finding, error) {
		return r.inspect(ctx, bucket, obj, now.Sub(obj.LastModified), olderThan)
	}
	results, err := slicex.MapConcurrent(callback).
		Concurrency(r.concurrency).
		CollectErrors().
		DoValues(ctx, objects...)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect in progress items: %w", err)
	}

	var findings []Finding
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}

	logger.Info().
		Int("in_progress", len(objects)).
		Int("findings", len(findings)).
		Msg("scanned bucket")

	return findings, nil
}

func (r *Reconciler) inspect(ctx context.Context, bucket string, inProgress objectstore.Object, age, olderThan time.Duration) (*Finding, error) {
	item, err := pipeline.NewWorkItem(bucket, inProgress.Key)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", inProgress.Key).Msg("skipping unrecognised key")
		return nil, nil
	}

	todo := item.In(pipeline.StateToDo)
	ok, err := r.lister.Exists(ctx, bucket, todo.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", todo, err)
	}
	if ok {
		return leaked(item, age, todo.Key), nil
	}

	// Done/ keeps every processed file, so an older Done copy is an earlier
	// run of the same file name. Only a copy at least as new as the InProgress
	// one comes from a move whose delete failed.
	done := item.In(pipeline.StateDone)
	obj, found, err := r.stat(ctx, bucket, done.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", done, err)
	}
	if found && !obj.LastModified.Before(inProgress.LastModified) {
		return leaked(item, age, done.Key), nil
	}

	if age < olderThan {
		return nil, nil
	}
	return &Finding{
		Key:      item.Key,
		FileName: item.FileName(),
		Kind:     KindStuck,
		Age:      age,
	}, nil
}

func leaked(item pipeline.WorkItem, age time.Duration, sibling string) *Finding {
	return &Finding{
		Key:      item.Key,
		FileName: item.FileName(),
		Kind:     KindLeakedCopy,
		Age:      age,
		Sibling:  sibling,
	}
}

// stat returns the object stored at exactly key
func (r *Reconciler) stat(ctx context.Context, bucket, key string) (objectstore.Object, bool, error) {
	objects, err := r.lister.List(ctx, bucket, key)
	if err != nil {
		return objectstore.Object{}, false, err
	}
	for _, obj := range objects {
		if obj.Key == key {
			return obj, true, nil
		}
	}
	return objectstore.Object{}, false, nil
}

// Requeue moves InProgress/<fileName> back to ToDo/<fileName> so the item
// can be dispatched again. An object already waiting in ToDo is left alone
// and errors.ErrExists is returned unless force is set.
func (r *Reconciler) Requeue(ctx context.Context, bucket, fileName string, force bool) error {
	src := pipeline.KeyFor(pipeline.StateInProgress, fileName)
	item, err := pipeline.NewWorkItem(bucket, src)
	if err != nil {
		return err
	}
	dst := item.In(pipeline.StateToDo)

	if !force {
		ok, err := r.lister.Exists(ctx, dst.Bucket, dst.Key)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", dst, err)
		}
		if ok {
			return fmt.Errorf("%w: %s", errors.ErrExists, dst)
		}
	}

	if err := r.gateway.Move(ctx, item.Bucket, item.Key, dst.Bucket, dst.Key); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("bucket", bucket).
		Str("key", item.Key).
		Str("new_key", dst.Key).
		Bool("force", force).
		Msg("requeued work item")
	return nil
}
