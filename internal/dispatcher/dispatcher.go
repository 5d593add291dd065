// Package dispatcher claims a work item for this stage and launches the
// compute task that processes it.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/dao/itemdao"
	"github.com/savaki/stage-pipeline/internal/errors"
	"github.com/savaki/stage-pipeline/internal/models"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/pipeline"
	"github.com/savaki/stage-pipeline/internal/services"
	"github.com/segmentio/ksuid"
)

// DispatchIDVar is the container environment variable carrying the ledger
// sort key of the dispatch that launched a task.
const DispatchIDVar = "DISPATCH_ID"

// Launcher starts the worker task for an InProgress key without waiting for it.
type Launcher interface {
	StartTask(ctx context.Context, key string, env map[string]string) (string, error)
}

// Config identifies the stage a Dispatcher serves.
type Config struct {
	Project string // used in diagnostic report titles
	Bucket  string // this stage's data bucket
	Env     string
}

type Dispatcher struct {
	gateway  objectstore.Gateway
	launcher Launcher
	reporter services.Reporter
	ledger   itemdao.Ledger
	cfg      Config
	newID    func() string
}

func New(gateway objectstore.Gateway, launcher Launcher, reporter services.Reporter, ledger itemdao.Ledger, cfg Config) *Dispatcher {
	if reporter == nil {
		reporter = services.LogReporter{}
	}
	if ledger == nil {
		ledger = itemdao.Nop{}
	}
	return &Dispatcher{
		gateway:  gateway,
		launcher: launcher,
		reporter: reporter,
		ledger:   ledger,
		cfg:      cfg,
		newID:    func() string { return ksuid.New().String() },
	}
}

// Dispatch claims the item named in body by moving it to InProgress and
// launches one worker task for it. A failure after the move is reported but
// not rolled back: the item stays InProgress for an operator to recover.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (int, models.Response) {
	logger := zerolog.Ctx(ctx).With().Str("bucket", d.cfg.Bucket).Str("env", d.cfg.Env).Logger()
	ctx = logger.WithContext(ctx)

	defer func(begin time.Time) {
		logger.Debug().Dur("elapsed", time.Since(begin)).Msg("dispatch")
	}(time.Now())

	key, newKey, err := d.dispatch(ctx, body)
	if err != nil {
		code, resp := Response(err, key)
		logger.Error().
			Err(err).
			Str("key", key).
			Int("status_code", code).
			Msg("dispatch failed")
		d.report(ctx, key, err)
		return code, resp
	}

	logger.Info().Str("key", key).Str("new_key", newKey).Msg("dispatched")
	return http.StatusOK, models.MessageResponse(fmt.Sprintf("Successfully started a task with the key: %s", newKey))
}

// dispatch returns the key sent by the caller alongside any error so the
// response can name it.
func (d *Dispatcher) dispatch(ctx context.Context, body []byte) (key, newKey string, err error) {
	var req models.TriggerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", "", fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
	}
	key = strings.TrimSpace(req.InputFile)
	if key == "" {
		return "", "", errors.ErrBadRequest
	}

	item, err := pipeline.NewWorkItem(d.cfg.Bucket, key)
	if err != nil {
		return key, "", err
	}
	claimed := item.In(pipeline.StateInProgress)

	if err := d.gateway.Move(ctx, item.Bucket, item.Key, claimed.Bucket, claimed.Key); err != nil {
		return key, "", err
	}

	dispatchID := d.newID()
	entry := d.record(ctx, itemdao.CreateInput{Item: claimed, SK: dispatchID, State: itemdao.StateClaimed})

	taskArn, err := d.launcher.StartTask(ctx, claimed.Key, map[string]string{DispatchIDVar: dispatchID})
	if err != nil {
		msg := err.Error()
		d.transition(ctx, itemdao.UpdateInput{PK: entry.PK, SK: entry.SK, State: itemdao.StateFailed, ErrorMsg: &msg})
		return key, claimed.Key, err
	}

	d.transition(ctx, itemdao.UpdateInput{PK: entry.PK, SK: entry.SK, State: itemdao.StateLaunched, TaskArn: &taskArn})
	zerolog.Ctx(ctx).Info().Str("task_arn", taskArn).Str("dispatch_id", dispatchID).Msg("launched task")

	return key, claimed.Key, nil
}

func (d *Dispatcher) record(ctx context.Context, input itemdao.CreateInput) itemdao.Record {
	record, err := d.ledger.Create(ctx, input)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", input.Item.Key).Msg("unable to record ledger entry")
		return itemdao.Record{PK: itemdao.NewPK(input.Item.Bucket, input.Item.FileName()), SK: input.SK}
	}
	return record
}

func (d *Dispatcher) transition(ctx context.Context, input itemdao.UpdateInput) {
	if err := d.ledger.UpdateState(ctx, input); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("state", string(input.State)).Msg("unable to update ledger entry")
	}
}

func (d *Dispatcher) report(ctx context.Context, key string, err error) {
	kind := Kind(err)
	title := fmt.Sprintf("%s had a %s error while dispatching", d.cfg.Project, kind)
	// the reporter appends the environment
	description := fmt.Sprintf("Type: %s\nError text: %v\nInput file: %s\nBucket: %s",
		kind, err, key, d.cfg.Bucket)
	d.reporter.Report(ctx, title, description)
}

// StatusCode maps an error to the HTTP status returned to the caller.
// Anything not recognized is a 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errors.ErrValidation):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrBadRequest), errors.Is(err, errors.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrFileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Response returns the status and body shown to the caller for err. Backend
// details of 500s stay out of the body.
func Response(err error, key string) (int, models.Response) {
	code := StatusCode(err)
	switch {
	case errors.Is(err, errors.ErrValidation):
		return code, models.ErrorResponse(err.Error())
	case errors.Is(err, errors.ErrBadRequest):
		return code, models.ErrorResponse("No infile key provided in request body.")
	case errors.Is(err, errors.ErrInvalidKey):
		return code, models.ErrorResponse(fmt.Sprintf("Invalid infile key: %s", key))
	case errors.Is(err, errors.ErrFileNotFound):
		return code, models.ErrorResponse(fmt.Sprintf("No file found for given infile key: %s", key))
	default:
		return code, models.ErrorResponse(http.StatusText(http.StatusInternalServerError))
	}
}

// Kind names the error family of err for diagnostics.
func Kind(err error) string {
	kinds := []struct {
		target error
		name   string
	}{
		{errors.ErrValidation, "ValidationError"},
		{errors.ErrBadRequest, "BadRequestError"},
		{errors.ErrInvalidKey, "BadRequestError"},
		{errors.ErrFileNotFound, "FileNotFoundError"},
		{errors.ErrNoTaskDefinition, "NoTaskDefinitionError"},
		{errors.ErrNoSecurityGroup, "NoSecurityGroupError"},
		{errors.ErrStorage, "StorageError"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return "InternalError"
}
