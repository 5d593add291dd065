package di

import (
	"context"
	"os"

	"github.com/savaki/stage-pipeline/internal/dao/itemdao"
	"github.com/savaki/stage-pipeline/internal/dispatcher"
	"github.com/savaki/stage-pipeline/internal/environment"
	"github.com/savaki/stage-pipeline/internal/nextstage"
	"github.com/savaki/stage-pipeline/internal/objectstore"
	"github.com/savaki/stage-pipeline/internal/orchestrator"
	"github.com/savaki/stage-pipeline/internal/reconcile"
	"github.com/savaki/stage-pipeline/internal/services"
	"github.com/savaki/stage-pipeline/internal/transform"
	"github.com/savaki/stage-pipeline/internal/trigger"
	"github.com/savaki/stage-pipeline/internal/validator"
	"github.com/savaki/stage-pipeline/internal/worker"
)

func ProvideEnvironment(env string) environment.Environment {
	return environment.Parse(env)
}

// ProvideReporter files bug reports on GitHub. Local runs only log them.
func ProvideReporter(ctx context.Context, local Local, secrets *services.SecretsManagerService, config *services.Config, env string) services.Reporter {
	if local {
		return services.LogReporter{}
	}
	return services.NewReporter(ctx, secrets, config, env)
}

func ProvideValidator(env environment.Environment, config *services.Config) *validator.Validator {
	return validator.New(env, environment.DefaultTable(), config.Subdomain)
}

func ProvideDispatcher(store objectstore.Store, orch *orchestrator.Orchestrator, reporter services.Reporter, ledger itemdao.Ledger, config *services.Config, env environment.Environment) *dispatcher.Dispatcher {
	return dispatcher.New(store, orch, reporter, ledger, dispatcher.Config{
		Project: config.ProjectName,
		Bucket:  environment.BucketName(config.AppName, env),
		Env:     env.String(),
	})
}

func ProvideTriggerHandler(v *validator.Validator, d *dispatcher.Dispatcher) *trigger.Handler {
	return trigger.NewHandler(v, d)
}

// ProvideTransformer selects the stage transformation named by TRANSFORM
func ProvideTransformer() (transform.Transformer, error) {
	return transform.New(os.Getenv("TRANSFORM"))
}

func ProvideNextStage(config *services.Config, env environment.Environment) *nextstage.Client {
	return nextstage.New(config.NextAppSubdomain, config.ServiceAlias, config.Domain, env, nil)
}

func ProvideWorker(store objectstore.Store, transformer transform.Transformer, next *nextstage.Client, ledger itemdao.Ledger, config *services.Config, env environment.Environment) *worker.Worker {
	return worker.New(store, transformer, next, ledger, worker.Config{
		Bucket:     environment.BucketName(config.AppName, env),
		NextBucket: environment.BucketName(config.NextAppName, env),
		DispatchID: os.Getenv(dispatcher.DispatchIDVar),
	})
}

func ProvideReconciler(store objectstore.Store) *reconcile.Reconciler {
	return reconcile.New(store, store)
}
