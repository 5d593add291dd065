package di

import "github.com/rs/zerolog"

// Endpoint overrides the AWS service endpoint (e.g. localstack). Empty means
// the SDK default.
type Endpoint string

// Local selects the in-memory object store instead of S3.
type Local bool

// DisableSSM reads configuration from environment variables instead of
// Parameter Store. DISABLE_SSM=true has the same effect.
type DisableSSM bool

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithEndpoint points every AWS client at endpoint using static credentials.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.endpoint = Endpoint(endpoint)
	}
}

// WithLocal swaps the S3 gateway for an in-memory store.
func WithLocal(local bool) Option {
	return func(opts *options) {
		opts.local = local
	}
}

// WithDisableSSM selects the environment variable parameter store.
func WithDisableSSM(disable bool) Option {
	return func(opts *options) {
		opts.disableSSM = disable
	}
}

// WithLogger replaces the logger returned by ProvideLogger.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *options) {
		opts.logger = &logger
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *Database { return &Database{} },
//	    func(db *Database) *Service { return &Service{DB: db} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	endpoint   Endpoint
	local      bool
	disableSSM bool
	logger     *zerolog.Logger
	providers  []any
}
