package config

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks SSM pointer variables: ARTIFACT_AUTH_TOKEN_SSM_PARAM
// holds the parameter path of ARTIFACT_AUTH_TOKEN.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// ssmTimeout bounds secret resolution at startup.
const ssmTimeout = 30 * time.Second

// loaderDeps are the environment accessors, replaceable in tests.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the configuration:
//  1. Sets the process timezone to UTC.
//  2. Loads a .env file if present.
//  3. Unless APP_ENV is "local", resolves _SSM_PARAM pointers through provider
//     and injects the values into the environment.
//  4. Processes envconfig tags.
//  5. Populates Config.Build from linker-injected variables.
//  6. Validates the struct and the pinned artifact descriptor.
//
// provider may be nil when no SSM pointers are set.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// Existing variables win over .env entries.
	_ = godotenv.Load()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if err := cfg.Artifact.Check(); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "learned model artifact is not pinned",
			Err:     err,
		}
	}

	return &cfg, nil
}

// resolveSSMParams fetches the parameter behind every X_SSM_PARAM variable and
// sets X to its value. Variables that are already set are left alone.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	// parameter path -> target variable
	pointers := make(map[string]string)
	for _, entry := range deps.environ() {
		key, path, _ := strings.Cut(entry, "=")
		target, isPointer := strings.CutSuffix(key, ssmParamSuffix)
		if !isPointer || path == "" {
			continue
		}
		if _, set := deps.lookupEnv(target); set {
			continue
		}
		pointers[path] = target
	}
	if len(pointers) == 0 {
		return nil
	}

	paths := slices.Sorted(maps.Keys(pointers))
	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, pointers[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "a secret provider is required outside local environments to resolve " + strings.Join(targets, ", "),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmTimeout)
	defer cancel()
	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, p := range paths {
		target := pointers[p]
		value, ok := resolved[p]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{Type: ErrSSMResolution, Message: "failed to set " + target, Err: err}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SSM parameters not found for " + strings.Join(missing, ", "),
		}
	}
	return nil
}
