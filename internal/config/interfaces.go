package config

import "context"

// SecretProvider resolves secret values such as ARTIFACT_AUTH_TOKEN from
// SSM Parameter Store in deployed environments or from the environment
// locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext value for every key it
	// could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
