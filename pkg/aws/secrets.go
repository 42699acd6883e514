package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretGetter resolves a named secret to its string value.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient reads Secrets Manager string secrets. Values are cached for
// the life of the process; config reads them once at startup.
type SecretsClient struct {
	client secretsAPI

	mu     sync.RWMutex
	values map[string]string
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return newSecretsClient(secretsmanager.NewFromConfig(cfg))
}

func newSecretsClient(api secretsAPI) *SecretsClient {
	return &SecretsClient{client: api, values: make(map[string]string)}
}

func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	v, ok := s.values[name]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s is binary, expected a string", name)
	}

	s.mu.Lock()
	s.values[name] = *out.SecretString
	s.mu.Unlock()
	return *out.SecretString, nil
}

// GetSecretMap resolves a secret that stores a flat JSON object, such as a
// set of database credentials.
func GetSecretMap(ctx context.Context, sg SecretGetter, name string) (map[string]string, error) {
	raw, err := sg.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", name, err)
	}
	return m, nil
}
