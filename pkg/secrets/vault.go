package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"ai-scam-shield-demo/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds configuration for the Vault client
type VaultConfig struct {
	Address     string
	Token       string
	Namespace   string
	Timeout     time.Duration
	SecretsPath string
	Enabled     bool
}

// VaultManager resolves secrets from HashiCorp Vault with an environment
// variable fallback, so development runs work without a Vault deployment.
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	cache  map[string]string
	mu     sync.RWMutex
	log    *logger.Logger
}

// NewVaultManager creates a new Vault manager instance from environment
// configuration. VAULT_ENABLED=false yields a manager that only reads the
// environment.
func NewVaultManager(log *logger.Logger) (*VaultManager, error) {
	config := VaultConfig{
		Address:     os.Getenv("VAULT_ADDR"),
		Token:       os.Getenv("VAULT_TOKEN"),
		Namespace:   os.Getenv("VAULT_NAMESPACE"),
		SecretsPath: os.Getenv("VAULT_SECRETS_PATH"),
		Enabled:     os.Getenv("VAULT_ENABLED") == "true",
		Timeout:     10 * time.Second,
	}

	manager := &VaultManager{
		config: config,
		cache:  make(map[string]string),
		log:    log,
	}

	if !config.Enabled {
		return manager, nil
	}

	if config.Address == "" {
		return nil, fmt.Errorf("vault enabled but VAULT_ADDR is empty")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("vault enabled but VAULT_TOKEN is empty")
	}
	if config.SecretsPath == "" {
		config.SecretsPath = "secret/data/scam-shield"
		manager.config.SecretsPath = config.SecretsPath
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	vaultConfig.Timeout = config.Timeout

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	manager.client = client
	return manager, nil
}

// GetSecret retrieves a secret from Vault, falling back to the environment.
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()
	if found {
		return cached, nil
	}

	if m.client != nil {
		value, err := m.readFromVault(ctx, key)
		if err == nil {
			m.mu.Lock()
			m.cache[key] = value
			m.mu.Unlock()
			return value, nil
		}
		m.log.Warn("vault lookup failed, falling back to environment", "key", key, "error", err.Error())
	}

	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	return "", ErrSecretNotFound
}

// GetSecretWithDefault retrieves a secret with a default when absent.
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (m *VaultManager) readFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.Logical().ReadWithContext(ctx, m.config.SecretsPath)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	// KV v2 nests the payload under "data".
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	if value, ok := data[key].(string); ok && value != "" {
		return value, nil
	}
	return "", ErrSecretNotFound
}
