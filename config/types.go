// Package config provides configuration management for hashrand-go.
package config

import "time"

// Config is the process-wide configuration. It is loaded once at startup
// and handed to collaborators as a read-only value.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	Keys     *KeySetConfig     `yaml:"keys" json:"keys"`
	Tokens   *TokenConfig      `yaml:"tokens" json:"tokens"`
	Storage  *StorageConfig    `yaml:"storage" json:"storage"`
	Server   *ServerConfig     `yaml:"server" json:"server"`
	Logging  *LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics  *MetricsConfig    `yaml:"metrics" json:"metrics"`
	Health   *HealthConfig     `yaml:"health" json:"health"`
	RateLimit *RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// KeySetConfig holds the hex-encoded MasterKeySet. Every field is decoded
// once at load time into the fixed-length byte slices the crypto packages
// expect; the raw hex strings are never retained after decoding.
type KeySetConfig struct {
	JWTSecret      string `yaml:"jwt_secret" json:"jwt_secret"`
	Argon2Salt     string `yaml:"argon2_salt" json:"argon2_salt"`

	MagicLinkHMACKey    string `yaml:"magic_link_hmac_key" json:"magic_link_hmac_key"`
	UserIDHMACKey       string `yaml:"user_id_hmac_key" json:"user_id_hmac_key"`
	UserIDArgon2Compression string `yaml:"user_id_argon2_compression" json:"user_id_argon2_compression"`
	ChaChaEncryptionKey string `yaml:"chacha_encryption_key" json:"chacha_encryption_key"`

	AccessTokenCipherKey string `yaml:"access_token_cipher_key" json:"access_token_cipher_key"`
	AccessTokenNonceKey  string `yaml:"access_token_nonce_key" json:"access_token_nonce_key"`
	AccessTokenHMACKey   string `yaml:"access_token_hmac_key" json:"access_token_hmac_key"`

	RefreshTokenCipherKey string `yaml:"refresh_token_cipher_key" json:"refresh_token_cipher_key"`
	RefreshTokenNonceKey  string `yaml:"refresh_token_nonce_key" json:"refresh_token_nonce_key"`
	RefreshTokenHMACKey   string `yaml:"refresh_token_hmac_key" json:"refresh_token_hmac_key"`

	PrehashCipherKey string `yaml:"prehash_cipher_key" json:"prehash_cipher_key"`
	PrehashNonceKey  string `yaml:"prehash_nonce_key" json:"prehash_nonce_key"`
	PrehashHMACKey   string `yaml:"prehash_hmac_key" json:"prehash_hmac_key"`

	Ed25519DerivationKey string `yaml:"ed25519_derivation_key" json:"ed25519_derivation_key"`

	SharedSecretChecksumKey   string `yaml:"shared_secret_checksum_key" json:"shared_secret_checksum_key"`
	SharedSecretDBIndexKey    string `yaml:"shared_secret_db_index_key" json:"shared_secret_db_index_key"`
	SharedSecretURLCipherKey  string `yaml:"shared_secret_url_cipher_key" json:"shared_secret_url_cipher_key"`
	SharedSecretContentKey    string `yaml:"shared_secret_content_key" json:"shared_secret_content_key"`

	UserPrivkeyIndexKey      string `yaml:"user_privkey_index_key" json:"user_privkey_index_key"`
	UserPrivkeyEncryptionKey string `yaml:"user_privkey_encryption_key" json:"user_privkey_encryption_key"`

	// Legacy (Argon2id-based) magic-link content crypto. Kept as config
	// surface so a future migration can add the legacy decrypt path; the
	// current build never reads these at runtime (see internal/magiclink).
	MLinkContentCipher string `yaml:"mlink_content_cipher" json:"mlink_content_cipher"`
	MLinkContentNonce  string `yaml:"mlink_content_nonce" json:"mlink_content_nonce"`
	MLinkContentSalt   string `yaml:"mlink_content_salt" json:"mlink_content_salt"`

	EncryptedMlinkTokenHashKey string `yaml:"encrypted_mlink_token_hash_key" json:"encrypted_mlink_token_hash_key"`
}

// TokenConfig holds the non-key scalar parameters of the token engines.
type TokenConfig struct {
	AccessTokenDurationMinutes  int `yaml:"access_token_duration_minutes" json:"access_token_duration_minutes"`
	RefreshTokenDurationMinutes int `yaml:"refresh_token_duration_minutes" json:"refresh_token_duration_minutes"`
}

// AccessTokenDuration returns the configured access-token lifetime.
func (t *TokenConfig) AccessTokenDuration() time.Duration {
	return time.Duration(t.AccessTokenDurationMinutes) * time.Minute
}

// RefreshTokenDuration returns the configured refresh-token lifetime.
func (t *TokenConfig) RefreshTokenDuration() time.Duration {
	return time.Duration(t.RefreshTokenDurationMinutes) * time.Minute
}

// StorageConfig configures the persistence adapter (pkg/storage).
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "postgres" or "memory"
	DSN    string `yaml:"dsn" json:"dsn"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	PrettyPrint bool  `yaml:"pretty_print" json:"pretty_print"`
}

// MetricsConfig configures internal/metrics.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// HealthConfig configures internal/health.
type HealthConfig struct {
	CheckTimeout time.Duration `yaml:"check_timeout" json:"check_timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// RateLimitConfig configures internal/ratelimit.
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	SweepInterval     time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}
