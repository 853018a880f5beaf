package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKeySet() *KeySetConfig {
	return &KeySetConfig{
		JWTSecret:                  "aa",
		Argon2Salt:                 "bb",
		MagicLinkHMACKey:           "cc",
		UserIDHMACKey:              "dd",
		UserIDArgon2Compression:    "ee",
		ChaChaEncryptionKey:        "ff",
		AccessTokenCipherKey:       "11",
		AccessTokenNonceKey:        "22",
		AccessTokenHMACKey:         "33",
		RefreshTokenCipherKey:      "44",
		RefreshTokenNonceKey:       "55",
		RefreshTokenHMACKey:        "66",
		PrehashCipherKey:           "77",
		PrehashNonceKey:            "88",
		PrehashHMACKey:             "99",
		Ed25519DerivationKey:       "aa",
		SharedSecretChecksumKey:    "bb",
		SharedSecretDBIndexKey:     "cc",
		SharedSecretURLCipherKey:   "dd",
		SharedSecretContentKey:     "ee",
		UserPrivkeyIndexKey:        "ff",
		UserPrivkeyEncryptionKey:   "11",
		MLinkContentCipher:         "22",
		MLinkContentNonce:          "33",
		MLinkContentSalt:           "44",
		EncryptedMlinkTokenHashKey: "55",
	}
}

func validConfig() *Config {
	return &Config{
		Keys: validKeySet(),
		Tokens: &TokenConfig{
			AccessTokenDurationMinutes:  15,
			RefreshTokenDurationMinutes: 4320,
		},
		Storage: &StorageConfig{Driver: "memory"},
		Server:  &ServerConfig{ListenAddr: ":8080"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Keys.JWTSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRefreshShorterThanAccess(t *testing.T) {
	cfg := validConfig()
	cfg.Tokens.RefreshTokenDurationMinutes = 10
	cfg.Tokens.AccessTokenDurationMinutes = 15
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPostgresWithoutDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestTokenDurations(t *testing.T) {
	tokens := &TokenConfig{AccessTokenDurationMinutes: 15, RefreshTokenDurationMinutes: 4320}
	assert.Equal(t, 15*60, int(tokens.AccessTokenDuration().Seconds()))
	assert.Equal(t, 4320*60, int(tokens.RefreshTokenDuration().Seconds()))
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{Keys: validKeySet()}
	setDefaults(cfg)

	assert.Equal(t, 15, cfg.Tokens.AccessTokenDurationMinutes)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotZero(t, cfg.Health.CheckTimeout)
	assert.NotZero(t, cfg.RateLimit.RequestsPerSecond)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("HASHRAND_TEST_VALUE", "substituted")

	out := SubstituteEnvVars("value: $HASHRAND_TEST_VALUE and ${HASHRAND_TEST_VALUE}")
	assert.Equal(t, "value: substituted and substituted", out)
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("HASHRAND_ENV", "")
	assert.Equal(t, "development", GetEnvironment())
	assert.True(t, IsDevelopment())
	assert.False(t, IsProduction())
}
