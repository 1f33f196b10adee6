package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loadEnvKeys = []string{
	"ERP_APP_NAME",
	"ERP_APP_ENV",
	"ERP_DATABASE_HOST",
	"ERP_DATABASE_PORT",
	"ERP_DATABASE_PASSWORD",
	"ERP_DATABASE_SSLMODE",
	"ERP_DATABASE_MAX_OPEN_CONNS",
	"ERP_DATABASE_MAX_IDLE_CONNS",
	"ERP_KAFKA_ENABLED",
	"ERP_KAFKA_BROKERS",
	"ERP_SETTLEMENT_DEFAULT_ACCOUNT",
	"ERP_SETTLEMENT_STRICT_BATCH",
	"ERP_SETTLEMENT_IDEMPOTENCY_TTL",
	"ERP_TELEMETRY_SAMPLING_RATIO",
	"ERP_TELEMETRY_DB_LOG_FULL_SQL",
}

// clearLoadEnv blanks every variable the tests touch; t.Setenv restores them afterwards
func clearLoadEnv(t *testing.T) {
	t.Helper()
	for _, k := range loadEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearLoadEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ledger", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "ledger", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "ledger.events", cfg.Kafka.Topic)
	assert.Equal(t, "ledger", cfg.Kafka.ClientID)
	assert.Equal(t, "ledger", cfg.Telemetry.ServiceName)
	assert.Equal(t, 24*time.Hour, cfg.Settlement.IdempotencyTTL)
	assert.False(t, cfg.Settlement.StrictBatch)
	assert.Nil(t, cfg.Settlement.DefaultAccountID())
	assert.Equal(t, []string{"OVERDUE_SWEEP", "CREDIT_RECONCILE"}, cfg.Maintenance.Jobs)
	assert.Equal(t, 2, cfg.Maintenance.RetryAttempts)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearLoadEnv(t)
	t.Setenv("ERP_APP_NAME", "ledger-test")
	t.Setenv("ERP_DATABASE_HOST", "db.internal")
	t.Setenv("ERP_DATABASE_PORT", "5433")
	t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "10")
	t.Setenv("ERP_SETTLEMENT_STRICT_BATCH", "true")
	t.Setenv("ERP_SETTLEMENT_IDEMPOTENCY_TTL", "2h")
	t.Setenv("ERP_SETTLEMENT_DEFAULT_ACCOUNT", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ledger-test", cfg.App.Name)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Settlement.StrictBatch)
	assert.Equal(t, 2*time.Hour, cfg.Settlement.IdempotencyTTL)
	require.NotNil(t, cfg.Settlement.DefaultAccountID())
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", cfg.Settlement.DefaultAccountID().String())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "idle above open",
			env:     map[string]string{"ERP_DATABASE_MAX_OPEN_CONNS": "10", "ERP_DATABASE_MAX_IDLE_CONNS": "20"},
			wantErr: "cannot exceed",
		},
		{
			name:    "negative idle",
			env:     map[string]string{"ERP_DATABASE_MAX_IDLE_CONNS": "-1"},
			wantErr: "max_idle_conns cannot be negative",
		},
		{
			name:    "kafka without brokers",
			env:     map[string]string{"ERP_KAFKA_ENABLED": "true"},
			wantErr: "kafka.brokers",
		},
		{
			name:    "default account not a uuid",
			env:     map[string]string{"ERP_SETTLEMENT_DEFAULT_ACCOUNT": "caixa"},
			wantErr: "settlement.default_account",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"ERP_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "sampling_ratio",
		},
		{
			name:    "production without password",
			env:     map[string]string{"ERP_APP_ENV": "production", "ERP_DATABASE_SSLMODE": "require"},
			wantErr: "database.password is required",
		},
		{
			name:    "production without ssl",
			env:     map[string]string{"ERP_APP_ENV": "production", "ERP_DATABASE_PASSWORD": "secret"},
			wantErr: "sslmode",
		},
		{
			name: "production logging full sql",
			env: map[string]string{
				"ERP_APP_ENV":                   "production",
				"ERP_DATABASE_PASSWORD":         "secret",
				"ERP_DATABASE_SSLMODE":          "require",
				"ERP_TELEMETRY_DB_LOG_FULL_SQL": "true",
			},
			wantErr: "db_log_full_sql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearLoadEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid production config", func(t *testing.T) {
		clearLoadEnv(t)
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_PASSWORD", "secret")
		t.Setenv("ERP_DATABASE_SSLMODE", "require")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "pass@word#123",
		DBName:   "ledger",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "pass%40word%23123")
	assert.Contains(t, dsn, "sslmode=disable")
}
