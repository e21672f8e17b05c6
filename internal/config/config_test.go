package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")

	// an empty STORE_DRIVER is not a known driver
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "banking", cfg.KafkaTopicPrefix)
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	assert.True(t, cfg.SeedDemo)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SEED_DEMO", "false")
	t.Setenv("NOTIFY_QUEUE_SIZE", "16")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.SeedDemo)
	assert.Equal(t, 16, cfg.NotifyQueueSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{StoreDriver: StoreMemory, JWTSecret: "s", NotifyQueueSize: 1}, true},
		{"postgres without url", Config{StoreDriver: StorePostgres, JWTSecret: "s", NotifyQueueSize: 1}, false},
		{"unknown driver", Config{StoreDriver: "mongo", JWTSecret: "s", NotifyQueueSize: 1}, false},
		{"missing secret", Config{StoreDriver: StoreMemory, NotifyQueueSize: 1}, false},
		{"zero queue", Config{StoreDriver: StoreMemory, JWTSecret: "s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
