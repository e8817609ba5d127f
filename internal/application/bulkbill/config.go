package bulkbill

import (
	"time"

	"github.com/societyledger/backend/internal/infrastructure/config"
)

// Config tunes one bulk-bill run
type Config struct {
	// Concurrency caps simultaneous settlement transactions
	Concurrency int
	// PreloadChunkSize is how many flat keys go into one directory query
	PreloadChunkSize int
	// MaxSettlementAttempts bounds the wallet transaction retries per recipient
	MaxSettlementAttempts int
	// SettlementBackoff is the pause before the n-th retry, multiplied by n
	SettlementBackoff time.Duration
	WriterBatchSize   int
	WriterQueueSize   int
	IdempotencyTTL    time.Duration
}

// DefaultConfig matches the configuration file defaults
func DefaultConfig() Config {
	return Config{
		Concurrency:           25,
		PreloadChunkSize:      400,
		MaxSettlementAttempts: 3,
		SettlementBackoff:     25 * time.Millisecond,
		WriterBatchSize:       100,
		WriterQueueSize:       500,
		IdempotencyTTL:        24 * time.Hour,
	}
}

// ConfigFrom maps the billing section of the application config
func ConfigFrom(c config.BillingConfig, ledgerBackoff time.Duration) Config {
	cfg := Config{
		Concurrency:           c.Concurrency,
		PreloadChunkSize:      c.PreloadChunkSize,
		MaxSettlementAttempts: c.MaxSettlementAttempts,
		SettlementBackoff:     ledgerBackoff,
		WriterBatchSize:       c.WriterBatchSize,
		WriterQueueSize:       c.WriterQueueSize,
		IdempotencyTTL:        c.IdempotencyTTL,
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.PreloadChunkSize <= 0 {
		c.PreloadChunkSize = d.PreloadChunkSize
	}
	if c.MaxSettlementAttempts <= 0 {
		c.MaxSettlementAttempts = d.MaxSettlementAttempts
	}
	if c.SettlementBackoff < 0 {
		c.SettlementBackoff = 0
	}
	if c.WriterBatchSize <= 0 {
		c.WriterBatchSize = d.WriterBatchSize
	}
	if c.WriterQueueSize <= 0 {
		c.WriterQueueSize = d.WriterQueueSize
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = d.IdempotencyTTL
	}
	return c
}
