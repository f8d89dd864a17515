// Package mongo реализует storage.Store на MongoDB.
// Транзакции InTx требуют replica set; единственность текущей подписки
// обеспечивает частичный уникальный индекс по userId (MongoDB 6.0+).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrFailedToConnect возвращается, когда все попытки подключения исчерпаны.
var ErrFailedToConnect = errors.New("failed to connect to mongo")

// Config параметры подключения.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	RetryAttempts  int
	RetryInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
	if c.Database == "" {
		c.Database = "nextgig"
	}
	return c
}

// Connect подключается к MongoDB с повторными попытками.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := range cfg.RetryAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToConnect, ctx.Err())
			case <-time.After(cfg.RetryInterval):
			}
		}
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.URI).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err != nil {
			lastErr = err
			continue
		}
		if err := client.Ping(ctx, nil); err != nil {
			lastErr = err
			_ = client.Disconnect(ctx)
			continue
		}
		return client, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrFailedToConnect, lastErr)
}
