package data

import (
	"context"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewDB,
	NewRedis,
	NewRedsync,
	NewLockFactory,
	NewTransactionRepo,
	NewSessionRepo,
	NewWebhookEventRepo,
	NewFeeRuleRepo,
	NewRetryScheduleRepo,
	NewCustomerRepo,
	NewKafkaNotifier,
	wire.Bind(new(biz.TxManager), new(*Data)),
)

// Data .
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

type contextTxKey struct{}

// Exec runs fn inside one database transaction. Repositories called with
// the derived context participate in it.
func (d *Data) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, contextTxKey{}, tx)
		return fn(ctx)
	})
}

// DB returns the ambient transaction handle if Exec opened one, else a
// plain context-scoped handle.
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// NewData .
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	}
	return &Data{db: db, rdb: rdb}, cleanup, nil
}

// NewDB .
func NewDB(c *conf.Bootstrap) *gorm.DB {
	source := ""
	if c != nil && c.Data != nil {
		source = c.Data.Database.Source
	}
	if source == "" {
		panic("database source is required")
	}

	db, err := gorm.Open(postgres.Open(source), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}

	dbConf := c.Data.Database
	if dbConf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConf.MaxIdleConns)
	}
	if dbConf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConf.MaxOpenConns)
	}
	if dbConf.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(dbConf.ConnMaxLifetime); err == nil {
			sqlDB.SetConnMaxLifetime(d)
		}
	}
	return db
}

// NewRedis .
func NewRedis(c *conf.Bootstrap) *redis.Client {
	var readTimeout, writeTimeout time.Duration
	var addr, password string
	var db int32

	if c != nil && c.Data != nil {
		redisConf := c.Data.Redis
		if redisConf.ReadTimeout != "" {
			if d, err := time.ParseDuration(redisConf.ReadTimeout); err == nil {
				readTimeout = d
			}
		}
		if redisConf.WriteTimeout != "" {
			if d, err := time.ParseDuration(redisConf.WriteTimeout); err == nil {
				writeTimeout = d
			}
		}
		addr = redisConf.Addr
		password = redisConf.Password
		db = redisConf.Db
	}

	if addr == "" {
		addr = "localhost:6379"
	}

	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           int(db),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
}

// NewRedsync builds the distributed lock factory for the retry sweep.
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	pool := goredis.NewPool(rdb)
	return redsync.New(pool)
}
