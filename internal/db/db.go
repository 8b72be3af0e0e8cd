package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lexpertease/internal/config"
	"lexpertease/internal/repository"
	"lexpertease/internal/repository/memory"
)

const mongoOperationTimeout = 45 * time.Second

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// NewMySQL returns a connected GORM DB instance.
func NewMySQL(dsn string, poolSize int) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return withPool(db, poolSize)
}

// NewPostgres returns a connected GORM DB instance.
func NewPostgres(dsn string, poolSize int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return withPool(db, poolSize)
}

func withPool(db *gorm.DB, poolSize int) (*gorm.DB, error) {
	if poolSize <= 0 {
		return db, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)
	return db, nil
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, uri string, poolSize int, timeout time.Duration) (*mongo.Client, error) {
	client, err := mongo.Connect(mongoOptions(uri, poolSize, timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// mongoOptions builds the client options. Operations without their own
// deadline are bounded by mongoOperationTimeout.
func mongoOptions(uri string, poolSize int, timeout time.Duration) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetTimeout(mongoOperationTimeout)
	if poolSize > 0 {
		opts.SetMaxPoolSize(uint64(poolSize))
	}
	return opts
}

// OpenStore connects the backend named by cfg.DBDriver and prepares its
// schema: AutoMigrate for SQL drivers, indexes for MongoDB.
func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Store, error) {
	switch cfg.DBDriver {
	case "mongo":
		client, err := NewMongo(ctx, cfg.MongoURI, cfg.DBPoolSize, cfg.DBConnectTimeout)
		if err != nil {
			return nil, err
		}
		if err := repository.EnsureMongoIndexes(ctx, client, cfg.MongoDatabase); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Info("connected to mongodb", slog.String("database", cfg.MongoDatabase))
		return repository.NewMongoStore(client, cfg.MongoDatabase), nil
	case "mysql", "postgres":
		var (
			gormDB *gorm.DB
			err    error
		)
		if cfg.DBDriver == "mysql" {
			gormDB, err = NewMySQL(cfg.MySQLDSN, cfg.DBPoolSize)
		} else {
			gormDB, err = NewPostgres(cfg.PostgresDSN, cfg.DBPoolSize)
		}
		if err != nil {
			return nil, err
		}
		if err := repository.AutoMigrate(gormDB); err != nil {
			return nil, err
		}
		log.Info("connected to sql database", slog.String("driver", cfg.DBDriver))
		return repository.NewGormStore(gormDB), nil
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
