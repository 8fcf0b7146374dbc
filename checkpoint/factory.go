package checkpoint

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// StoreType selects a checkpoint storage backend.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// DatabaseConfig configures the relational checkpoint store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Name     string `yaml:"name" json:"name"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// DSN returns the connection string for the configured driver. For sqlite
// the Name field holds the database file path.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// Config selects and configures a checkpoint store backend.
type Config struct {
	Type     StoreType      `yaml:"type" json:"type"`
	Dir      string         `yaml:"dir" json:"dir"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

// New builds a checkpoint store from configuration. An empty type selects
// the in-memory store.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "", StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeFile:
		dir := cfg.Dir
		if dir == "" {
			dir = "./checkpoints"
		}
		return NewFileStore(dir, logger)
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis, logger)
	case StoreTypeDatabase:
		db, err := OpenDatabase(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, logger)
	default:
		return nil, fmt.Errorf("unsupported checkpoint store type: %s", cfg.Type)
	}
}

// OpenDatabase opens a GORM connection for the configured driver.
func OpenDatabase(cfg DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		if cfg.Name == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Info("checkpoint database connected", zap.String("driver", cfg.Driver))
	return db, nil
}
