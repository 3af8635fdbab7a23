package db

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"microticks/internal/config"
)

// Gateway owns the database handle shared by the three stores.
type Gateway struct {
	DB *gorm.DB

	Consumers *Consumers
	Sessions  *Sessions
	Events    *Events

	log *zap.Logger
}

// Connect opens PostgreSQL when cfg.DatabaseURL is a postgres:// URL and a
// SQLite file under cfg.InstancePath otherwise, then creates missing tables.
func Connect(cfg *config.Config, log *zap.Logger) (*Gateway, error) {
	var dialector gorm.Dialector
	switch {
	case cfg.UsesPostgres():
		dialector = postgres.Open(cfg.DatabaseURL)
	case cfg.DatabaseURL != "":
		return nil, fmt.Errorf("MICROTICKS_DATABASE_URL must be a postgres:// or postgresql:// URL")
	default:
		if err := os.MkdirAll(cfg.InstancePath, 0o755); err != nil {
			return nil, fmt.Errorf("create instance path: %w", err)
		}
		dialector = sqlite.Open(cfg.SQLitePath())
	}

	gw, err := Open(dialector, log)
	if err != nil {
		return nil, err
	}
	log.Info("database ready", zap.Bool("postgres", cfg.UsesPostgres()))
	return gw, nil
}

// Open wraps an arbitrary dialector; tests use it with a throwaway SQLite file.
func Open(dialector gorm.Dialector, log *zap.Logger) (*Gateway, error) {
	level := gormlogger.Silent
	if log.Core().Enabled(zapcore.DebugLevel) {
		level = gormlogger.Info
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	gdb, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(level),
		// Sessions and events are swept independently; no cascading constraints.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	gw := &Gateway{DB: gdb, log: log}
	if err := gw.Init(); err != nil {
		return nil, err
	}

	now := func() time.Time { return time.Now().UTC() }
	gw.Consumers = &Consumers{db: gdb, log: log.Named("consumers"), now: now}
	gw.Sessions = &Sessions{db: gdb, log: log.Named("sessions")}
	gw.Events = &Events{db: gdb, log: log.Named("events")}
	return gw, nil
}

// Init creates the consumers, sessions and events tables if they are missing.
func (g *Gateway) Init() error {
	if err := g.DB.AutoMigrate(&Consumer{}, &Session{}, &Event{}); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Cleanup removes dangling sessions, then the events they orphaned. It is
// meant to run once at startup, before serving traffic.
func (g *Gateway) Cleanup() (sessions, events int64, err error) {
	if sessions, err = g.Sessions.Cleanup(); err != nil {
		return 0, 0, err
	}
	if events, err = g.Events.Cleanup(); err != nil {
		return sessions, 0, err
	}
	return sessions, events, nil
}

func (g *Gateway) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
