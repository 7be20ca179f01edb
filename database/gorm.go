package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sahilchouksey/course-ingest/config"
	"github.com/sahilchouksey/course-ingest/model"
	"github.com/sahilchouksey/course-ingest/utils/logger"
)

type GORMStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(cfg *config.Config, log *logger.Logger) (*GORMStore, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if cfg.Env == config.EnvProduction {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		log.Error("Unable to connect to PostgreSQL with GORM", "error", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Successfully connected to PostgreSQL with GORM", "host", cfg.Database.Host, "database", cfg.Database.Name)
	return &GORMStore{db: db, log: log}, nil
}

// NewGORMStore wraps an existing connection.
func NewGORMStore(db *gorm.DB, log *logger.Logger) *GORMStore {
	return &GORMStore{db: db, log: log}
}

// Init runs AutoMigrate for the ingestion tables
func (s *GORMStore) Init() error {
	s.log.Info("Running GORM AutoMigrate")
	err := s.db.AutoMigrate(
		&model.IngestionJob{},
		&model.ExamQuestion{},
		&model.CalendarEvent{},
		&model.Topic{},
	)
	if err != nil {
		s.log.Error("AutoMigrate failed", "error", err)
		return err
	}
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	s.log.Info("Closing GORM PostgreSQL connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
