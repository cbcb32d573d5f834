package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-bulk-worker/internal/domain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// dispatchRow is the persisted shape of domain.Dispatch.
type dispatchRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID        string    `gorm:"type:varchar(255);index"`
	Mode           string    `gorm:"type:varchar(20);not null"`
	Status         string    `gorm:"type:varchar(20);not null;index"`
	Requested      int       `gorm:"not null"`
	TotalAttempted int       `gorm:"not null"`
	Sent           int       `gorm:"not null"`
	Failed         int       `gorm:"not null"`
	Error          string    `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

func (dispatchRow) TableName() string {
	return "dispatches"
}

func toRow(d domain.Dispatch) dispatchRow {
	return dispatchRow{
		ID:             d.ID,
		GroupID:        d.GroupID,
		Mode:           d.Mode,
		Status:         string(d.Status),
		Requested:      d.Requested,
		TotalAttempted: d.Result.TotalAttempted,
		Sent:           d.Result.Sent,
		Failed:         d.Result.Failed,
		Error:          d.Error,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		StartedAt:      d.StartedAt,
		FinishedAt:     d.FinishedAt,
	}
}

func (r dispatchRow) toDomain() domain.Dispatch {
	return domain.Dispatch{
		ID:        r.ID,
		GroupID:   r.GroupID,
		Mode:      r.Mode,
		Status:    domain.Status(r.Status),
		Requested: r.Requested,
		Result: domain.BulkSendResult{
			TotalAttempted: r.TotalAttempted,
			Sent:           r.Sent,
			Failed:         r.Failed,
		},
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// Store implements ports.DispatchStore using PostgreSQL through GORM.
type Store struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection and returns a Store.
func New(dsn string) (*Store, error) {
	return open(postgres.Open(dsn))
}

func open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate creates or updates the dispatches table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&dispatchRow{}); err != nil {
		return fmt.Errorf("migrate dispatches: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts the record by ID.
func (s *Store) Save(ctx context.Context, d domain.Dispatch) error {
	row := toRow(d)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert dispatch: %w", err)
	}
	return nil
}

// Get loads a record by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Dispatch, error) {
	var row dispatchRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Dispatch{}, domain.ErrDispatchNotFound
	}
	if err != nil {
		return domain.Dispatch{}, fmt.Errorf("select dispatch: %w", err)
	}
	return row.toDomain(), nil
}
