package repository

import (
	"context"
	"database/sql"
	"time"

	"hoodwatch/internal/models"
	"hoodwatch/internal/repository/db"
)

// InitDB opens the SQLite database and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// SectionRepo is the persisted fleet configuration the pollers are built
// from. The core holds read-only copies; writes happen only through the
// explicit operations below.
type SectionRepo interface {
	List(ctx context.Context) ([]models.Section, error)
	Get(ctx context.Context, id string) (models.Section, error)
	Save(ctx context.Context, s models.Section) error
	UpdateAddress(ctx context.Context, id, address string) error
	MarkCleaned(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.FleetEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.FleetEvent, error)
}

type Repository struct {
	Sections SectionRepo
	Events   EventRepo
	Auth     Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Sections: NewSectionSQLite(db),
		Events:   NewEventSQLite(db),
		Auth:     NewUserRepository(db),
	}
}
