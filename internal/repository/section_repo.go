package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hoodwatch/internal/models"
)

type SectionSQLite struct {
	db *sql.DB
}

func NewSectionSQLite(db *sql.DB) *SectionSQLite {
	return &SectionSQLite{db: db}
}

var _ SectionRepo = (*SectionSQLite)(nil)

// ErrSectionNotFound is returned by Get for an unknown section id.
var ErrSectionNotFound = errors.New("section not found")

const (
	upsertSectionSQL = `
		INSERT INTO sections (id, name, address, cleaning_interval_days, last_cleaned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			address=excluded.address,
			cleaning_interval_days=excluded.cleaning_interval_days,
			last_cleaned_at=excluded.last_cleaned_at
	`

	selectSectionsSQL = `
		SELECT id, name, address, cleaning_interval_days, last_cleaned_at
		FROM sections ORDER BY id ASC
	`

	selectSectionSQL = `
		SELECT id, name, address, cleaning_interval_days, last_cleaned_at
		FROM sections WHERE id = ?
	`

	updateAddressSQL = `UPDATE sections SET address = ? WHERE id = ?`
	markCleanedSQL   = `UPDATE sections SET last_cleaned_at = ? WHERE id = ?`
	deleteSectionSQL = `DELETE FROM sections WHERE id = ?`
)

func (r *SectionSQLite) List(ctx context.Context) ([]models.Section, error) {
	rows, err := r.db.QueryContext(ctx, selectSectionsSQL)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	out := make([]models.Section, 0, 16)
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SectionSQLite) Get(ctx context.Context, id string) (models.Section, error) {
	row := r.db.QueryRowContext(ctx, selectSectionSQL, id)
	s, err := scanSection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Section{}, ErrSectionNotFound
		}
		return models.Section{}, fmt.Errorf("get section %q: %w", id, err)
	}
	return s, nil
}

func (r *SectionSQLite) Save(ctx context.Context, s models.Section) error {
	var cleaned any
	if s.LastCleanedAt != nil {
		cleaned = s.LastCleanedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertSectionSQL,
		s.ID, s.Name, s.Address, s.CleaningIntervalDays, cleaned)
	if err != nil {
		return fmt.Errorf("save section %q: %w", s.ID, err)
	}
	return err
}

func (r *SectionSQLite) UpdateAddress(ctx context.Context, id, address string) error {
	res, err := r.db.ExecContext(ctx, updateAddressSQL, address, id)
	if err != nil {
		return fmt.Errorf("update address of %q: %w", id, err)
	}
	return requireRow(res, id)
}

func (r *SectionSQLite) MarkCleaned(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, markCleanedSQL, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark cleaned %q: %w", id, err)
	}
	return requireRow(res, id)
}

func (r *SectionSQLite) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, deleteSectionSQL, id)
	if err != nil {
		return fmt.Errorf("delete section %q: %w", id, err)
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSectionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (models.Section, error) {
	var (
		s       models.Section
		address sql.NullString
		cleaned sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Name, &address, &s.CleaningIntervalDays, &cleaned); err != nil {
		return models.Section{}, err
	}
	s.Address = address.String
	if cleaned.Valid {
		t := cleaned.Time.UTC()
		s.LastCleanedAt = &t
	}
	return s, nil
}
