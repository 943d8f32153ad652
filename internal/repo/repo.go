package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/ncruces/go-sqlite3"
	"github.com/rs/zerolog"

	"workshopportal/internal/model"
)

var ErrDuplicateEmail = errors.New("email already registered")

//go:embed migrations/*.sql
var migrations embed.FS

type Repository interface {
	Initialize() error
	Create(ctx context.Context, reg *model.Registration) (int64, error)
	ListAll(ctx context.Context) ([]model.Registration, error)
	DeleteByID(ctx context.Context, id int64) error
}

type repository struct {
	db  *sql.DB
	log *zerolog.Logger
}

func NewRepository(db *sql.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

// Initialize applies the embedded migrations. Already-applied migrations are
// skipped and existing rows are left untouched, so it runs on every start.
func (r *repository) Initialize() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(r.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	r.log.Info().Msg("students table is ready")
	return nil
}

func (r *repository) Create(ctx context.Context, reg *model.Registration) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM students
		WHERE email = ?
	`, reg.Email).Scan(&existing)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to check duplicate email: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return 0, ErrDuplicateEmail
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO students (name, email, phone, institution, course, workshop, referrer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, reg.Name, reg.Email, reg.Phone, reg.Institution, reg.Course, reg.Workshop, nullable(reg.Referrer))
	if err != nil {
		_ = tx.Rollback()
		// a concurrent writer may have won the race after the count above
		if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("failed to create registration: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to read registration id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	reg.ID = id
	return id, nil
}

func (r *repository) ListAll(ctx context.Context) ([]model.Registration, error) {
	query := `
		SELECT id, name, email, phone, institution, course, workshop, referrer
		FROM students
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]model.Registration, 0)
	for rows.Next() {
		var (
			reg      model.Registration
			referrer sql.NullString
		)
		if err := rows.Scan(
			&reg.ID,
			&reg.Name,
			&reg.Email,
			&reg.Phone,
			&reg.Institution,
			&reg.Course,
			&reg.Workshop,
			&referrer,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		if referrer.Valid {
			reg.Referrer = &referrer.String
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}

	return regs, nil
}

func (r *repository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.log.Debug().Int64("registration_id", id).Msg("delete of unknown registration ignored")
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
