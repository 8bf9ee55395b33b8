package mosques

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manarah-platform/manarah/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const mosqueColumns = `id, name, city, district, capacity, status, created_at, updated_at`

// Create inserts a mosque and returns its id.
func (r *Repository) Create(ctx context.Context, m Mosque) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO mosques (name, city, district, capacity, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		m.Name, m.City, m.District, m.Capacity, string(m.Status)).Scan(&id)
	return id, err
}

// Update rewrites a mosque record.
func (r *Repository) Update(ctx context.Context, m Mosque) error {
	tag, err := r.pool.Exec(ctx, `UPDATE mosques SET name=$2, city=$3, district=$4, capacity=$5, status=$6, updated_at=NOW() WHERE id=$1`,
		m.ID, m.Name, m.City, m.District, m.Capacity, string(m.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Failf(shared.ErrNotFound, "mosque %d not found", m.ID)
	}
	return nil
}

// Get returns one mosque by id.
func (r *Repository) Get(ctx context.Context, id int64) (Mosque, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mosqueColumns+` FROM mosques WHERE id=$1`, id)
	m, err := scanMosque(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mosque{}, shared.Failf(shared.ErrNotFound, "mosque %d not found", id)
		}
		return Mosque{}, err
	}
	return m, nil
}

// List returns the registry, optionally filtered by city.
func (r *Repository) List(ctx context.Context, city string) ([]Mosque, error) {
	query := `SELECT ` + mosqueColumns + ` FROM mosques`
	args := []any{}
	if city != "" {
		query += ` WHERE city=$1`
		args = append(args, city)
	}
	query += ` ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mosque
	for rows.Next() {
		m, err := scanMosque(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Exists reports whether an active mosque with the id is registered.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM mosques WHERE id=$1 AND status=$2)`, id, string(StatusActive)).Scan(&ok)
	return ok, err
}

func scanMosque(row pgx.Row) (Mosque, error) {
	var m Mosque
	var status string
	if err := row.Scan(&m.ID, &m.Name, &m.City, &m.District, &m.Capacity, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Mosque{}, err
	}
	m.Status = Status(status)
	return m, nil
}
