package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/train-booking/internal/models"
)

// PostgresStore reads the catalog from the tables created by
// migrations/001_create_catalog.sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

// Migrate executes a migration script.
func (p *PostgresStore) Migrate(ctx context.Context, script string) error {
	_, err := p.db.ExecContext(ctx, script)
	return err
}

func (p *PostgresStore) Stations(ctx context.Context) ([]models.Station, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, city, latitude, longitude FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()
	var out []models.Station
	index := make(map[int]int)
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.ID, &s.City, &s.Latitude, &s.Longitude); err != nil {
			return nil, err
		}
		s.ConnectedTo = []models.StationRef{}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := p.db.QueryContext(ctx, `SELECT from_id, to_id, distance FROM station_links ORDER BY from_id, to_id`)
	if err != nil {
		return nil, fmt.Errorf("query station links: %w", err)
	}
	defer links.Close()
	for links.Next() {
		var from int
		var ref models.StationRef
		if err := links.Scan(&from, &ref.ID, &ref.Distance); err != nil {
			return nil, err
		}
		if i, ok := index[from]; ok {
			out[i].ConnectedTo = append(out[i].ConnectedTo, ref)
		}
	}
	return out, links.Err()
}

func (p *PostgresStore) Carriages(ctx context.Context) ([]models.Carriage, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT code, name, rows, left_seats, right_seats FROM carriages ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query carriages: %w", err)
	}
	defer rows.Close()
	var out []models.Carriage
	for rows.Next() {
		var c models.Carriage
		if err := rows.Scan(&c.Code, &c.Name, &c.Rows, &c.LeftSeats, &c.RightSeats); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Routes(ctx context.Context) ([]models.Route, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, path, carriages FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	var out []models.Route
	for rows.Next() {
		var (
			r         models.Route
			path      pq.Int64Array
			carriages pq.StringArray
		)
		if err := rows.Scan(&r.ID, &path, &carriages); err != nil {
			return nil, err
		}
		r.Path = make([]int, len(path))
		for i, id := range path {
			r.Path[i] = int(id)
		}
		r.Carriages = []string(carriages)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateRoute(ctx context.Context, r models.Route) (models.Route, error) {
	path := make(pq.Int64Array, len(r.Path))
	for i, id := range r.Path {
		path[i] = int64(id)
	}
	err := p.db.QueryRowContext(ctx, `INSERT INTO routes(path, carriages) VALUES($1, $2) RETURNING id`,
		path, pq.StringArray(r.Carriages)).Scan(&r.ID)
	if err != nil {
		return models.Route{}, fmt.Errorf("insert route: %w", err)
	}
	return r, nil
}
