package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/ports"
)

// ObservationRepo implements ports.ObservationRepository with pgx.
type ObservationRepo struct {
	db *DB
}

// NewObservationRepo creates a new ObservationRepo.
func NewObservationRepo(db *DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

const upsertObservationSQL = `
	INSERT INTO observations (id, source, user_id, latitude, longitude, observed_at, photo, single, checklist, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE
	SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
	    observed_at = EXCLUDED.observed_at, photo = EXCLUDED.photo,
	    single = EXCLUDED.single, checklist = EXCLUDED.checklist,
	    payload = EXCLUDED.payload, updated_at = now()
`

const selectObservationSQL = `
	SELECT id, source, user_id, latitude, longitude, observed_at, photo,
	       single, checklist, payload
	FROM observations`

// UpsertBatch inserts or updates many observations using pgx.Batch.
func (r *ObservationRepo) UpsertBatch(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range obs {
		o := &obs[i]
		single, checklist, payload, err := encodeVariant(o)
		if err != nil {
			return fmt.Errorf("encode %s: %w", o.ID, err)
		}
		batch.Queue(upsertObservationSQL,
			o.ID, string(o.Source), o.UserID, o.Latitude, o.Longitude,
			o.ObservedAt, o.Photo, single, checklist, payload)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns one observation by its source-qualified ID.
func (r *ObservationRepo) GetByID(ctx context.Context, id string) (*domain.Observation, error) {
	row := r.db.Pool.QueryRow(ctx, selectObservationSQL+` WHERE id = $1`, id)
	o, err := scanObservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// List returns observations matching the filter, newest first.
func (r *ObservationRepo) List(ctx context.Context, filter ports.ObservationFilter) ([]domain.Observation, error) {
	where, args := listConditions(filter)
	query := selectObservationSQL
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY observed_at DESC, id"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Delete removes an observation. Deleting a missing ID reports ErrNotFound.
func (r *ObservationRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM observations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByUser returns the number of stored observations per source.
func (r *ObservationRepo) CountByUser(ctx context.Context, userID string) (map[domain.Source]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT source, COUNT(*) FROM observations
		WHERE user_id = $1
		GROUP BY source
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Source]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, err
		}
		counts[domain.Source(src)] = n
	}
	return counts, rows.Err()
}

// listConditions builds the WHERE clause and positional args for a filter.
func listConditions(f ports.ObservationFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if f.Bounds != nil && !f.Bounds.Empty() {
		add("latitude >= $%d", f.Bounds.MinLat)
		add("latitude <= $%d", f.Bounds.MaxLat)
		add("longitude >= $%d", f.Bounds.MinLon)
		add("longitude <= $%d", f.Bounds.MaxLon)
	}
	return strings.Join(conds, " AND "), args
}

func encodeVariant(o *domain.Observation) (single, checklist, payload []byte, err error) {
	if o.Single != nil {
		if single, err = json.Marshal(o.Single); err != nil {
			return nil, nil, nil, err
		}
	}
	if len(o.Checklist) > 0 {
		if checklist, err = json.Marshal(o.Checklist); err != nil {
			return nil, nil, nil, err
		}
	}
	if len(o.Payload) > 0 {
		if payload, err = json.Marshal(o.Payload); err != nil {
			return nil, nil, nil, err
		}
	}
	return single, checklist, payload, nil
}

func scanObservation(row pgx.Row) (*domain.Observation, error) {
	var o domain.Observation
	var src string
	var single, checklist, payload []byte
	if err := row.Scan(
		&o.ID, &src, &o.UserID, &o.Latitude, &o.Longitude, &o.ObservedAt, &o.Photo,
		&single, &checklist, &payload,
	); err != nil {
		return nil, err
	}
	o.Source = domain.Source(src)

	if len(single) > 0 {
		o.Single = &domain.SingleSpecies{}
		if err := json.Unmarshal(single, o.Single); err != nil {
			return nil, fmt.Errorf("decode single %s: %w", o.ID, err)
		}
	}
	if len(checklist) > 0 {
		if err := json.Unmarshal(checklist, &o.Checklist); err != nil {
			return nil, fmt.Errorf("decode checklist %s: %w", o.ID, err)
		}
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &o.Payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", o.ID, err)
		}
	}
	return &o, nil
}
