package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

type celestialRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

type celestialRowDB struct {
	Date              time.Time       `db:"date"`
	LunarPhaseAngle   float64         `db:"lunar_phase_angle"`
	Illumination      float64         `db:"illumination"`
	SolarEclipse      bool            `db:"solar_eclipse"`
	LunarEclipse      bool            `db:"lunar_eclipse"`
	Retrograde        json.RawMessage `db:"retrograde"`
	EclipticLongitude json.RawMessage `db:"ecliptic_longitude"`
	Aspects           json.RawMessage `db:"aspects"`
	Ingresses         json.RawMessage `db:"ingresses"`
}

// Upsert keys on the civil date — the ephemeris provider is deterministic, so
// re-computing and re-upserting a date is always safe (spec §3.2).
func (r *celestialRepo) Upsert(ctx context.Context, s domain.CelestialState) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	retroJSON, err := json.Marshal(s.Retrograde)
	if err != nil {
		return fmt.Errorf("postgres: marshal retrograde: %w", err)
	}
	longJSON, err := json.Marshal(s.EclipticLongitude)
	if err != nil {
		return fmt.Errorf("postgres: marshal ecliptic longitude: %w", err)
	}
	aspectsJSON, err := json.Marshal(s.Aspects)
	if err != nil {
		return fmt.Errorf("postgres: marshal aspects: %w", err)
	}
	ingressesJSON, err := json.Marshal(s.Ingresses)
	if err != nil {
		return fmt.Errorf("postgres: marshal ingresses: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO celestial_states (date, lunar_phase_angle, illumination, solar_eclipse, lunar_eclipse, retrograde, ecliptic_longitude, aspects, ingresses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date) DO UPDATE SET
			lunar_phase_angle = EXCLUDED.lunar_phase_angle, illumination = EXCLUDED.illumination,
			solar_eclipse = EXCLUDED.solar_eclipse, lunar_eclipse = EXCLUDED.lunar_eclipse,
			retrograde = EXCLUDED.retrograde, ecliptic_longitude = EXCLUDED.ecliptic_longitude,
			aspects = EXCLUDED.aspects, ingresses = EXCLUDED.ingresses`,
		s.Date, s.LunarPhaseAngle, s.Illumination, s.SolarEclipse, s.LunarEclipse,
		retroJSON, longJSON, aspectsJSON, ingressesJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert celestial state: %w", err)
	}
	return nil
}

func (r *celestialRepo) Get(ctx context.Context, date time.Time) (*domain.CelestialState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row celestialRowDB
	err := r.db.GetContext(ctx, &row, `
		SELECT date, lunar_phase_angle, illumination, solar_eclipse, lunar_eclipse, retrograde, ecliptic_longitude, aspects, ingresses
		FROM celestial_states WHERE date = $1`, date.UTC().Truncate(24*time.Hour))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get celestial state: %w", err)
	}
	out := celestialRowFromDB(row)
	return &out, nil
}

func (r *celestialRepo) RangeBack(ctx context.Context, asOf time.Time, days int) ([]domain.CelestialState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	from := asOf.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)

	var rows []celestialRowDB
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date, lunar_phase_angle, illumination, solar_eclipse, lunar_eclipse, retrograde, ecliptic_longitude, aspects, ingresses
		FROM celestial_states
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC`, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("postgres: range back celestial states: %w", err)
	}
	out := make([]domain.CelestialState, 0, len(rows))
	for _, row := range rows {
		out = append(out, celestialRowFromDB(row))
	}
	return out, nil
}

func celestialRowFromDB(row celestialRowDB) domain.CelestialState {
	out := domain.CelestialState{
		Date:            row.Date,
		LunarPhaseAngle: row.LunarPhaseAngle,
		Illumination:    row.Illumination,
		SolarEclipse:    row.SolarEclipse,
		LunarEclipse:    row.LunarEclipse,
	}
	_ = json.Unmarshal(row.Retrograde, &out.Retrograde)
	_ = json.Unmarshal(row.EclipticLongitude, &out.EclipticLongitude)
	_ = json.Unmarshal(row.Aspects, &out.Aspects)
	_ = json.Unmarshal(row.Ingresses, &out.Ingresses)
	return out
}
