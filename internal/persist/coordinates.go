package persist

import (
	"context"
	"fmt"

	"railmap/internal/domain"
)

// SaveCoordinate upserts one tiploc row.
func (db *DB) SaveCoordinate(ctx context.Context, c domain.Coordinate) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tiploc_coords (tiploc, lat, lon, name, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tiploc) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			name = excluded.name,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		c.Code, c.Lat, c.Lon, c.Name, c.Source, formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert tiploc %s: %w", c.Code, err)
	}
	return nil
}

// LoadCoordinates returns every stored tiploc.
func (db *DB) LoadCoordinates(ctx context.Context) ([]domain.Coordinate, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT tiploc, lat, lon, name, source, updated_at FROM tiploc_coords ORDER BY tiploc")
	if err != nil {
		return nil, fmt.Errorf("load tiplocs: %w", err)
	}
	defer rows.Close()

	var coords []domain.Coordinate
	for rows.Next() {
		var c domain.Coordinate
		var name, source *string
		var updatedAt string
		if err := rows.Scan(&c.Code, &c.Lat, &c.Lon, &name, &source, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan tiploc: %w", err)
		}
		if name != nil {
			c.Name = *name
		}
		if source != nil {
			c.Source = *source
		}
		c.UpdatedAt, _ = parseTime(updatedAt)
		coords = append(coords, c)
	}
	return coords, rows.Err()
}
