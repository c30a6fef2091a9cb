package persist

import (
	"context"
	"fmt"
	"time"

	"railmap/internal/domain"
)

// SavePosition upserts one position row.
func (db *DB) SavePosition(ctx context.Context, p domain.Position) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO train_positions
			(rid, uid, ts, from_tpl, to_tpl, lat, lon, ratio, state, platform, delayed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (rid) DO UPDATE SET
			uid = excluded.uid,
			ts = excluded.ts,
			from_tpl = excluded.from_tpl,
			to_tpl = excluded.to_tpl,
			lat = excluded.lat,
			lon = excluded.lon,
			ratio = excluded.ratio,
			state = excluded.state,
			platform = excluded.platform,
			delayed = excluded.delayed,
			updated_at = excluded.updated_at`,
		p.RunID, p.VehicleID, formatTime(p.Timestamp),
		p.FromCode, p.ToCode, p.Lat, p.Lon, p.Ratio, string(p.State),
		p.Platform, boolToInt(p.Delayed), formatTime(p.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.RunID, err)
	}
	return nil
}

// DeletePosition removes one position row.
func (db *DB) DeletePosition(ctx context.Context, runID string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, "DELETE FROM train_positions WHERE rid = ?", runID); err != nil {
		return fmt.Errorf("delete position %s: %w", runID, err)
	}
	return nil
}

// LoadPositions returns rows younger than maxAge, newest first. Used to
// rehydrate the in-memory store after a restart.
func (db *DB) LoadPositions(ctx context.Context, maxAge time.Duration) ([]domain.Position, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))

	rows, err := db.conn.QueryContext(ctx, `
		SELECT rid, uid, ts, from_tpl, to_tpl, lat, lon, ratio, state, platform, delayed, updated_at
		FROM train_positions
		WHERE updated_at > ?
		ORDER BY updated_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var ts, state, updatedAt string
		var platform, uid *string
		var delayed int
		if err := rows.Scan(&p.RunID, &uid, &ts, &p.FromCode, &p.ToCode,
			&p.Lat, &p.Lon, &p.Ratio, &state, &platform, &delayed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if uid != nil {
			p.VehicleID = *uid
		}
		if platform != nil {
			p.Platform = *platform
		}
		p.State = domain.MotionState(state)
		p.Delayed = delayed != 0
		if p.Timestamp, err = parseTime(ts); err != nil {
			continue
		}
		if p.LastUpdated, err = parseTime(updatedAt); err != nil {
			continue
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CleanupPositions deletes rows older than maxAge from the durable tier.
func (db *DB) CleanupPositions(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.ExecContext(ctx, "DELETE FROM train_positions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup positions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
