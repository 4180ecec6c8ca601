package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/halcyonvr/resonance/internal/resonance"
	"github.com/halcyonvr/resonance/internal/taxonomy"
)

// SaveResonanceSnapshot persists one resonance entry. Weight maps are
// stored as JSON text; pulses are transient and never stored.
func (db *DB) SaveResonanceSnapshot(snap resonance.Snapshot) error {
	if snap.UserID == "" {
		return fmt.Errorf("save resonance: empty user id")
	}

	recent, err := json.Marshal(snap.Recent)
	if err != nil {
		return fmt.Errorf("encode recent weights: %w", err)
	}
	baseline, err := json.Marshal(snap.Baseline)
	if err != nil {
		return fmt.Errorf("encode baseline weights: %w", err)
	}

	var lockedColor any
	if snap.LockedColor != "" {
		lockedColor = snap.LockedColor
	}

	_, err = db.Exec(`
		INSERT INTO resonance_entries (user_id, recent, baseline, recent_ts, baseline_ts, current_color, mode, locked_color, dominant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET recent = ?, baseline = ?, recent_ts = ?, baseline_ts = ?,
			current_color = ?, mode = ?, locked_color = ?, dominant = ?
	`, snap.UserID, string(recent), string(baseline), snap.RecentTimestamp, snap.BaselineTimestamp,
		snap.CurrentColor, string(snap.Mode), lockedColor, snap.DominantCategory,
		string(recent), string(baseline), snap.RecentTimestamp, snap.BaselineTimestamp,
		snap.CurrentColor, string(snap.Mode), lockedColor, snap.DominantCategory)
	if err != nil {
		return fmt.Errorf("save resonance %s: %w", snap.UserID, err)
	}
	return nil
}

// LoadResonanceSnapshots returns every stored resonance entry.
func (db *DB) LoadResonanceSnapshots() ([]resonance.Snapshot, error) {
	rows, err := db.Query(`
		SELECT user_id, recent, baseline, recent_ts, baseline_ts, current_color, mode, locked_color, dominant
		FROM resonance_entries
	`)
	if err != nil {
		return nil, fmt.Errorf("load resonance: %w", err)
	}
	defer rows.Close()

	var snaps []resonance.Snapshot
	for rows.Next() {
		var snap resonance.Snapshot
		var recent, baseline, mode string
		var lockedColor, dominant sql.NullString

		if err := rows.Scan(&snap.UserID, &recent, &baseline, &snap.RecentTimestamp,
			&snap.BaselineTimestamp, &snap.CurrentColor, &mode, &lockedColor, &dominant); err != nil {
			return nil, fmt.Errorf("scan resonance: %w", err)
		}

		snap.Recent = taxonomy.Weights{}
		if err := json.Unmarshal([]byte(recent), &snap.Recent); err != nil {
			return nil, fmt.Errorf("decode recent weights %s: %w", snap.UserID, err)
		}
		snap.Baseline = taxonomy.Weights{}
		if err := json.Unmarshal([]byte(baseline), &snap.Baseline); err != nil {
			return nil, fmt.Errorf("decode baseline weights %s: %w", snap.UserID, err)
		}
		snap.Mode = resonance.Mode(mode)
		snap.LockedColor = lockedColor.String
		snap.DominantCategory = dominant.String

		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// DeleteResonanceSnapshot removes a stored resonance entry.
func (db *DB) DeleteResonanceSnapshot(userID string) error {
	if _, err := db.Exec("DELETE FROM resonance_entries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete resonance %s: %w", userID, err)
	}
	return nil
}
