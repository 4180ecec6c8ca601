package store

import (
	"fmt"

	"github.com/halcyonvr/resonance/internal/profile"
)

// SaveProfileSnapshot persists one interest profile, replacing any stored
// entries for the user.
func (db *DB) SaveProfileSnapshot(snap profile.Snapshot) error {
	if snap.UserID == "" {
		return fmt.Errorf("save profile: empty user id")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO interest_profiles (user_id, half_life_days, last_decay_check) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET half_life_days = ?, last_decay_check = ?
	`, snap.UserID, snap.HalfLifeDays, snap.LastDecayCheck, snap.HalfLifeDays, snap.LastDecayCheck)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save profile %s: %w", snap.UserID, err)
	}

	if _, err := tx.Exec("DELETE FROM interest_entries WHERE user_id = ?", snap.UserID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear entries %s: %w", snap.UserID, err)
	}

	for _, e := range snap.Entries {
		_, err := tx.Exec(`
			INSERT INTO interest_entries (user_id, topic, value, last_updated, locked)
			VALUES (?, ?, ?, ?, ?)
		`, snap.UserID, e.Topic, e.Value, e.LastUpdated, boolToInt(e.Locked))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save entry %s/%s: %w", snap.UserID, e.Topic, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save profile %s: %w", snap.UserID, err)
	}
	return nil
}

// LoadProfileSnapshots returns every stored interest profile.
func (db *DB) LoadProfileSnapshots() ([]profile.Snapshot, error) {
	rows, err := db.Query(`
		SELECT user_id, half_life_days, last_decay_check FROM interest_profiles
	`)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	var snaps []profile.Snapshot
	for rows.Next() {
		var snap profile.Snapshot
		if err := rows.Scan(&snap.UserID, &snap.HalfLifeDays, &snap.LastDecayCheck); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snaps {
		entries, err := db.loadProfileEntries(snaps[i].UserID)
		if err != nil {
			return nil, err
		}
		snaps[i].Entries = entries
	}
	return snaps, nil
}

func (db *DB) loadProfileEntries(userID string) ([]profile.EntrySnapshot, error) {
	rows, err := db.Query(`
		SELECT topic, value, last_updated, locked
		FROM interest_entries WHERE user_id = ?
		ORDER BY topic
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load entries %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []profile.EntrySnapshot
	for rows.Next() {
		var e profile.EntrySnapshot
		var locked int
		if err := rows.Scan(&e.Topic, &e.Value, &e.LastUpdated, &locked); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Locked = locked != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteProfileSnapshot removes a stored profile and its entries.
func (db *DB) DeleteProfileSnapshot(userID string) error {
	if _, err := db.Exec("DELETE FROM interest_profiles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete profile %s: %w", userID, err)
	}
	return nil
}
