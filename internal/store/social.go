package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/halcyonvr/resonance/internal/palette"
)

// Friend pairs are stored once in canonical (lexicographic) order.
func friendPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// AddFriend records a symmetric friendship.
func (db *DB) AddFriend(a, b string) error {
	if a == b || a == "" || b == "" {
		return fmt.Errorf("add friend: invalid pair %q, %q", a, b)
	}
	ua, ub := friendPair(a, b)
	_, err := db.Exec(`
		INSERT OR IGNORE INTO friends (user_a, user_b, created_at) VALUES (?, ?, ?)
	`, ua, ub, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

// RemoveFriend deletes a friendship.
func (db *DB) RemoveFriend(a, b string) error {
	ua, ub := friendPair(a, b)
	if _, err := db.Exec("DELETE FROM friends WHERE user_a = ? AND user_b = ?", ua, ub); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

// IsFriend reports whether two users are friends. Implements
// feed.FriendGraph; lookup errors degrade to false.
func (db *DB) IsFriend(viewerID, authorID string) bool {
	ua, ub := friendPair(viewerID, authorID)
	var one int
	err := db.QueryRow(
		"SELECT 1 FROM friends WHERE user_a = ? AND user_b = ?", ua, ub,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		log.Printf("is friend %s/%s: %v", viewerID, authorID, err)
		return false
	}
	return true
}

// SetAllowSensitive stores a viewer's sensitive-content opt-in.
func (db *DB) SetAllowSensitive(userID string, allow bool) error {
	_, err := db.Exec(`
		INSERT INTO viewer_prefs (user_id, allow_sensitive, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET allow_sensitive = ?, updated_at = ?
	`, userID, boolToInt(allow), time.Now().UnixMilli(), boolToInt(allow), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set allow sensitive: %w", err)
	}
	return nil
}

// AllowsSensitive reports a viewer's sensitive-content opt-in. Implements
// feed.ViewerPrefs; missing rows and errors degrade to false.
func (db *DB) AllowsSensitive(userID string) bool {
	var allow int
	err := db.QueryRow(
		"SELECT allow_sensitive FROM viewer_prefs WHERE user_id = ?", userID,
	).Scan(&allow)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		log.Printf("allows sensitive %s: %v", userID, err)
		return false
	}
	return allow != 0
}

// PresenceColor returns a user's stored display color. Implements
// resonance.PresenceRegistry.
func (db *DB) PresenceColor(userID string) (palette.Color, bool) {
	var hex string
	err := db.QueryRow("SELECT color FROM presence WHERE user_id = ?", userID).Scan(&hex)
	if err == sql.ErrNoRows {
		return palette.Color{}, false
	}
	if err != nil {
		log.Printf("presence color %s: %v", userID, err)
		return palette.Color{}, false
	}
	c, err := palette.ParseHex(hex)
	if err != nil {
		log.Printf("presence color %s: %v", userID, err)
		return palette.Color{}, false
	}
	return c, true
}

// SetPresenceColor stores a user's display color. Implements
// resonance.PresenceRegistry; write errors are logged, the engine's
// in-memory state stays correct regardless.
func (db *DB) SetPresenceColor(userID string, c palette.Color) {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO presence (user_id, color, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET color = ?, updated_at = ?
	`, userID, c.Hex(), now, c.Hex(), now)
	if err != nil {
		log.Printf("set presence color %s: %v", userID, err)
	}
}
