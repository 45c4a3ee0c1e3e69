package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const sessionColumns = "user_id, video_stored, video_original, subtitle_stored, output_name, preferences_json, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		userID         string
		videoStored    sql.NullString
		videoOriginal  sql.NullString
		subtitleStored sql.NullString
		outputName     sql.NullString
		prefsJSON      sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&userID,
		&videoStored,
		&videoOriginal,
		&subtitleStored,
		&outputName,
		&prefsJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		UserID:     userID,
		OutputName: outputName.String,
	}
	if videoStored.Valid && videoStored.String != "" {
		sess.Video = &Asset{StoredName: videoStored.String, OriginalName: videoOriginal.String}
	}
	if subtitleStored.Valid && subtitleStored.String != "" {
		sess.Subtitle = &Asset{StoredName: subtitleStored.String}
	}
	if prefsJSON.Valid && prefsJSON.String != "" {
		// Unreadable preferences fall back to defaults rather than blocking the user.
		_ = json.Unmarshal([]byte(prefsJSON.String), &sess.Preferences)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// timestampLayout is fixed width so stored values sort in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func timestamp(now time.Time) string {
	return now.UTC().Format(timestampLayout)
}
