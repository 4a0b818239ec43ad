package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-party/internal/db"
	"go-party/internal/game"
)

const defaultTranscriptLimit = 50

// Repository archives transcripts and game results. It satisfies
// game.Archive.
type Repository struct {
	db *db.Database
}

func NewRepository(database *db.Database) *Repository {
	return &Repository{db: database}
}

func (r *Repository) SaveLines(ctx context.Context, lines []game.Line) error {
	if len(lines) == 0 {
		return nil
	}
	tx, err := r.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := r.db.Rebind(`INSERT INTO transcript_lines
		(id, room_code, recipient_id, speaker_id, speaker_name, content, from_recipient, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, l := range lines {
		id := l.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, query,
			id, l.RoomCode, l.RecipientID, l.SpeakerID, l.SpeakerName, l.Text, l.FromRecipient, l.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) SaveResult(ctx context.Context, res game.Result) error {
	query := r.db.Rebind(`INSERT INTO game_results
		(id, room_code, winner_id, winner_name, recipient_id, recipient_name, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Conn.ExecContext(ctx, query,
		uuid.NewString(), res.RoomCode, res.WinnerID, res.WinnerName, res.RecipientID, res.RecipientName, res.FinishedAt.UnixMilli())
	return err
}

// GetRecentMessages returns up to limit of the room's latest lines, oldest
// first.
func (r *Repository) GetRecentMessages(ctx context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}
	query := r.db.Rebind(`
		SELECT id, room_code, recipient_id, speaker_id, speaker_name, content, from_recipient, created_at
		FROM transcript_lines
		WHERE room_code = ?
		ORDER BY created_at DESC, from_recipient DESC
		LIMIT ?
	`)
	rows, err := r.db.Conn.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg Message
			at  int64
		)
		if err := rows.Scan(&msg.ID, &msg.RoomCode, &msg.RecipientID, &msg.SpeakerID, &msg.SpeakerName, &msg.Content, &msg.FromRecipient, &at); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.UnixMilli(at).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// HasParticipant reports whether memberID ever spoke in room or won it.
func (r *Repository) HasParticipant(ctx context.Context, room, memberID string) (bool, error) {
	query := r.db.Rebind(`
		SELECT EXISTS (SELECT 1 FROM transcript_lines WHERE room_code = ? AND speaker_id = ?)
			OR EXISTS (SELECT 1 FROM game_results WHERE room_code = ? AND winner_id = ?)
	`)
	var ok bool
	if err := r.db.Conn.QueryRowContext(ctx, query, room, memberID, room, memberID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetResult returns the room's latest result, or nil if it never finished.
func (r *Repository) GetResult(ctx context.Context, room string) (*Result, error) {
	query := r.db.Rebind(`
		SELECT room_code, winner_id, winner_name, recipient_id, recipient_name, finished_at
		FROM game_results
		WHERE room_code = ?
		ORDER BY finished_at DESC
		LIMIT 1
	`)
	var (
		res Result
		at  int64
	)
	err := r.db.Conn.QueryRowContext(ctx, query, room).Scan(&res.RoomCode, &res.WinnerID, &res.WinnerName, &res.RecipientID, &res.RecipientName, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res.FinishedAt = time.UnixMilli(at).UTC()
	return &res, nil
}
