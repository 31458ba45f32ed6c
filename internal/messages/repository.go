// Package messages stores chat messages and answers unseen-count queries.
package messages

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tutorlive/backend/internal/models"
)

const selectColumns = `SELECT id::text, room_id, sender_id, sender_name, sender_kind, receiver_id,
	receiver_kind, body, is_live_session, seen, created_at FROM messages`

// Repository handles message persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a message repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts m with seen=false and fills its id and creation time.
func (r *Repository) Create(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO messages (room_id, sender_id, sender_name, sender_kind, receiver_id, receiver_kind, body, is_live_session)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text, created_at`
	m.Seen = false
	return r.pool.QueryRow(ctx, q, m.RoomID, m.SenderID, m.SenderName, string(m.SenderKind),
		m.ReceiverID, string(m.ReceiverKind), m.Body, m.IsLiveSession).
		Scan(&m.ID, &m.CreatedAt)
}

// CountUnseen counts unseen messages to receiverID, from senderID only when set.
func (r *Repository) CountUnseen(ctx context.Context, receiverID, senderID string) (int64, error) {
	var n int64
	var err error
	if senderID == "" {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT seen`, receiverID).Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND sender_id = $2 AND NOT seen`,
			receiverID, senderID).Scan(&n)
	}
	return n, err
}

// MarkSeen flips every unseen message from senderID to receiverID.
func (r *Repository) MarkSeen(ctx context.Context, receiverID, senderID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET seen = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND NOT seen`, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByParticipant returns every message sent or received by userID, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`
		WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Conversation returns the messages exchanged between a and b, oldest first.
func (r *Repository) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC`, a, b)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// PurgeBefore deletes messages created before cutoff.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()
	var list []models.Message
	for rows.Next() {
		var m models.Message
		var senderKind, receiverKind string
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &senderKind, &m.ReceiverID,
			&receiverKind, &m.Body, &m.IsLiveSession, &m.Seen, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SenderKind = models.ParticipantKind(senderKind)
		m.ReceiverKind = models.ParticipantKind(receiverKind)
		list = append(list, m)
	}
	return list, rows.Err()
}
