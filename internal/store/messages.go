package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/chatforge/realmsync/internal/domain"
)

// FetchMessageChunk pages through messages addressed to the given
// recipients using a single ascending primary-key cursor: rows with
// id > afterID, ordered by id, at most limit. The cursor invariant is what
// guarantees chunk N's max ID is below chunk N+1's min ID.
func (s *Store) FetchMessageChunk(ctx context.Context, recipientIDs []int64, afterID int64, limit int) ([]domain.Record, error) {
	if len(recipientIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM zerver_message
		WHERE recipient_id = ANY($1) AND id > $2
		ORDER BY id
		LIMIT $3
	`, pq.Array(recipientIDs), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch message chunk after %d: %w", afterID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FetchMessageChunkBySender is the sender-side counterpart used for
// partial exports: messages sent by any exportable user, same cursor
// semantics.
func (s *Store) FetchMessageChunkBySender(ctx context.Context, senderIDs []int64, afterID int64, limit int) ([]domain.Record, error) {
	if len(senderIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM zerver_message
		WHERE sender_id = ANY($1) AND id > $2
		ORDER BY id
		LIMIT $3
	`, pq.Array(senderIDs), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch message chunk by sender after %d: %w", afterID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FetchUserMessages returns the UserMessage rows for a set of message IDs,
// restricted to the given users (nil userIDs means all users). Runs once
// per chunk file during the second, sharded export pass.
func (s *Store) FetchUserMessages(ctx context.Context, messageIDs []int64, userIDs []int64) ([]domain.Record, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	query := "SELECT * FROM zerver_usermessage WHERE message_id = ANY($1)"
	args := []any{pq.Array(messageIDs)}
	if userIDs != nil {
		args = append(args, pq.Array(userIDs))
		query += " AND user_profile_id = ANY($2)"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch usermessages: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ReactingUserIDs returns the users who reacted to the consent message.
// Consent-based exports include only conversations one of these users
// participates in.
func (s *Store) ReactingUserIDs(ctx context.Context, messageID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT user_profile_id FROM zerver_reaction WHERE message_id = $1 ORDER BY user_profile_id",
		messageID)
	if err != nil {
		return nil, fmt.Errorf("fetch consent reactions for message %d: %w", messageID, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan consenting user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RecipientIDsForUsers returns the recipient IDs of every conversation the
// given users are subscribed to (their personal recipients plus stream and
// huddle recipients reachable through subscriptions).
func (s *Store) RecipientIDsForUsers(ctx context.Context, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT recipient_id FROM zerver_subscription WHERE user_profile_id = ANY($1)
		UNION
		SELECT id FROM zerver_recipient WHERE type = $2 AND type_id = ANY($1)
		ORDER BY 1
	`, pq.Array(userIDs), domain.RecipientPersonal)
	if err != nil {
		return nil, fmt.Errorf("fetch recipients for users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
