package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spachava753/gai"
)

const (
	roleUser       = "user"
	roleAssistant  = "assistant"
	roleToolResult = "tool_result"
)

// AppendMessages stores msgs at the end of a conversation inside one
// transaction: either the whole turn is committed or none of it. It
// returns the generated message IDs.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, msgs []gai.Message) ([]string, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if ok, err := s.conversationExists(ctx, conversationID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var nextSeq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&nextSeq)
	if err != nil {
		return nil, fmt.Errorf("finding next sequence: %w", err)
	}

	ids := make([]string, 0, len(msgs))
	for i, msg := range msgs {
		id, err := newID(ctx, func(ctx context.Context, id string) (bool, error) {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return false, nil
			}
			return err == nil, err
		})
		if err != nil {
			return nil, err
		}

		role, err := roleToString(msg.Role)
		if err != nil {
			return nil, err
		}
		extra, err := marshalExtra(msg.ExtraFields)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, seq, role, tool_result_error, extra_fields, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, conversationID, nextSeq+i, role, msg.ToolResultError, extra, time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting message: %w", err)
		}

		for blockSeq, block := range msg.Blocks {
			blockExtra, err := marshalExtra(block.ExtraFields)
			if err != nil {
				return nil, err
			}
			var content string
			if block.Content != nil {
				content = block.Content.String()
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO blocks (message_id, seq, block_id, block_type, modality, mime_type, content, extra_fields)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, blockSeq, block.ID, block.BlockType, int(block.ModalityType), block.MimeType, content, blockExtra,
			)
			if err != nil {
				return nil, fmt.Errorf("inserting block: %w", err)
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing messages: %w", err)
	}
	return ids, nil
}

// GetDialog reconstructs a conversation's dialog in stored order.
func (s *Store) GetDialog(ctx context.Context, conversationID string) (gai.Dialog, error) {
	if ok, err := s.conversationExists(ctx, conversationID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, tool_result_error, extra_fields
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	type stored struct {
		id  string
		msg gai.Message
	}
	var msgs []stored
	for rows.Next() {
		var (
			id    string
			role  string
			isErr bool
			extra sql.NullString
		)
		if err := rows.Scan(&id, &role, &isErr, &extra); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg := gai.Message{ToolResultError: isErr}
		if msg.Role, err = roleFromString(role); err != nil {
			return nil, err
		}
		if msg.ExtraFields, err = unmarshalExtra(extra); err != nil {
			return nil, err
		}
		msgs = append(msgs, stored{id: id, msg: msg})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dialog := make(gai.Dialog, 0, len(msgs))
	for _, m := range msgs {
		blocks, err := s.loadBlocks(ctx, m.id)
		if err != nil {
			return nil, err
		}
		m.msg.Blocks = blocks
		dialog = append(dialog, m.msg)
	}
	return dialog, nil
}

func (s *Store) loadBlocks(ctx context.Context, messageID string) ([]gai.Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, block_type, modality, mime_type, content, extra_fields
		FROM blocks WHERE message_id = ? ORDER BY seq`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %w", err)
	}
	defer rows.Close()

	var blocks []gai.Block
	for rows.Next() {
		var (
			block    gai.Block
			modality int
			content  string
			extra    sql.NullString
		)
		if err := rows.Scan(&block.ID, &block.BlockType, &modality, &block.MimeType, &content, &extra); err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		block.ModalityType = gai.Modality(modality)
		block.Content = gai.Str(content)
		if block.ExtraFields, err = unmarshalExtra(extra); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func roleToString(role gai.Role) (string, error) {
	switch role {
	case gai.User:
		return roleUser, nil
	case gai.Assistant:
		return roleAssistant, nil
	case gai.ToolResult:
		return roleToolResult, nil
	default:
		return "", fmt.Errorf("unsupported message role %v", role)
	}
}

func roleFromString(role string) (gai.Role, error) {
	switch role {
	case roleUser:
		return gai.User, nil
	case roleAssistant:
		return gai.Assistant, nil
	case roleToolResult:
		return gai.ToolResult, nil
	default:
		return 0, fmt.Errorf("unsupported stored role %q", role)
	}
}

func marshalExtra(extra map[string]any) (sql.NullString, error) {
	if len(extra) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling extra fields: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalExtra(extra sql.NullString) (map[string]any, error) {
	if !extra.Valid || extra.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(extra.String), &out); err != nil {
		return nil, fmt.Errorf("unmarshaling extra fields: %w", err)
	}
	return out, nil
}
