package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"midnight-indexer/internal/domain"
)

func (s *Store) PutWalletSession(ctx context.Context, session domain.ViewingKeySession) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO wallet_sessions(session_id, network, wrapped_viewing_key, last_scanned_height)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET network = excluded.network, wrapped_viewing_key = excluded.wrapped_viewing_key, last_scanned_height = excluded.last_scanned_height`,
		session.SessionId, session.Network, session.WrappedViewingKey, session.LastScannedHeight)
	if err != nil {
		return fmt.Errorf("put wallet session %s: %w", session.SessionId, err)
	}
	return nil
}

func (s *Store) GetWalletSession(ctx context.Context, sessionId string) (*domain.ViewingKeySession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT session_id, network, wrapped_viewing_key, last_scanned_height FROM wallet_sessions WHERE session_id = ?`, sessionId)
	var session domain.ViewingKeySession
	err := row.Scan(&session.SessionId, &session.Network, &session.WrappedViewingKey, &session.LastScannedHeight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet session %s: %w", sessionId, err)
	}
	return &session, nil
}

func (s *Store) AdvanceWalletSessionHeight(ctx context.Context, sessionId string, height uint32) error {
	res, err := s.db.ExecContext(ctx, `UPDATE wallet_sessions SET last_scanned_height = ? WHERE session_id = ?`, height, sessionId)
	if err != nil {
		return fmt.Errorf("advance wallet session %s: %w", sessionId, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.KindUnauthorized, "session %s not found", sessionId)
	}
	return nil
}

func (s *Store) DeleteWalletSession(ctx context.Context, sessionId string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wallet_sessions WHERE session_id = ?`, sessionId)
	if err != nil {
		return fmt.Errorf("delete wallet session %s: %w", sessionId, err)
	}
	return nil
}
