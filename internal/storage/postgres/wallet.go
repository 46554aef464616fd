package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"midnight-indexer/internal/domain"
)

func (s *Store) PutWalletSession(ctx context.Context, session domain.ViewingKeySession) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO wallet_sessions(session_id, network, wrapped_viewing_key, last_scanned_height)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(session_id) DO UPDATE SET network = excluded.network, wrapped_viewing_key = excluded.wrapped_viewing_key, last_scanned_height = excluded.last_scanned_height`,
		session.SessionId, session.Network, session.WrappedViewingKey, session.LastScannedHeight)
	if err != nil {
		return fmt.Errorf("put wallet session %s: %w", session.SessionId, err)
	}
	return nil
}

func (s *Store) GetWalletSession(ctx context.Context, sessionId string) (*domain.ViewingKeySession, error) {
	row := s.pool.QueryRow(ctx, `SELECT session_id, network, wrapped_viewing_key, last_scanned_height FROM wallet_sessions WHERE session_id = $1`, sessionId)
	var session domain.ViewingKeySession
	var lastScanned int64
	err := row.Scan(&session.SessionId, &session.Network, &session.WrappedViewingKey, &lastScanned)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet session %s: %w", sessionId, err)
	}
	session.LastScannedHeight = uint32(lastScanned)
	return &session, nil
}

func (s *Store) AdvanceWalletSessionHeight(ctx context.Context, sessionId string, height uint32) error {
	tag, err := s.pool.Exec(ctx, `UPDATE wallet_sessions SET last_scanned_height = $1 WHERE session_id = $2`, height, sessionId)
	if err != nil {
		return fmt.Errorf("advance wallet session %s: %w", sessionId, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindUnauthorized, "session %s not found", sessionId)
	}
	return nil
}

func (s *Store) DeleteWalletSession(ctx context.Context, sessionId string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM wallet_sessions WHERE session_id = $1`, sessionId)
	if err != nil {
		return fmt.Errorf("delete wallet session %s: %w", sessionId, err)
	}
	return nil
}
