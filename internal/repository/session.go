package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/carconnect/internal/models"
)

// SessionRepository 连接会话数据仓库
type SessionRepository struct {
	db *DB
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id::text, state, oem, client_id, redirect_uri, scope, approval, status, code, error, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(
		&s.ID,
		&s.State,
		&s.OEM,
		&s.ClientID,
		&s.RedirectURI,
		&s.Scope,
		&s.Approval,
		&s.Status,
		&s.Code,
		&s.Error,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create 创建会话
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO connect_sessions (id, state, oem, client_id, redirect_uri, scope, approval, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if s.Scope == nil {
		s.Scope = []string{}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = s.CreatedAt

	_, err := r.db.Pool.Exec(ctx, query,
		s.ID,
		s.State,
		s.OEM,
		s.ClientID,
		s.RedirectURI,
		s.Scope,
		s.Approval,
		s.Status,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID 通过 ID 获取会话
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM connect_sessions WHERE id::text = $1`
	s, err := scanSession(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get session by id: %w", err)
	}
	return s, nil
}

// GetByState 通过 OAuth state 获取会话
func (r *SessionRepository) GetByState(ctx context.Context, state string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM connect_sessions WHERE state = $1`
	s, err := scanSession(r.db.Pool.QueryRow(ctx, query, state))
	if err != nil {
		return nil, fmt.Errorf("get session by state: %w", err)
	}
	return s, nil
}

// UpdateResult 更新会话结果，仅当会话仍为 pending 时生效
func (r *SessionRepository) UpdateResult(ctx context.Context, s *models.Session) error {
	query := `
		UPDATE connect_sessions SET status = $2, code = $3, error = $4, updated_at = $5
		WHERE id::text = $1 AND status = 'pending'
	`
	now := time.Now()
	tag, err := r.db.Pool.Exec(ctx, query, s.ID, s.Status, s.Code, s.Error, now)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %s: %w", s.ID, ErrNotFound)
	}

	s.UpdatedAt = now
	return nil
}

// DeleteBefore 删除早于指定时间创建的会话
func (r *SessionRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM connect_sessions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
