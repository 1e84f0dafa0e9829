package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/carconnect/internal/authorize"
	"github.com/langchou/carconnect/internal/models"
	"github.com/langchou/carconnect/internal/oem"
	"github.com/langchou/carconnect/internal/repository"
	"github.com/langchou/carconnect/internal/state"
)

// 错误定义
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionNotPending = errors.New("session is not pending")
	ErrSessionExpired    = errors.New("session expired")
	ErrOEMNotEnabled     = errors.New("oem not enabled")
)

// SessionStore 会话存储
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByState(ctx context.Context, state string) (*models.Session, error)
	UpdateResult(ctx context.Context, s *models.Session) error
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Publisher 会话更新推送
type Publisher interface {
	PublishSession(sessionID string, data interface{})
}

// ClientSettings 应用注册信息
type ClientSettings struct {
	ClientID    string
	RedirectURI string
	Scope       []string
	ForcePrompt bool
}

// ConnectResult Start 的返回值
type ConnectResult struct {
	Session *models.Session `json:"session"`
	URL     string          `json:"url"`
}

// ConnectService 车辆连接服务
type ConnectService struct {
	logger    *zap.Logger
	builder   *authorize.Builder
	store     SessionStore
	publisher Publisher
	client    ClientSettings
	oems      []oem.OEM
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewConnectService 创建连接服务，oems 为空时启用全部 OEM
func NewConnectService(
	logger *zap.Logger,
	builder *authorize.Builder,
	store SessionStore,
	publisher Publisher,
	client ClientSettings,
	oems []oem.OEM,
	ttl, retention time.Duration,
) *ConnectService {
	if len(oems) == 0 {
		oems = oem.All()
	}
	return &ConnectService{
		logger:    logger,
		builder:   builder,
		store:     store,
		publisher: publisher,
		client:    client,
		oems:      append([]oem.OEM(nil), oems...),
		ttl:       ttl,
		retention: retention,
		now:       time.Now,
	}
}

// Catalog 返回启用的 OEM 及其展示信息
func (s *ConnectService) Catalog() []models.OEMEntry {
	entries := make([]models.OEMEntry, 0, len(s.oems))
	for _, o := range s.oems {
		entry := models.OEMEntry{
			Name:        o.String(),
			Label:       o.DisplayLabel(),
			DisplayName: o.DisplayLabel(),
		}
		if cfg, ok := oem.ConfigFor(o); ok {
			entry.DisplayName = cfg.DisplayName
			entry.Color = cfg.Color.Hex()
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *ConnectService) enabled(o oem.OEM) bool {
	for _, e := range s.oems {
		if e == o {
			return true
		}
	}
	return false
}

// Start 发起一次连接：解析 OEM，构造授权请求并记录会话
func (s *ConnectService) Start(ctx context.Context, rawOEM string) (*ConnectResult, error) {
	o, err := oem.Resolve(rawOEM)
	if err != nil {
		return nil, err
	}
	if !s.enabled(o) {
		return nil, fmt.Errorf("%w: %s", ErrOEMNotEnabled, o)
	}

	req, err := s.builder.Build(s.client.ClientID, s.client.RedirectURI, s.client.Scope, s.client.ForcePrompt, o)
	if err != nil {
		return nil, err
	}
	req = req.WithState(uuid.NewString())

	authURL, err := s.builder.AuthorizationURL(req)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		State:       req.State(),
		OEM:         o.String(),
		ClientID:    req.ClientID(),
		RedirectURI: req.RedirectURI(),
		Scope:       req.Scope(),
		Approval:    string(req.ApprovalType()),
		Status:      state.StatePending,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("Connect session started",
		zap.String("session_id", session.ID),
		zap.String("oem", session.OEM),
		zap.String("approval", session.Approval),
	)

	return &ConnectResult{Session: session, URL: authURL}, nil
}

// Complete 处理平台回调，返回更新后的会话
// 平台拒绝授权时会话同样被更新，错误包装 authorize.ErrAuthorizationDenied
func (s *ConnectService) Complete(ctx context.Context, callbackURL string) (*models.Session, error) {
	st, err := authorize.StateFromCallback(callbackURL)
	if err != nil {
		return nil, err
	}
	if st == "" {
		return nil, authorize.ErrStateMismatch
	}

	session, err := s.store.GetByState(ctx, st)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	machine, err := state.NewMachine(session.ID, session.Status, func(id, from, to string) {
		s.logger.Info("Session state changed",
			zap.String("session_id", id),
			zap.String("from", from),
			zap.String("to", to),
		)
	})
	if err != nil {
		return nil, err
	}
	if !machine.Can(state.EventAuthorize) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotPending, session.Status)
	}

	if s.ttl > 0 && s.now().Sub(session.CreatedAt) > s.ttl {
		if err := s.finish(ctx, machine, session, state.EventExpire); err != nil {
			return nil, err
		}
		return session, ErrSessionExpired
	}

	cb, cbErr := authorize.ParseCallback(callbackURL, session.State)
	switch {
	case cbErr == nil:
		session.Code = cb.Code
		if err := s.finish(ctx, machine, session, state.EventAuthorize); err != nil {
			return nil, err
		}
		return session, nil

	case errors.Is(cbErr, authorize.ErrAuthorizationDenied):
		session.Error = cb.Error
		if err := s.finish(ctx, machine, session, state.EventDeny); err != nil {
			return nil, err
		}
		return session, cbErr

	default:
		// 回调格式错误，保持 pending，允许重试
		return nil, cbErr
	}
}

// finish 触发事件，持久化并推送
func (s *ConnectService) finish(ctx context.Context, machine *state.Machine, session *models.Session, event string) error {
	if err := machine.Trigger(ctx, event); err != nil {
		return err
	}
	session.Status = machine.Current()

	if err := s.store.UpdateResult(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 并发回调已先一步完成
			return fmt.Errorf("%w: concurrent update", ErrSessionNotPending)
		}
		return fmt.Errorf("update session: %w", err)
	}

	if s.publisher != nil {
		s.publisher.PublishSession(session.ID, session)
	}
	return nil
}

// Get 获取会话
func (s *ConnectService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// Sweep 删除超过保留期的会话
func (s *ConnectService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Swept connect sessions", zap.Int64("deleted", n))
	}
	return n, nil
}

// RunSweeper 定期清理，直到 ctx 取消
func (s *ConnectService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Failed to sweep sessions", zap.Error(err))
			}
		}
	}
}
