package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/carconnect/internal/authorize"
	"github.com/langchou/carconnect/internal/models"
	"github.com/langchou/carconnect/internal/oem"
	"github.com/langchou/carconnect/internal/repository"
	"github.com/langchou/carconnect/internal/state"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeStore) Create(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetByState(_ context.Context, st string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.State == st {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) UpdateResult(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[s.ID]
	if !ok || stored.Status != state.StatePending {
		return repository.ErrNotFound
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.CreatedAt.Before(before) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	updates []string
}

func (p *fakePublisher) PublishSession(sessionID string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, sessionID+":"+data.(*models.Session).Status)
}

type fixture struct {
	svc   *ConnectService
	store *fakeStore
	pub   *fakePublisher
	clock time.Time
}

func newFixture(t *testing.T, oems ...oem.OEM) *fixture {
	t.Helper()
	b, err := authorize.NewBuilder("")
	require.NoError(t, err)

	f := &fixture{
		store: newFakeStore(),
		pub:   &fakePublisher{},
		clock: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.svc = NewConnectService(zap.NewNop(), b, f.store, f.pub, ClientSettings{
		ClientID:    "abc",
		RedirectURI: "sc://page",
		Scope:       []string{"read_vehicle_info", "read_odometer"},
		ForcePrompt: true,
	}, oems, 10*time.Minute, 24*time.Hour)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func callbackFor(res *ConnectResult, query string) string {
	return "sc://page?state=" + url.QueryEscape(res.Session.State) + "&" + query
}

func TestStart(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Start(context.Background(), "TESLA")
	require.NoError(t, err)

	assert.Equal(t, "tesla", res.Session.OEM)
	assert.Equal(t, state.StatePending, res.Session.Status)
	assert.Equal(t, "force", res.Session.Approval)
	assert.NotEmpty(t, res.Session.State)

	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, "tesla.smartcar.com", u.Host)
	assert.Equal(t, res.Session.State, u.Query().Get("state"))
	assert.Equal(t, "abc", u.Query().Get("client_id"))

	stored, err := f.svc.Get(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Session.State, stored.State)
}

func TestStart_Rejects(t *testing.T) {
	f := newFixture(t, mustResolve(t, "bmw"))

	_, err := f.svc.Start(context.Background(), "not-a-real-oem")
	assert.ErrorIs(t, err, oem.ErrUnknownOEM)

	_, err = f.svc.Start(context.Background(), "tesla")
	assert.ErrorIs(t, err, ErrOEMNotEnabled)

	assert.Empty(t, f.store.sessions)
}

func TestStart_InvalidClient(t *testing.T) {
	f := newFixture(t)
	f.svc.client.ClientID = ""

	_, err := f.svc.Start(context.Background(), "tesla")
	assert.ErrorIs(t, err, authorize.ErrInvalidRequest)
}

func TestComplete_Authorized(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Start(context.Background(), "audi")
	require.NoError(t, err)

	session, err := f.svc.Complete(context.Background(), callbackFor(res, "code=c-1"))
	require.NoError(t, err)
	assert.Equal(t, state.StateAuthorized, session.Status)
	assert.Equal(t, "c-1", session.Code)
	assert.Equal(t, []string{res.Session.ID + ":authorized"}, f.pub.updates)

	_, err = f.svc.Complete(context.Background(), callbackFor(res, "code=c-2"))
	assert.ErrorIs(t, err, ErrSessionNotPending)
}

func TestComplete_Denied(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Start(context.Background(), "ford")
	require.NoError(t, err)

	session, err := f.svc.Complete(context.Background(), callbackFor(res, "error=access_denied"))
	assert.ErrorIs(t, err, authorize.ErrAuthorizationDenied)
	require.NotNil(t, session)
	assert.Equal(t, state.StateDenied, session.Status)
	assert.Equal(t, "access_denied", session.Error)
}

func TestComplete_Expired(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Start(context.Background(), "kia")
	require.NoError(t, err)

	f.clock = f.clock.Add(11 * time.Minute)
	session, err := f.svc.Complete(context.Background(), callbackFor(res, "code=late"))
	assert.ErrorIs(t, err, ErrSessionExpired)
	require.NotNil(t, session)
	assert.Equal(t, state.StateExpired, session.Status)
	assert.Empty(t, session.Code)
}

func TestComplete_BadCallbacks(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Start(context.Background(), "kia")
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), "sc://page?code=c-1")
	assert.ErrorIs(t, err, authorize.ErrStateMismatch)

	_, err = f.svc.Complete(context.Background(), "sc://page?code=c-1&state=unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Complete(context.Background(), callbackFor(res, ""))
	assert.ErrorIs(t, err, authorize.ErrMissingCode)

	stored, err := f.svc.Get(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatePending, stored.Status)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t, mustResolve(t, "landrover"), mustResolve(t, "tesla"))

	entries := f.svc.Catalog()
	require.Len(t, entries, 2)
	assert.Equal(t, models.OEMEntry{Name: "landrover", Label: "LANDROVER", DisplayName: "Land Rover", Color: "#005A2B"}, entries[0])
	assert.Equal(t, "TESLA", entries[1].Label)

	assert.Len(t, newFixture(t).svc.Catalog(), 25)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Start(context.Background(), "ram")
	require.NoError(t, err)

	n, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock = f.clock.Add(25 * time.Hour)
	n, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGet_NotFound(t *testing.T) {
	_, err := newFixture(t).svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func mustResolve(t *testing.T, raw string) oem.OEM {
	t.Helper()
	o, err := oem.Resolve(raw)
	require.NoError(t, err)
	return o
}
