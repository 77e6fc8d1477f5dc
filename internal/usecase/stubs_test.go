package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/infra/security"
	"github.com/arklim/social-login-auth/internal/repository"
)

const (
	testSecret      = "0123456789abcdef0123456789abcdef"
	testRedirectURI = "http://localhost:3000/oauth/kakao/callback"
	testProvider    = "kakao"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryRevocationStore struct {
	mu      sync.Mutex
	clock   *testClock
	entries map[string]time.Time
	ttls    map[string]time.Duration
	err     error
}

func newMemoryRevocationStore(clock *testClock) *memoryRevocationStore {
	return &memoryRevocationStore{
		clock:   clock,
		entries: make(map[string]time.Time),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *memoryRevocationStore) Revoke(_ context.Context, identity string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	s.entries[identity] = s.clock.Now().Add(ttl)
	s.ttls[identity] = ttl
	return nil
}

func (s *memoryRevocationStore) IsRevoked(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	expiresAt, ok := s.entries[identity]
	if !ok {
		return false, nil
	}
	return s.clock.Now().Before(expiresAt), nil
}

type memoryRefreshStore struct {
	mu       sync.Mutex
	records  map[string]string
	ttls     map[string]time.Duration
	saveErr  error
	saves    int
	rotateFn func(userID string) (domain.RotateOutcome, bool)
}

func newMemoryRefreshStore() *memoryRefreshStore {
	return &memoryRefreshStore{
		records: make(map[string]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *memoryRefreshStore) Save(_ context.Context, userID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.records[userID] = token
	s.ttls[userID] = ttl
	return nil
}

func (s *memoryRefreshStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.records[userID]
	return token, ok, nil
}

func (s *memoryRefreshStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	delete(s.ttls, userID)
	return nil
}

func (s *memoryRefreshStore) Rotate(_ context.Context, userID, expected, next string, ttl time.Duration) (domain.RotateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rotateFn != nil {
		if outcome, override := s.rotateFn(userID); override {
			return outcome, nil
		}
	}
	current, ok := s.records[userID]
	if !ok {
		return domain.RotateNotFound, nil
	}
	if current != expected {
		return domain.RotateMismatch, nil
	}
	s.records[userID] = next
	s.ttls[userID] = ttl
	return domain.RotateSwapped, nil
}

func (s *memoryRefreshStore) current(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.records[userID]
	return token, ok
}

type memoryUserRepository struct {
	mu         sync.Mutex
	byIdentity map[string]*domain.User
	byID       map[string]*domain.User
	touched    []string
	err        error
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{
		byIdentity: make(map[string]*domain.User),
		byID:       make(map[string]*domain.User),
	}
}

func (r *memoryUserRepository) FindOrCreate(_ context.Context, user domain.User) (*domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, false, r.err
	}
	key := user.Provider + ":" + user.ProviderUserID
	if existing, ok := r.byIdentity[key]; ok {
		copy := *existing
		return &copy, false, nil
	}
	stored := user
	r.byIdentity[key] = &stored
	r.byID[stored.ID] = &stored
	copy := stored
	return &copy, true, nil
}

func (r *memoryUserRepository) TouchLastLogin(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	return nil
}

type fakeProvider struct {
	mu           sync.Mutex
	name         string
	profiles     map[string]domain.ProviderProfile
	exchangeErr  error
	profileErr   error
	exchangeCall int
	profileCall  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		name: testProvider,
		profiles: map[string]domain.ProviderProfile{
			"code-alice": {ID: "1001", Nickname: "alice", Email: "alice@example.com", AvatarURL: "https://img.example/alice.png"},
			"code-bob":   {ID: "1002", Nickname: "bob"},
		},
	}
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthorizationURL(redirectURI string) string {
	return "https://auth.example/authorize?client_id=test&redirect_uri=" + url.QueryEscape(redirectURI) + "&response_type=code"
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, _ string) (domain.ProviderToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCall++
	if p.exchangeErr != nil {
		return domain.ProviderToken{}, p.exchangeErr
	}
	if _, ok := p.profiles[code]; !ok {
		return domain.ProviderToken{}, errors.New("invalid_grant")
	}
	return domain.ProviderToken{AccessToken: "provider-" + code, TokenType: "bearer"}, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, token domain.ProviderToken) (domain.ProviderProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileCall++
	if p.profileErr != nil {
		return domain.ProviderProfile{}, p.profileErr
	}
	code := token.AccessToken[len("provider-"):]
	return p.profiles[code], nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCall + p.profileCall
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	loggedIn   []domain.UserLoggedInEvent
	loggedOut  []domain.UserLoggedOutEvent
	refreshed  []domain.TokenRefreshedEvent
	err        error
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return p.err
}

func (p *recordingPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = append(p.loggedIn, event)
	return p.err
}

func (p *recordingPublisher) PublishUserLoggedOut(_ context.Context, event domain.UserLoggedOutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedOut = append(p.loggedOut, event)
	return p.err
}

func (p *recordingPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed = append(p.refreshed, event)
	return p.err
}

type memoryPlatformRepository struct {
	mu        sync.Mutex
	nextID    int64
	platforms map[int64]domain.SnsPlatform
}

func newMemoryPlatformRepository() *memoryPlatformRepository {
	return &memoryPlatformRepository{platforms: make(map[int64]domain.SnsPlatform)}
}

func (r *memoryPlatformRepository) conflicts(p domain.SnsPlatform) bool {
	for id, existing := range r.platforms {
		if id == p.ID {
			continue
		}
		if existing.UserID == p.UserID && existing.PlatformType == p.PlatformType && existing.AccountURL == p.AccountURL {
			return true
		}
	}
	return false
}

func (r *memoryPlatformRepository) Create(_ context.Context, p domain.SnsPlatform) (*domain.SnsPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(p) {
		return nil, repository.ErrConflict
	}
	r.nextID++
	p.ID = r.nextID
	r.platforms[p.ID] = p
	return &p, nil
}

func (r *memoryPlatformRepository) Exists(_ context.Context, userID, platformType, accountURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts(domain.SnsPlatform{ID: -1, UserID: userID, PlatformType: platformType, AccountURL: accountURL}), nil
}

func (r *memoryPlatformRepository) ListByUser(_ context.Context, userID string) ([]domain.SnsPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SnsPlatform, 0)
	for _, p := range r.platforms {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryPlatformRepository) Get(_ context.Context, userID string, platformID int64) (*domain.SnsPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.platforms[platformID]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *memoryPlatformRepository) Update(_ context.Context, p domain.SnsPlatform) (*domain.SnsPlatform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.platforms[p.ID]
	if !ok || existing.UserID != p.UserID {
		return nil, repository.ErrNotFound
	}
	if r.conflicts(p) {
		return nil, repository.ErrConflict
	}
	existing.AccountName = p.AccountName
	existing.AccountURL = p.AccountURL
	existing.UpdatedAt = p.UpdatedAt
	r.platforms[p.ID] = existing
	return &existing, nil
}

func (r *memoryPlatformRepository) Delete(_ context.Context, userID string, platformID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.platforms[platformID]
	if !ok || p.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.platforms, platformID)
	return nil
}

type sessionFixture struct {
	clock       *testClock
	signer      *security.Signer
	provider    *fakeProvider
	users       *memoryUserRepository
	revocations *memoryRevocationStore
	refreshes   *memoryRefreshStore
	events      *recordingPublisher
	service     *SessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	clock := newTestClock()
	signer, err := security.NewSigner(security.SignerConfig{
		Secret:     testSecret,
		Issuer:     "social-login-auth",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	signer.WithClock(clock.Now)

	logger := zaptest.NewLogger(t)
	provider := newFakeProvider()
	users := newMemoryUserRepository()
	revocations := newMemoryRevocationStore(clock)
	refreshes := newMemoryRefreshStore()
	events := &recordingPublisher{}

	identities := NewIdentityResolver(users, logger, provider).WithClock(clock.Now)
	service := NewSessionService(signer, identities, revocations, refreshes, events, []string{testRedirectURI}, logger).
		WithClock(clock.Now)

	return &sessionFixture{
		clock:       clock,
		signer:      signer,
		provider:    provider,
		users:       users,
		revocations: revocations,
		refreshes:   refreshes,
		events:      events,
		service:     service,
	}
}

func (f *sessionFixture) login(t *testing.T, code string) *LoginResult {
	t.Helper()
	result, err := f.service.Login(context.Background(), LoginInput{
		Provider:    testProvider,
		Code:        code,
		RedirectURI: testRedirectURI,
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	return result
}

func bearer(token string) string {
	return security.BearerPrefix + token
}
