package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/kakao"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/config"
)

// ProviderKakao is the registry name of the Kakao provider.
const ProviderKakao = "kakao"

const (
	defaultKakaoProfileURL = "https://kapi.kakao.com/v2/user/me"
	defaultHTTPTimeout     = 5 * time.Second
	maxProfileBytes        = 1 << 20
)

// ErrProviderFailure wraps every provider-side failure: transport errors,
// rejected codes, non-2xx replies and undecodable payloads.
var ErrProviderFailure = errors.New("oauth: identity provider failure")

// KakaoProvider exchanges Kakao authorization codes and reads the user profile.
type KakaoProvider struct {
	conf       oauth2.Config
	profileURL string
	client     *http.Client
}

// NewKakaoProvider builds the provider from settings, falling back to the public Kakao endpoints.
func NewKakaoProvider(cfg config.OAuthProviderSettings, timeout time.Duration) *KakaoProvider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	endpoint := kakao.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = defaultKakaoProfileURL
	}

	return &KakaoProvider{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		profileURL: profileURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier used in routes and user rows.
func (p *KakaoProvider) Name() string { return ProviderKakao }

// AuthorizationURL renders the authorize URL for the redirect URI. It performs no I/O.
func (p *KakaoProvider) AuthorizationURL(redirectURI string) string {
	conf := p.conf
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL("")
}

// ExchangeCode trades an authorization code for a provider access token.
func (p *KakaoProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (domain.ProviderToken, error) {
	conf := p.conf
	conf.RedirectURL = redirectURI

	token, err := conf.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return domain.ProviderToken{}, fmt.Errorf("%w: exchange code: %v", ErrProviderFailure, err)
	}

	return domain.ProviderToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
	}, nil
}

type kakaoProfile struct {
	ID         int64 `json:"id"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
	Account struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

// FetchProfile reads the Kakao user profile for the provider token.
func (p *KakaoProvider) FetchProfile(ctx context.Context, token domain.ProviderToken) (domain.ProviderProfile, error) {
	client := p.conf.Client(p.clientContext(ctx), &oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: build profile request: %v", ErrProviderFailure, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: fetch profile: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return domain.ProviderProfile{}, fmt.Errorf("%w: profile status %d", ErrProviderFailure, resp.StatusCode)
	}

	var payload kakaoProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&payload); err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: decode profile: %v", ErrProviderFailure, err)
	}
	if payload.ID == 0 {
		return domain.ProviderProfile{}, fmt.Errorf("%w: profile without id", ErrProviderFailure)
	}

	return domain.ProviderProfile{
		ID:        strconv.FormatInt(payload.ID, 10),
		Nickname:  firstNonEmpty(payload.Account.Profile.Nickname, payload.Properties.Nickname),
		Email:     strings.TrimSpace(payload.Account.Email),
		AvatarURL: firstNonEmpty(payload.Account.Profile.ProfileImageURL, payload.Properties.ProfileImage),
	}, nil
}

func (p *KakaoProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ port.IdentityProvider = (*KakaoProvider)(nil)
