package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/infra/config"
)

type kakaoStub struct {
	server       *httptest.Server
	tokenStatus  int
	profileBody  string
	profileCode  int
	tokenCalls   int
	profileCalls int
	lastForm     url.Values
	lastAuthz    string
}

func newKakaoStub(t *testing.T) *kakaoStub {
	t.Helper()
	stub := &kakaoStub{
		tokenStatus: http.StatusOK,
		profileCode: http.StatusOK,
		profileBody: `{"id":987654321,"properties":{"nickname":"legacy","profile_image":"https://img.example/legacy.png"},"kakao_account":{"email":"neo@example.com","profile":{"nickname":"neo","profile_image_url":"https://img.example/neo.png"}}}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		stub.tokenCalls++
		require.NoError(t, r.ParseForm())
		stub.lastForm = r.PostForm
		if stub.tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stub.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"kakao-access","token_type":"bearer","refresh_token":"kakao-refresh","expires_in":21599}`))
	})
	mux.HandleFunc("/v2/user/me", func(w http.ResponseWriter, r *http.Request) {
		stub.profileCalls++
		stub.lastAuthz = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stub.profileCode)
		_, _ = w.Write([]byte(stub.profileBody))
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *kakaoStub) provider() *KakaoProvider {
	return NewKakaoProvider(config.OAuthProviderSettings{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      s.server.URL + "/oauth/authorize",
		TokenURL:     s.server.URL + "/oauth/token",
		ProfileURL:   s.server.URL + "/v2/user/me",
	}, time.Second)
}

func TestKakaoAuthorizationURL(t *testing.T) {
	provider := NewKakaoProvider(config.OAuthProviderSettings{ClientID: "client-id"}, 0)

	raw := provider.AuthorizationURL("https://app.example/login/oauth2/code/kakao")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	require.Equal(t, "kauth.kakao.com", parsed.Host)
	require.Equal(t, "/oauth/authorize", parsed.Path)
	query := parsed.Query()
	require.Equal(t, "client-id", query.Get("client_id"))
	require.Equal(t, "https://app.example/login/oauth2/code/kakao", query.Get("redirect_uri"))
	require.Equal(t, "code", query.Get("response_type"))
	require.False(t, query.Has("state"))
}

func TestKakaoExchangeAndFetchProfile(t *testing.T) {
	stub := newKakaoStub(t)
	provider := stub.provider()
	ctx := context.Background()

	token, err := provider.ExchangeCode(ctx, "auth-code", "https://app.example/cb")
	require.NoError(t, err)
	require.Equal(t, "kakao-access", token.AccessToken)
	require.Equal(t, "auth-code", stub.lastForm.Get("code"))
	require.Equal(t, "https://app.example/cb", stub.lastForm.Get("redirect_uri"))
	require.Equal(t, "client-secret", stub.lastForm.Get("client_secret"))

	profile, err := provider.FetchProfile(ctx, token)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderProfile{
		ID:        "987654321",
		Nickname:  "neo",
		Email:     "neo@example.com",
		AvatarURL: "https://img.example/neo.png",
	}, profile)
	require.Equal(t, "Bearer kakao-access", stub.lastAuthz)
}

func TestKakaoProfileFallsBackToProperties(t *testing.T) {
	stub := newKakaoStub(t)
	stub.profileBody = `{"id":42,"properties":{"nickname":"legacy","profile_image":"https://img.example/legacy.png"}}`

	profile, err := stub.provider().FetchProfile(context.Background(), domain.ProviderToken{AccessToken: "kakao-access"})
	require.NoError(t, err)
	require.Equal(t, "42", profile.ID)
	require.Equal(t, "legacy", profile.Nickname)
	require.Equal(t, "https://img.example/legacy.png", profile.AvatarURL)
	require.Empty(t, profile.Email)
}

func TestKakaoFailuresAreProviderFailures(t *testing.T) {
	t.Run("rejected code", func(t *testing.T) {
		stub := newKakaoStub(t)
		stub.tokenStatus = http.StatusBadRequest

		_, err := stub.provider().ExchangeCode(context.Background(), "bad-code", "https://app.example/cb")
		require.True(t, errors.Is(err, ErrProviderFailure), "got %v", err)
		require.Equal(t, 1, stub.tokenCalls)
	})

	t.Run("profile non-2xx", func(t *testing.T) {
		stub := newKakaoStub(t)
		stub.profileCode = http.StatusUnauthorized
		stub.profileBody = `{"msg":"this access token does not exist","code":-401}`

		_, err := stub.provider().FetchProfile(context.Background(), domain.ProviderToken{AccessToken: "expired"})
		require.ErrorIs(t, err, ErrProviderFailure)
	})

	t.Run("profile garbage", func(t *testing.T) {
		stub := newKakaoStub(t)
		stub.profileBody = `<html>`

		_, err := stub.provider().FetchProfile(context.Background(), domain.ProviderToken{AccessToken: "kakao-access"})
		require.ErrorIs(t, err, ErrProviderFailure)
	})

	t.Run("profile without id", func(t *testing.T) {
		stub := newKakaoStub(t)
		stub.profileBody = `{"properties":{"nickname":"ghost"}}`

		_, err := stub.provider().FetchProfile(context.Background(), domain.ProviderToken{AccessToken: "kakao-access"})
		require.ErrorIs(t, err, ErrProviderFailure)
	})

	t.Run("unreachable", func(t *testing.T) {
		stub := newKakaoStub(t)
		provider := stub.provider()
		stub.server.Close()

		_, err := provider.ExchangeCode(context.Background(), "code", "https://app.example/cb")
		require.ErrorIs(t, err, ErrProviderFailure)
	})
}
