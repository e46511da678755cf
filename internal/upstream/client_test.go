package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiscordTestServer(t *testing.T, handler http.HandlerFunc) (*DiscordClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewDiscordClient(config.DiscordConfig{
		APIBaseURL: server.URL,
		Token:      "secret",
		Timeout:    time.Second,
	})
	return client, server
}

func TestDiscordClient_FetchUser(t *testing.T) {
	client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/80351110224678912", r.URL.Path)
		assert.Equal(t, "Bot secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"80351110224678912","username":"nelly","discriminator":"1337","avatar":"a_8342729096ea3675442027381ff50dfe","banner":null,"accent_color":16711680}`))
	})

	user, err := client.FetchUser(context.Background(), "80351110224678912")
	require.NoError(t, err)
	assert.Equal(t, "nelly", user.Username)
	assert.Equal(t, "1337", user.Discriminator)
	assert.Equal(t, "a_8342729096ea3675442027381ff50dfe", user.Avatar)
	assert.Empty(t, user.Banner)
	require.NotNil(t, user.AccentColor)
	assert.Equal(t, 16711680, *user.AccentColor)
}

func TestDiscordClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode int
	}{
		{"未找到", http.StatusNotFound, ErrNotFound},
		{"未授权", http.StatusUnauthorized, ErrStatus},
		{"服务器错误", http.StatusInternalServerError, ErrStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.FetchUser(context.Background(), "80351110224678912")
			require.Error(t, err)

			var ue *Error
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.wantCode, ue.Code)
			assert.Equal(t, tt.status, ue.StatusCode)
			assert.Equal(t, DiscordService, ue.Service)
		})
	}
}

func TestDiscordClient_DecodeError(t *testing.T) {
	client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.FetchUser(context.Background(), "80351110224678912")
	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, ErrDecode, ue.Code)
}

func TestDiscordClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewDiscordClient(config.DiscordConfig{APIBaseURL: server.URL, Timeout: time.Second})
	_, err := client.Gateway(context.Background())

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, ErrTransport, ue.Code)
	assert.False(t, IsNotFound(err))
}

func TestDiscordClient_Gateway(t *testing.T) {
	client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gateway", r.URL.Path)
		w.Write([]byte(`{"url":"wss://gateway.discord.gg"}`))
	})

	gw, err := client.Gateway(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg", gw.URL)
}

func TestDiscordClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.Gateway(ctx)
		require.Error(t, err)
	}

	// 熔断器打开后不再请求上游
	_, err := client.Gateway(ctx)
	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, ErrTransport, ue.Code)
	assert.Equal(t, int32(5), calls.Load())
}

func TestDiscordClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_, err := client.FetchUser(ctx, "80351110224678912")
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, int32(8), calls.Load())
}

func TestDiscordClient_CallerCancelDoesNotTripBreaker(t *testing.T) {
	client, _ := newDiscordTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		w.Write([]byte(`{"id":"80351110224678912","username":"nelly"}`))
	})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		timer := time.AfterFunc(10*time.Millisecond, cancel)
		_, err := client.FetchUser(ctx, "80351110224678912")
		timer.Stop()
		cancel()
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	}

	user, err := client.FetchUser(context.Background(), "80351110224678912")
	require.NoError(t, err, "调用方取消不应打开熔断器")
	assert.Equal(t, "nelly", user.Username)
}

func TestGitHubClient_FetchUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat", r.URL.Path)
		assert.Equal(t, "token gh-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Write([]byte(`{"login":"octocat","id":583231,"avatar_url":"https://avatars.githubusercontent.com/u/583231?v=4","html_url":"https://github.com/octocat","name":"The Octocat","public_repos":8,"followers":9000,"following":9,"created_at":"2011-01-25T18:44:36Z"}`))
	}))
	defer server.Close()

	client := NewGitHubClient(config.GitHubConfig{APIBaseURL: server.URL + "/", Token: "gh-token", Timeout: time.Second})
	user, err := client.FetchUser(context.Background(), "octocat")
	require.NoError(t, err)

	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, int64(583231), user.ID)
	assert.Equal(t, "The Octocat", user.Name)
	assert.Equal(t, 8, user.PublicRepos)
	assert.Equal(t, 2011, user.CreatedAt.Year())
}

func TestGitHubClient_NoTokenOmitsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"login":"octocat"}`))
	}))
	defer server.Close()

	client := NewGitHubClient(config.GitHubConfig{APIBaseURL: server.URL})
	_, err := client.FetchUser(context.Background(), "octocat")
	require.NoError(t, err)
}

func TestError_Message(t *testing.T) {
	err := NewStatusError(GitHubService, 503)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, ErrStatus, err.Code)

	wrapped := NewTransportError(DiscordService, errors.New("dial tcp: refused"))
	assert.Contains(t, wrapped.Error(), "refused")
	assert.NotNil(t, errors.Unwrap(wrapped))
}
