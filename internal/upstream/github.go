package upstream

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
)

// GitHubService 代码托管平台目录在错误和日志中的名称
const GitHubService = "github"

// GitHubUser 代码托管平台返回的用户记录
type GitHubUser struct {
	Login       string    `json:"login"`
	ID          int64     `json:"id"`
	AvatarURL   string    `json:"avatar_url"`
	HTMLURL     string    `json:"html_url"`
	Name        string    `json:"name,omitempty"`
	Company     string    `json:"company,omitempty"`
	Blog        string    `json:"blog,omitempty"`
	Location    string    `json:"location,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

// GitHubClient 代码托管平台用户目录客户端
type GitHubClient struct {
	http *httpClient
}

// NewGitHubClient 创建代码托管平台客户端
func NewGitHubClient(cfg config.GitHubConfig) *GitHubClient {
	token := cfg.Token
	authorize := func(req *http.Request) {
		req.Header.Set("Accept", "application/vnd.github+json")
		if token != "" {
			req.Header.Set("Authorization", "token "+token)
		}
	}

	return &GitHubClient{
		http: newHTTPClient(GitHubService, cfg.APIBaseURL, cfg.Timeout, authorize),
	}
}

// FetchUser 获取用户记录
func (c *GitHubClient) FetchUser(ctx context.Context, username string) (*GitHubUser, error) {
	var user GitHubUser
	if err := c.http.getJSON(ctx, "/users/"+url.PathEscape(username), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
