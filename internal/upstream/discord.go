package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hewenyu/avatar-gateway/internal/config"
)

// DiscordService 聊天平台目录在错误和日志中的名称
const DiscordService = "discord"

// DiscordUser 聊天平台返回的用户记录，只保留需要的字段
type DiscordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Banner        string `json:"banner,omitempty"`
	AccentColor   *int   `json:"accent_color,omitempty"`
	BannerColor   string `json:"banner_color,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Gateway 网关接口的响应
type Gateway struct {
	URL string `json:"url"`
}

// DiscordClient 聊天平台用户目录客户端
type DiscordClient struct {
	http *httpClient
}

// NewDiscordClient 创建聊天平台客户端
func NewDiscordClient(cfg config.DiscordConfig) *DiscordClient {
	scheme := cfg.AuthScheme
	if scheme == "" {
		scheme = "Bot"
	}
	token := cfg.Token

	authorize := func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", scheme+" "+token)
		}
	}

	return &DiscordClient{
		http: newHTTPClient(DiscordService, cfg.APIBaseURL, cfg.Timeout, authorize),
	}
}

// FetchUser 获取用户记录
func (c *DiscordClient) FetchUser(ctx context.Context, userID string) (*DiscordUser, error) {
	var user DiscordUser
	if err := c.http.getJSON(ctx, "/users/"+url.PathEscape(userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Gateway 获取网关信息，用于探测可达性
func (c *DiscordClient) Gateway(ctx context.Context) (*Gateway, error) {
	var gw Gateway
	if err := c.http.getJSON(ctx, "/gateway", &gw); err != nil {
		return nil, err
	}
	return &gw, nil
}
