// Package resolver 把用户标识解析为规范化的头像、横幅地址和用户资料。
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hewenyu/avatar-gateway/internal/cache"
	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/internal/upstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCDNBaseURL 聊天平台图片CDN地址
const DefaultCDNBaseURL = "https://cdn.discordapp.com"

// UserDirectory 聊天平台用户目录
type UserDirectory interface {
	FetchUser(ctx context.Context, userID string) (*upstream.DiscordUser, error)
}

// CodeDirectory 代码托管平台用户目录
type CodeDirectory interface {
	FetchUser(ctx context.Context, username string) (*upstream.GitHubUser, error)
}

// Options 图片解析选项
type Options struct {
	Size   int
	Format string
}

// UserAvatarInfo 头像解析结果
type UserAvatarInfo struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url"`
	Discriminator string `json:"discriminator,omitempty"`
}

// BannerInfo 横幅解析结果
type BannerInfo struct {
	ID        string `json:"id"`
	BannerURL string `json:"banner_url"`
}

// UserProfile 规范化后的完整用户资料
type UserProfile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Discriminator string `json:"discriminator,omitempty"`
	AvatarURL     string `json:"avatar_url"`
	BannerURL     string `json:"banner_url,omitempty"`
	AccentColor   *int   `json:"accent_color,omitempty"`
	BannerColor   string `json:"banner_color,omitempty"`
	IsAnimated    bool   `json:"is_animated"`
	Bot           bool   `json:"bot"`
}

// GitHubProfile 代码托管平台用户资料
type GitHubProfile struct {
	Login       string `json:"login"`
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar_url"`
	ProfileURL  string `json:"profile_url"`
	Bio         string `json:"bio,omitempty"`
	Location    string `json:"location,omitempty"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Resolver 用户资源解析器
type Resolver struct {
	discord UserDirectory
	github  CodeDirectory
	cache   cache.Cache
	cdnBase string
	logger  config.Logger
	group   singleflight.Group
	tracer  trace.Tracer
}

// New 创建解析器，github可以为nil
func New(discord UserDirectory, github CodeDirectory, c cache.Cache, cdnBaseURL string, logger config.Logger) *Resolver {
	if cdnBaseURL == "" {
		cdnBaseURL = DefaultCDNBaseURL
	}
	return &Resolver{
		discord: discord,
		github:  github,
		cache:   c,
		cdnBase: strings.TrimRight(cdnBaseURL, "/"),
		logger:  logger,
		tracer:  otel.Tracer("avatar-gateway/resolver"),
	}
}

// ResolveAvatar 解析用户头像地址
func (r *Resolver) ResolveAvatar(ctx context.Context, userID string, opts Options) (*UserAvatarInfo, error) {
	ctx, span := r.tracer.Start(ctx, "ResolveAvatar", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	format, err := r.validate(userID, opts)
	if err != nil {
		return nil, err
	}

	user, err := r.fetchDiscordUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserAvatarInfo{
		ID:            user.ID,
		Username:      user.Username,
		DisplayName:   displayName(user),
		AvatarURL:     r.avatarURL(user, NormalizeSize(opts.Size), format),
		Discriminator: user.Discriminator,
	}, nil
}

// ResolveBanner 解析用户横幅地址，用户没有横幅时返回ErrResourceAbsent
func (r *Resolver) ResolveBanner(ctx context.Context, userID string, opts Options) (*BannerInfo, error) {
	ctx, span := r.tracer.Start(ctx, "ResolveBanner", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	format, err := r.validate(userID, opts)
	if err != nil {
		return nil, err
	}

	user, err := r.fetchDiscordUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Banner == "" {
		return nil, NewResourceAbsentError("该用户没有设置横幅")
	}

	return &BannerInfo{
		ID:        user.ID,
		BannerURL: r.bannerURL(user, NormalizeSize(opts.Size), format),
	}, nil
}

// ResolveUser 返回完整的用户资料
func (r *Resolver) ResolveUser(ctx context.Context, userID string, opts Options) (*UserProfile, error) {
	format, err := r.validate(userID, opts)
	if err != nil {
		return nil, err
	}

	user, err := r.fetchDiscordUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	size := NormalizeSize(opts.Size)
	profile := &UserProfile{
		ID:            user.ID,
		Username:      user.Username,
		DisplayName:   displayName(user),
		Discriminator: user.Discriminator,
		AvatarURL:     r.avatarURL(user, size, format),
		AccentColor:   user.AccentColor,
		BannerColor:   user.BannerColor,
		IsAnimated:    IsAnimated(user.Avatar),
		Bot:           user.Bot,
	}
	if user.Banner != "" {
		profile.BannerURL = r.bannerURL(user, size, format)
	}
	return profile, nil
}

// ResolveGitHubUser 获取代码托管平台用户资料
func (r *Resolver) ResolveGitHubUser(ctx context.Context, username string) (*GitHubProfile, error) {
	if !ValidUsername(username) {
		return nil, NewClientInputError("无效的用户名")
	}
	if r.github == nil {
		return nil, NewUpstreamError(fmt.Errorf("代码托管平台目录未配置"))
	}

	key := "github_user:" + strings.ToLower(username)
	var user upstream.GitHubUser
	err := r.readThrough(ctx, key, &user, func(ctx context.Context) (any, error) {
		return r.github.FetchUser(ctx, username)
	})
	if err != nil {
		return nil, err
	}

	profile := &GitHubProfile{
		Login:       user.Login,
		ID:          user.ID,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		ProfileURL:  user.HTMLURL,
		Bio:         user.Bio,
		Location:    user.Location,
		PublicRepos: user.PublicRepos,
		Followers:   user.Followers,
		Following:   user.Following,
	}
	if !user.CreatedAt.IsZero() {
		profile.CreatedAt = user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return profile, nil
}

// AvatarURL 直接根据用户记录计算头像地址
func (r *Resolver) AvatarURL(user *upstream.DiscordUser, opts Options) string {
	format, _ := NormalizeFormat(opts.Format)
	return r.avatarURL(user, NormalizeSize(opts.Size), format)
}

func (r *Resolver) validate(userID string, opts Options) (string, error) {
	if !ValidUserID(userID) {
		return "", NewClientInputError("无效的用户ID")
	}
	format, err := NormalizeFormat(opts.Format)
	if err != nil {
		return "", NewClientInputError(err.Error())
	}
	return format, nil
}

func (r *Resolver) avatarURL(user *upstream.DiscordUser, size int, format string) string {
	if user.Avatar == "" {
		// 默认头像不受尺寸和格式参数影响
		return fmt.Sprintf("%s/embed/avatars/%d.png", r.cdnBase, fallbackAvatarIndex(user.Discriminator))
	}
	ext := imageExtension(user.Avatar, format)
	return fmt.Sprintf("%s/avatars/%s/%s.%s?size=%d", r.cdnBase, user.ID, user.Avatar, ext, size)
}

func (r *Resolver) bannerURL(user *upstream.DiscordUser, size int, format string) string {
	ext := imageExtension(user.Banner, format)
	return fmt.Sprintf("%s/banners/%s/%s.%s?size=%d", r.cdnBase, user.ID, user.Banner, ext, size)
}

func (r *Resolver) fetchDiscordUser(ctx context.Context, userID string) (*upstream.DiscordUser, error) {
	var user upstream.DiscordUser
	err := r.readThrough(ctx, "discord_user:"+userID, &user, func(ctx context.Context) (any, error) {
		return r.discord.FetchUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		user.ID = userID
	}
	return &user, nil
}

// readThrough 先读缓存，未命中时调用fetch并写回缓存；同一个键的并发未命中只触发一次上游调用。
// fetch运行在脱离调用方取消的ctx上，由上游客户端的超时兜底，单个等待者断开不影响其他等待者
func (r *Resolver) readThrough(ctx context.Context, key string, out any, fetch func(context.Context) (any, error)) error {
	if data, ok := r.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(data, out); err == nil {
			return nil
		}
		r.logger.Warn("缓存内容无法解析，重新获取", zap.String("key", key))
		r.cache.Delete(ctx, key)
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		record, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		r.cache.Set(fetchCtx, key, data)
		return data, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return NewUpstreamError(ctx.Err())
	}
	v, err := res.Val, res.Err
	if err != nil {
		r.logger.Warn("上游目录调用失败", zap.String("key", key), zap.Error(err))
		return NewUpstreamError(err)
	}

	if err := json.Unmarshal(v.([]byte), out); err != nil {
		return NewUpstreamError(err)
	}
	return nil
}

func displayName(user *upstream.DiscordUser) string {
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
