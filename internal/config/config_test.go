package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// 从默认位置加载配置
	config, err := LoadConfig("")
	require.NoError(t, err, "无法加载默认配置")
	require.NotNil(t, config, "配置不应为nil")

	// 验证默认值
	assert.Equal(t, 8080, config.Server.Port, "HTTP端口应为8080")
	assert.Equal(t, "0.0.0.0:8080", config.Server.Address())
	assert.Equal(t, "https://discord.com/api/v10", config.Discord.APIBaseURL)
	assert.Equal(t, "Bot", config.Discord.AuthScheme)
	assert.Equal(t, 60*time.Second, config.Cache.TTL, "缓存TTL默认应为60秒")
	assert.Equal(t, "memory", config.Cache.Backend)
	assert.Equal(t, "memory", config.Storage.Backend)
	assert.Equal(t, 8*time.Second, config.Health.PipelineTimeout)
	assert.Equal(t, []string{"localhost:2379"}, config.Etcd.Endpoints)
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("AVATAR_GATEWAY_SERVER_PORT", "9090")
	t.Setenv("AVATAR_GATEWAY_CACHE_TTL", "2m")
	t.Setenv("GITHUB_TOKEN", "gh-secret")

	config, err := LoadConfig("")
	require.NoError(t, err, "无法加载配置")
	require.NotNil(t, config, "配置不应为nil")

	// 验证环境变量覆盖
	assert.Equal(t, 9090, config.Server.Port, "环境变量应正确覆盖HTTP端口")
	assert.Equal(t, 2*time.Minute, config.Cache.TTL, "环境变量应正确覆盖缓存TTL")
	assert.Equal(t, "gh-secret", config.GitHub.Token, "应读取GITHUB_TOKEN")

	// 确认其他值不受影响
	assert.Equal(t, 5*time.Second, config.Discord.Timeout)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7000
  public_base_url: "https://avatars.example.com"
cache:
  ttl: 30s
storage:
  backend: etcd
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, config.Server.Port)
	assert.Equal(t, "https://avatars.example.com", config.Server.PublicBaseURL)
	assert.Equal(t, 30*time.Second, config.Cache.TTL)
	assert.Equal(t, "etcd", config.Storage.Backend)
	assert.Equal(t, "github", config.Health.GitHubProbeUser, "未配置的项应保留默认值")
}

func TestLoadConfigWithMissingFile(t *testing.T) {
	config, err := LoadConfig("non_existent_file.yaml")

	assert.Error(t, err, "从不存在的文件加载配置应该失败")
	assert.Nil(t, config, "加载不存在的配置文件应该返回nil配置")
}

func TestLoadConfigSearchesDefaultPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte("server:\n  port: 7100\n"), 0o644))
	t.Chdir(dir)

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7100, config.Server.Port, "未指定路径时应从./configs读取")
}
