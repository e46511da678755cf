package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSize 未指定或不合法尺寸时使用的图片尺寸
const DefaultSize = 512

// fallbackAvatarCount 平台默认头像的数量
const fallbackAvatarCount = 5

var (
	// 用户ID为17到20位纯数字
	userIDPattern = regexp.MustCompile(`^\d{17,20}$`)

	// 代码托管平台的用户名规则
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`)

	allowedSizes = map[int]struct{}{
		16: {}, 32: {}, 64: {}, 128: {}, 256: {}, 512: {}, 1024: {}, 2048: {}, 4096: {},
	}

	allowedFormats = map[string]struct{}{
		"png": {}, "jpg": {}, "jpeg": {}, "webp": {}, "gif": {},
	}
)

// ValidUserID 判断用户ID是否合法
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// ValidUsername 判断代码托管平台用户名是否合法
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// NormalizeSize 不在允许集合内的尺寸一律回落到512
func NormalizeSize(size int) int {
	if _, ok := allowedSizes[size]; ok {
		return size
	}
	return DefaultSize
}

// NormalizeFormat 校验并规范化显式指定的图片格式，空字符串表示未指定
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return "", nil
	}
	if _, ok := allowedFormats[f]; !ok {
		return "", fmt.Errorf("不支持的图片格式: %s", format)
	}
	return f, nil
}

// imageExtension 动图哈希以 a_ 开头时使用gif，否则png；显式格式优先
func imageExtension(hash, format string) string {
	if format != "" {
		return format
	}
	if strings.HasPrefix(hash, "a_") {
		return "gif"
	}
	return "png"
}

// IsAnimated 判断图片哈希是否为动图
func IsAnimated(hash string) bool {
	return strings.HasPrefix(hash, "a_")
}

// fallbackAvatarIndex 根据旧版discriminator计算默认头像编号
//
// 平台更换默认头像方案时只需修改这里。
func fallbackAvatarIndex(discriminator string) int {
	n, err := strconv.Atoi(discriminator)
	if err != nil || n <= 0 {
		return 0
	}
	return n % fallbackAvatarCount
}
