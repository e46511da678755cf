package upstream

import (
	"errors"
	"fmt"
)

// 定义错误代码
const (
	// ErrTransport 网络错误、超时或熔断器打开
	ErrTransport = iota + 1
	// ErrStatus 上游返回非成功状态码
	ErrStatus
	// ErrNotFound 上游返回404
	ErrNotFound
	// ErrDecode 上游响应无法解析
	ErrDecode
)

// Error 上游调用错误
type Error struct {
	Code       int
	Service    string
	StatusCode int
	Message    string
	Err        error
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Service, e.Message, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError 创建网络错误
func NewTransportError(service string, err error) *Error {
	return &Error{Code: ErrTransport, Service: service, Message: "请求失败", Err: err}
}

// NewStatusError 创建状态码错误
func NewStatusError(service string, statusCode int) *Error {
	code := ErrStatus
	if statusCode == 404 {
		code = ErrNotFound
	}
	return &Error{Code: code, Service: service, StatusCode: statusCode, Message: "上游返回非成功状态"}
}

// NewDecodeError 创建解析错误
func NewDecodeError(service string, err error) *Error {
	return &Error{Code: ErrDecode, Service: service, Message: "解析响应失败", Err: err}
}

// IsNotFound 判断错误是否为上游404
func IsNotFound(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == ErrNotFound
}
