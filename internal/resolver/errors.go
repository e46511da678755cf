package resolver

import "errors"

// 定义错误代码
const (
	// ErrClientInput 请求参数不合法，未调用上游
	ErrClientInput = iota + 1
	// ErrUpstream 上游目录调用失败
	ErrUpstream
	// ErrResourceAbsent 请求的资源不存在，例如用户没有横幅
	ErrResourceAbsent
)

// Error 解析过程中的错误
type Error struct {
	Code    int
	Message string
	Err     error
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// NewClientInputError 创建参数错误
func NewClientInputError(message string) *Error {
	return &Error{Code: ErrClientInput, Message: message}
}

// NewUpstreamError 创建上游错误
func NewUpstreamError(err error) *Error {
	return &Error{Code: ErrUpstream, Message: "上游服务调用失败", Err: err}
}

// NewResourceAbsentError 创建资源不存在错误
func NewResourceAbsentError(message string) *Error {
	return &Error{Code: ErrResourceAbsent, Message: message}
}

// CodeOf 返回错误代码，非resolver错误返回0
func CodeOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return 0
}
