package platform

import (
	"errors"
	"fmt"
)

// ==================== 错误分类 ====================
// 编排层的重试边界完全依赖这里的类型：
//   TransportError  -> 可重试（仅限编排器，带退避）
//   AuthError       -> 该平台本轮立即失败，不重试
//   ProtocolError   -> 同上，响应格式/语义异常
// 对账层永远不重试任何错误。

// TransportError 网络/超时类错误
type TransportError struct {
	Platform string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("[%s] %s 网络请求失败: %v", e.Platform, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError 鉴权被拒（401/403），非瞬时
type AuthError struct {
	Platform string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("[%s] 鉴权失败: %s", e.Platform, e.Message)
}

// ProtocolError 平台返回了无法按约定解析/接受的响应
type ProtocolError struct {
	Platform   string
	StatusCode int
	Message    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("[%s] API 异常 [%d]: %s", e.Platform, e.StatusCode, e.Message)
}

// IsRetryable 仅传输类错误允许退避重试
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
