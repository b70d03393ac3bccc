package models

import "fmt"

// ValidationError 状态转换或输入校验失败。在任何状态变更之前同步拒绝。
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// NetworkError 网络传输失败或超时。按退避策略重试，队列内容保留。
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError 凭证被后端拒绝 (401 类响应)。与一般网络失败区分，
// 当前同步周期立即中止而不继续重试。
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: backend rejected credential (status %d)", e.StatusCode)
}

// DataIntegrityError 队列记录在传输前未通过结构校验。
// 整批保留并跳过本周期传输，绝不发送含有不可验证合规记录的批次。
type DataIntegrityError struct {
	Kind   QueueKind
	ItemID string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity error in %s queue (item %s): %s", e.Kind, e.ItemID, e.Reason)
}
