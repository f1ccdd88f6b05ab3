package service

import "errors"

// ErrorCode 业务错误分类
type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeToken        ErrorCode = "token"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeRateLimited  ErrorCode = "rate_limited"
	ErrorCodeInternal     ErrorCode = "internal"
)

// ServiceError 可以直接展示给调用方的错误
type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func newServiceError(code ErrorCode, message string) error {
	return &ServiceError{Code: code, Message: message}
}

func NewValidationError(message string) error   { return newServiceError(ErrorCodeValidation, message) }
func NewUnauthorizedError(message string) error { return newServiceError(ErrorCodeUnauthorized, message) }
func NewForbiddenError(message string) error    { return newServiceError(ErrorCodeForbidden, message) }
func NewNotFoundError(message string) error     { return newServiceError(ErrorCodeNotFound, message) }
func NewConflictError(message string) error     { return newServiceError(ErrorCodeConflict, message) }
func NewRateLimitedError(message string) error  { return newServiceError(ErrorCodeRateLimited, message) }

// NewTokenError 不区分过期和篡改
func NewTokenError() error {
	return newServiceError(ErrorCodeToken, "the link is invalid or has expired, please request a new one")
}

// AsServiceError 尝试解析为 ServiceError
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode 判断错误分类
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// Status 幂等操作的结果，Changed=false 表示已经是目标状态
type Status struct {
	Changed bool   `json:"changed"`
	Message string `json:"msg"`
}

func changed(msg string) Status   { return Status{Changed: true, Message: msg} }
func unchanged(msg string) Status { return Status{Changed: false, Message: msg} }

// Page 分页结果
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// paginate page<=0 视为第一页
func paginate(page, perPage int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	return page, (page - 1) * perPage, perPage
}

func newPage[T any](items []T, total int64, page, perPage int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: page, PerPage: perPage}
}
