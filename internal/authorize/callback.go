package authorize

import (
	"errors"
	"fmt"
	"net/url"
)

// 回调错误定义
var (
	ErrInvalidCallback     = errors.New("invalid callback url")
	ErrStateMismatch       = errors.New("callback state mismatch")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrMissingCode         = errors.New("callback has no authorization code")
)

// Callback 平台重定向回调携带的结果
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// callbackQuery 解析回调查询参数，格式错误不会被静默忽略
func callbackQuery(rawURL string) (url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return q, nil
}

// StateFromCallback 只取出 state，用于先定位会话再校验
func StateFromCallback(rawURL string) (string, error) {
	q, err := callbackQuery(rawURL)
	if err != nil {
		return "", err
	}
	return q.Get("state"), nil
}

// ParseCallback 解析回调地址
// expectedState 非空时必须与回调中的 state 一致
// 平台返回 error 时，返回的 Callback 仍包含错误详情
func ParseCallback(rawURL, expectedState string) (*Callback, error) {
	q, err := callbackQuery(rawURL)
	if err != nil {
		return nil, err
	}

	cb := &Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	if expectedState != "" && cb.State != expectedState {
		return nil, ErrStateMismatch
	}

	if cb.Error != "" {
		if cb.ErrorDescription != "" {
			return cb, fmt.Errorf("%w: %s: %s", ErrAuthorizationDenied, cb.Error, cb.ErrorDescription)
		}
		return cb, fmt.Errorf("%w: %s", ErrAuthorizationDenied, cb.Error)
	}

	if cb.Code == "" {
		return nil, ErrMissingCode
	}

	return cb, nil
}
