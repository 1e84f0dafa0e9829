package authorize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/langchou/carconnect/internal/oem"
)

// GrantType OAuth 授权类型，目前只支持授权码
type GrantType string

const GrantTypeCode GrantType = "code"

// ApprovalType 是否强制重新授权
type ApprovalType string

const (
	ApprovalAuto  ApprovalType = "auto"
	ApprovalForce ApprovalType = "force"
)

// ApprovalFromForce 由 forcePrompt 标志得到 ApprovalType
func ApprovalFromForce(forcePrompt bool) ApprovalType {
	if forcePrompt {
		return ApprovalForce
	}
	return ApprovalAuto
}

var ErrInvalidRequest = errors.New("invalid authorization request")

// Request 一次授权请求，构造后不可变
type Request struct {
	clientID     string
	redirectURI  string
	scope        []string
	grantType    GrantType
	approvalType ApprovalType
	oem          oem.OEM
	state        string
}

func (r *Request) ClientID() string { return r.clientID }
func (r *Request) RedirectURI() string { return r.redirectURI }
func (r *Request) GrantType() GrantType { return r.grantType }
func (r *Request) ApprovalType() ApprovalType { return r.approvalType }
func (r *Request) OEM() oem.OEM { return r.oem }
func (r *Request) State() string { return r.state }

// Scope 返回权限列表副本
func (r *Request) Scope() []string {
	return append([]string(nil), r.scope...)
}

// WithState 返回携带 state 的副本，原请求不变
func (r *Request) WithState(state string) *Request {
	cp := *r
	cp.scope = r.Scope()
	cp.state = state
	return &cp
}

// hasSpace 是否包含空白字符
func hasSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// ValidateRedirectURI 校验回调地址：非空、无首尾空白且带 scheme
func ValidateRedirectURI(redirectURI string) error {
	if strings.TrimSpace(redirectURI) == "" {
		return fmt.Errorf("%w: redirect_uri is required", ErrInvalidRequest)
	}
	if redirectURI != strings.TrimSpace(redirectURI) {
		return fmt.Errorf("%w: redirect_uri %q has surrounding whitespace", ErrInvalidRequest, redirectURI)
	}

	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: redirect_uri %q is not an absolute uri", ErrInvalidRequest, redirectURI)
	}
	return nil
}

// validate 校验构造参数
// 参数原样写入请求，所以带空白的值直接拒绝而不是修剪
func validate(clientID, redirectURI string, scope []string, o oem.OEM) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	}
	if clientID != strings.TrimSpace(clientID) {
		return fmt.Errorf("%w: client_id %q has surrounding whitespace", ErrInvalidRequest, clientID)
	}

	if err := ValidateRedirectURI(redirectURI); err != nil {
		return err
	}

	// scope 以空格拼接，单项内的空白会在 URL 中被拆成多项
	for i, s := range scope {
		if s == "" {
			return fmt.Errorf("%w: scope[%d] is empty", ErrInvalidRequest, i)
		}
		if hasSpace(s) {
			return fmt.Errorf("%w: scope[%d] %q contains whitespace", ErrInvalidRequest, i, s)
		}
	}

	if o.IsZero() {
		return fmt.Errorf("%w: oem is required", ErrInvalidRequest)
	}

	return nil
}
