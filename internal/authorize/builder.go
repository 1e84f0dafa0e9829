package authorize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/langchou/carconnect/internal/oem"
)

// DefaultEndpoint 默认授权端点模板，{oem} 替换为小写的 OEM 标识
const DefaultEndpoint = "https://{oem}.smartcar.com/oauth/authorize"

const oemPlaceholder = "{oem}"

var ErrInvalidEndpoint = errors.New("invalid authorization endpoint")

// Builder 授权请求构造器，无状态，可并发使用
type Builder struct {
	endpoint string
}

// NewBuilder 创建构造器，template 为空时使用 DefaultEndpoint
func NewBuilder(template string) (*Builder, error) {
	if template == "" {
		template = DefaultEndpoint
	}

	if !strings.Contains(template, oemPlaceholder) {
		return nil, fmt.Errorf("%w: %q has no %s placeholder", ErrInvalidEndpoint, template, oemPlaceholder)
	}

	u, err := url.Parse(strings.ReplaceAll(template, oemPlaceholder, "oem"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q must be an absolute http(s) url", ErrInvalidEndpoint, template)
	}

	return &Builder{endpoint: template}, nil
}

// Build 校验参数并创建授权请求，oem 需已由 oem.Resolve 解析
func (b *Builder) Build(clientID, redirectURI string, scope []string, forcePrompt bool, o oem.OEM) (*Request, error) {
	if err := validate(clientID, redirectURI, scope, o); err != nil {
		return nil, err
	}

	return &Request{
		clientID:     clientID,
		redirectURI:  redirectURI,
		scope:        append([]string(nil), scope...),
		grantType:    GrantTypeCode,
		approvalType: ApprovalFromForce(forcePrompt),
		oem:          o,
	}, nil
}

// EndpointFor 返回指定 OEM 的授权端点
func (b *Builder) EndpointFor(o oem.OEM) string {
	return strings.ReplaceAll(b.endpoint, oemPlaceholder, strings.ToLower(o.String()))
}

// AuthorizationURL 生成授权跳转地址
// scope 以空格拼接，为空时省略；参数按键名排序，相同请求得到相同 URL
func (b *Builder) AuthorizationURL(r *Request) (string, error) {
	if r == nil || r.clientID == "" || r.oem.IsZero() {
		return "", fmt.Errorf("%w: request was not built", ErrInvalidRequest)
	}

	cfg := oauth2.Config{
		ClientID:    r.clientID,
		RedirectURL: r.redirectURI,
		Scopes:      r.scope,
		Endpoint: oauth2.Endpoint{
			AuthURL: b.EndpointFor(r.oem),
		},
	}

	return cfg.AuthCodeURL(r.state,
		oauth2.SetAuthURLParam("response_type", string(r.grantType)),
		oauth2.SetAuthURLParam("approval_prompt", string(r.approvalType)),
	), nil
}
