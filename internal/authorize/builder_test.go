package authorize

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/carconnect/internal/oem"
)

const (
	testClientID    = "7cc72cc2-6464-4245-9fed-b971361a820e"
	testRedirectURI = "sc7cc72cc2-6464-4245-9fed-b971361a820e://page"
)

var testScope = []string{"read_vehicle_info", "read_odometer"}

func mustResolve(t *testing.T, raw string) oem.OEM {
	t.Helper()
	o, err := oem.Resolve(raw)
	require.NoError(t, err)
	return o
}

func defaultBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder("")
	require.NoError(t, err)
	return b
}

func TestBuild_Initialization(t *testing.T) {
	b := defaultBuilder(t)
	tesla := mustResolve(t, "tesla")

	req, err := b.Build(testClientID, testRedirectURI, testScope, true, tesla)
	require.NoError(t, err)

	assert.Equal(t, testClientID, req.ClientID())
	assert.Equal(t, testRedirectURI, req.RedirectURI())
	assert.Equal(t, testScope, req.Scope())
	assert.Equal(t, GrantTypeCode, req.GrantType())
	assert.Equal(t, ApprovalForce, req.ApprovalType())
	assert.Equal(t, tesla, req.OEM())
	assert.Empty(t, req.State())
}

func TestBuild_AutoApproval(t *testing.T) {
	req, err := defaultBuilder(t).Build("abc", "sc://page", nil, false, mustResolve(t, "tesla"))
	require.NoError(t, err)
	assert.Equal(t, ApprovalAuto, req.ApprovalType())
	assert.Empty(t, req.Scope())
}

func TestBuild_Invalid(t *testing.T) {
	b := defaultBuilder(t)
	tesla := mustResolve(t, "tesla")

	tests := []struct {
		name        string
		clientID    string
		redirectURI string
		scope       []string
		oem         oem.OEM
	}{
		{"empty client id", "", "x://y", nil, tesla},
		{"blank client id", "  ", "x://y", nil, tesla},
		{"empty redirect", "abc", "", nil, tesla},
		{"relative redirect", "abc", "page", nil, tesla},
		{"empty scope entry", "abc", "x://y", []string{"read_odometer", ""}, tesla},
		{"blank scope entry", "abc", "x://y", []string{" "}, tesla},
		{"scope entry with space", "abc", "x://y", []string{"read_vehicle_info read_odometer"}, tesla},
		{"scope entry with tab", "abc", "x://y", []string{"read_odometer\t"}, tesla},
		{"padded client id", " abc ", "x://y", nil, tesla},
		{"padded redirect", "abc", " x://y", nil, tesla},
		{"no oem", "abc", "x://y", nil, oem.OEM{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := b.Build(tt.clientID, tt.redirectURI, tt.scope, false, tt.oem)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Nil(t, req)
		})
	}
}

func TestBuild_CopiesScope(t *testing.T) {
	scope := []string{"read_vehicle_info"}
	req, err := defaultBuilder(t).Build("abc", "sc://page", scope, false, mustResolve(t, "audi"))
	require.NoError(t, err)

	scope[0] = "control_security"
	got := req.Scope()
	got[0] = "read_location"

	assert.Equal(t, []string{"read_vehicle_info"}, req.Scope())
}

func TestWithState_LeavesOriginal(t *testing.T) {
	req, err := defaultBuilder(t).Build("abc", "sc://page", testScope, false, mustResolve(t, "ford"))
	require.NoError(t, err)

	withState := req.WithState("xyz")
	assert.Equal(t, "xyz", withState.State())
	assert.Empty(t, req.State())
	assert.Equal(t, req.Scope(), withState.Scope())
}

func TestAuthorizationURL(t *testing.T) {
	b := defaultBuilder(t)
	req, err := b.Build("abc", "sc://page", testScope, true, mustResolve(t, "tesla"))
	require.NoError(t, err)

	raw, err := b.AuthorizationURL(req)
	require.NoError(t, err)

	assert.Equal(t,
		"https://tesla.smartcar.com/oauth/authorize?approval_prompt=force&client_id=abc"+
			"&redirect_uri=sc%3A%2F%2Fpage&response_type=code&scope=read_vehicle_info+read_odometer",
		raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "read_vehicle_info read_odometer", u.Query().Get("scope"))
}

func TestAuthorizationURL_Deterministic(t *testing.T) {
	b := defaultBuilder(t)
	o := mustResolve(t, "BMW")

	first, err := b.Build("abc", "sc://page", testScope, false, o)
	require.NoError(t, err)
	second, err := b.Build("abc", "sc://page", testScope, false, o)
	require.NoError(t, err)

	u1, err := b.AuthorizationURL(first)
	require.NoError(t, err)
	u2, err := b.AuthorizationURL(second)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
}

func TestAuthorizationURL_OptionalParams(t *testing.T) {
	b := defaultBuilder(t)
	req, err := b.Build("abc", "sc://page", nil, false, mustResolve(t, "bmwConnected"))
	require.NoError(t, err)

	raw, err := b.AuthorizationURL(req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "https://bmwconnected.smartcar.com/oauth/authorize?"), raw)
	assert.NotContains(t, raw, "scope=")
	assert.NotContains(t, raw, "state=")
	assert.Contains(t, raw, "approval_prompt=auto")

	raw, err = b.AuthorizationURL(req.WithState("s-1"))
	require.NoError(t, err)
	assert.Contains(t, raw, "state=s-1")
}

func TestAuthorizationURL_NotBuilt(t *testing.T) {
	b := defaultBuilder(t)

	_, err := b.AuthorizationURL(nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = b.AuthorizationURL(&Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewBuilder(t *testing.T) {
	b, err := NewBuilder("http://localhost:8080/{oem}/authorize")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/kia/authorize", b.EndpointFor(mustResolve(t, "KIA")))

	for _, tmpl := range []string{
		"https://connect.example.com/authorize",
		"ftp://{oem}.example.com/authorize",
		"/{oem}/authorize",
	} {
		_, err := NewBuilder(tmpl)
		assert.ErrorIs(t, err, ErrInvalidEndpoint, tmpl)
	}
}
