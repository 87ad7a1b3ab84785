package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/IggyCloud/eShop/platform/config"
)

func TestUserIdentity(t *testing.T) {
	withUser := WithPrincipal(context.Background(), NewPrincipal("jwt",
		Claim{Type: ClaimSubject, Value: "alice-id"},
		Claim{Type: ClaimName, Value: "Alice"},
	))

	tests := []struct {
		name        string
		ctx         context.Context
		disableAuth bool
		wantID      string
		wantName    string
		wantOK      bool
	}{
		{name: "auth disabled", ctx: context.Background(), disableAuth: true, wantID: DemoUserID, wantName: DemoUserName, wantOK: true},
		{name: "auth disabled ignores principal", ctx: withUser, disableAuth: true, wantID: DemoUserID, wantName: DemoUserName, wantOK: true},
		{name: "claims", ctx: withUser, wantID: "alice-id", wantName: "Alice", wantOK: true},
		{name: "anonymous", ctx: context.Background()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := UserIdentity(tt.ctx, tt.disableAuth)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)

			name, ok := UserName(tt.ctx, tt.disableAuth)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestResolver(t *testing.T) {
	cfg, err := config.New(config.Map("test", map[string]string{"DisableAuth": "true"}))
	require.NoError(t, err)

	id, ok := NewResolver(cfg).UserIdentity(context.Background())
	require.True(t, ok)
	assert.Equal(t, DemoUserID, id)

	bad, err := config.New(config.Map("test", map[string]string{"DisableAuth": "maybe"}))
	require.NoError(t, err)
	assert.False(t, NewResolver(bad).DisableAuth())
	assert.False(t, NewResolver(nil).DisableAuth())
}

func TestNoAuthMiddleware(t *testing.T) {
	var gotID, gotName string
	h := NoAuthMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIdentity(r.Context(), false)
		gotName, _ = UserName(r.Context(), false)
		p, _ := PrincipalFromContext(r.Context())
		assert.True(t, p.IsAuthenticated())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/user", nil))
	assert.Equal(t, MockUserID, gotID)
	assert.Equal(t, MockUserName, gotName)
}

func TestUnaryServerInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/BasketApi.Basket/GetBasket"}

	var gotID string
	var gotOK bool
	handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
		gotID, gotOK = UserIdentity(ctx, false)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataUserSub, "bob", MetadataUserName, "Bob"))
	_, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.True(t, gotOK)
	assert.Equal(t, "bob", gotID)

	_, err = interceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.False(t, gotOK)
}
