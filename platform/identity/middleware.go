package identity

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Mock пользователь режима без аутентификации (WebApp NoAuth)
const (
	MockUserID   = "test-user"
	MockUserName = "Test User"
	mockAuthType = "mock"
)

// Ключи gRPC metadata, в которых gateway передаёт пользователя
const (
	MetadataUserSub  = "x-user-sub"
	MetadataUserName = "x-user-name"
)

// MockPrincipal - всегда аутентифицированный тестовый пользователь
func MockPrincipal() *Principal {
	return NewPrincipal(mockAuthType,
		Claim{Type: ClaimNameIdentifier, Value: MockUserID},
		Claim{Type: ClaimName, Value: MockUserName},
		Claim{Type: ClaimSubject, Value: MockUserID},
	)
}

// NoAuthMiddleware кладёт MockPrincipal в контекст каждого запроса
func NoAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), MockPrincipal())))
	})
}

// UnaryServerInterceptor переносит пользователя из incoming metadata в контекст.
// Без x-user-sub запрос проходит без Principal: решение принимает обработчик.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if p, ok := principalFromMetadata(ctx); ok {
			ctx = WithPrincipal(ctx, p)
		}
		return handler(ctx, req)
	}
}

func principalFromMetadata(ctx context.Context) (*Principal, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, false
	}
	sub := first(md, MetadataUserSub)
	if sub == "" {
		return nil, false
	}
	claims := []Claim{{Type: ClaimSubject, Value: sub}}
	if name := first(md, MetadataUserName); name != "" {
		claims = append(claims, Claim{Type: ClaimName, Value: name})
	}
	return NewPrincipal("metadata", claims...), true
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
