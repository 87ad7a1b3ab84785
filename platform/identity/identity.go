// Package identity извлекает пользователя из контекста запроса.
//
// HTTP middleware или gRPC interceptor кладут Principal в context.Context,
// а обработчики читают идентификатор и имя через UserIdentity/UserName.
// При DisableAuth=true всегда возвращается демо-пользователь.
package identity

import (
	"context"

	"github.com/IggyCloud/eShop/platform/config"
)

// Типы claim'ов
const (
	ClaimSubject        = "sub"
	ClaimName           = "name"
	ClaimNameIdentifier = "nameidentifier"
)

// Демо-пользователь для режима без аутентификации
const (
	DemoUserID   = "demo-user-123"
	DemoUserName = "Demo User"
)

// KeyDisableAuth ключ конфигурации, отключающий аутентификацию
const KeyDisableAuth = "DisableAuth"

// Claim одно утверждение о пользователе
type Claim struct {
	Type  string
	Value string
}

// Principal - аутентифицированный пользователь и его claim'ы
type Principal struct {
	AuthenticationType string
	Claims             []Claim
}

// NewPrincipal создаёт Principal
func NewPrincipal(authType string, claims ...Claim) *Principal {
	return &Principal{AuthenticationType: authType, Claims: claims}
}

// FindFirst значение первого claim'а указанного типа
func (p *Principal) FindFirst(claimType string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, c := range p.Claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// IsAuthenticated true если задан тип аутентификации
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.AuthenticationType != ""
}

type ctxKeyPrincipal struct{}

// WithPrincipal сохраняет Principal в контексте
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal{}, p)
}

// PrincipalFromContext возвращает Principal из контекста, если он был установлен
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal{}).(*Principal)
	return p, ok && p != nil
}

// UserIdentity идентификатор пользователя: демо-пользователь при disableAuth, иначе claim "sub"
func UserIdentity(ctx context.Context, disableAuth bool) (string, bool) {
	if disableAuth {
		return DemoUserID, true
	}
	p, _ := PrincipalFromContext(ctx)
	return p.FindFirst(ClaimSubject)
}

// UserName имя пользователя: демо-имя при disableAuth, иначе claim "name"
func UserName(ctx context.Context, disableAuth bool) (string, bool) {
	if disableAuth {
		return DemoUserName, true
	}
	p, _ := PrincipalFromContext(ctx)
	return p.FindFirst(ClaimName)
}

// Resolver читает флаг DisableAuth из конфигурации сервиса.
// Без конфигурации аутентификация считается включённой.
type Resolver struct {
	cfg config.Reader
}

// NewResolver создаёт Resolver; cfg может быть nil
func NewResolver(cfg config.Reader) *Resolver {
	return &Resolver{cfg: cfg}
}

// DisableAuth значение флага; нераспознанное значение - false
func (r *Resolver) DisableAuth() bool {
	if r == nil || r.cfg == nil {
		return false
	}
	return config.FirstOf(false, config.Bool(r.cfg, KeyDisableAuth))
}

// UserIdentity см. пакетную UserIdentity
func (r *Resolver) UserIdentity(ctx context.Context) (string, bool) {
	return UserIdentity(ctx, r.DisableAuth())
}

// UserName см. пакетную UserName
func (r *Resolver) UserName(ctx context.Context) (string, bool) {
	return UserName(ctx, r.DisableAuth())
}
