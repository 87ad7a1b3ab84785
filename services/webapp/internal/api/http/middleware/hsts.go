package middleware

import (
	"net"
	"net/http"
	"strings"
)

// HSTSMaxAge значение Strict-Transport-Security: 30 дней
const HSTSMaxAge = "max-age=2592000"

// HSTS - HTTP middleware: добавляет Strict-Transport-Security к HTTPS ответам.
// Для localhost заголовок не ставится, иначе браузер запомнит его для всех локальных сервисов.
func HSTS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isHTTPS(r) && !isLoopbackHost(r.Host) {
			w.Header().Set("Strict-Transport-Security", HSTSMaxAge)
		}
		next.ServeHTTP(w, r)
	})
}

// за reverse proxy схему сообщает X-Forwarded-Proto
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
