// Package fingerprint вычисляет отпечаток устройства клиента по HTTP-запросу.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"sort"
	"strings"
)

// Header заголовок, в котором клиент может передать собственный отпечаток устройства.
const Header = "X-Device-Fingerprint"

type ctxKey struct{}

// Generate строит 32-символьный hex-отпечаток из заголовков браузера и IP клиента.
func Generate(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Accept"),
		clientIP(r),
		headerOrder(r),
	}

	var filtered []string
	for _, comp := range components {
		if comp != "" {
			filtered = append(filtered, comp)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(filtered, "|")))
	return hex.EncodeToString(hash[:16])
}

// FromRequest возвращает отпечаток клиента из заголовка или вычисляет его.
func FromRequest(r *http.Request) string {
	if fp := strings.TrimSpace(r.Header.Get(Header)); fp != "" {
		if len(fp) > 128 {
			fp = fp[:128]
		}
		return fp
	}
	return Generate(r)
}

// WithFingerprint кладёт отпечаток в контекст.
func WithFingerprint(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, ctxKey{}, fp)
}

// FromContext возвращает отпечаток из контекста или пустую строку.
func FromContext(ctx context.Context) string {
	fp, _ := ctx.Value(ctxKey{}).(string)
	return fp
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func headerOrder(r *http.Request) string {
	var names []string
	for name := range r.Header {
		switch strings.ToLower(name) {
		case "user-agent", "accept", "accept-language", "accept-encoding",
			"connection", "upgrade-insecure-requests", "sec-fetch-dest",
			"sec-fetch-mode", "sec-fetch-site", "cache-control":
			names = append(names, strings.ToLower(name))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
