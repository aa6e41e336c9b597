// Package identity derives a stable actor id from the client's network
// and header fingerprint. The id is deterministic: the same client gets
// the same id across requests and restarts.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// ActorID hashes the client fingerprint (ip|user-agent|accept-language|
// accept-encoding) into an opaque stable identifier.
func ActorID(r *http.Request) string {
	fingerprint := strings.Join([]string{
		clientIP(r),
		headerOrUnknown(r, "User-Agent"),
		headerOrUnknown(r, "Accept-Language"),
		headerOrUnknown(r, "Accept-Encoding"),
	}, "|")

	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:16])
}

func headerOrUnknown(r *http.Request, name string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return "unknown"
}

// clientIP resolves the originating address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" && !strings.EqualFold(forwarded, "unknown") {
		// 多个IP时取第一个
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" && !strings.EqualFold(realIP, "unknown") {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
