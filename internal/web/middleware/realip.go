package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// trustedProxies are the networks whose forwarding headers are believed.
type trustedProxies []*net.IPNet

// parseTrustedProxies accepts CIDRs and bare addresses. Bad entries are
// logged and skipped.
func parseTrustedProxies(entries []string) trustedProxies {
	var nets trustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			slog.Warn("realip: invalid trusted proxy, skipping", "entry", entry)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

func (t trustedProxies) contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, network := range t {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientAddr returns the client address reported by a trusted peer, or ""
// when the request's own RemoteAddr should stand. X-Real-IP wins. Otherwise
// X-Forwarded-For is read from the right and the first hop outside the
// trusted networks is the client; hops further left were written by that
// client and are not believed.
func (t trustedProxies) clientAddr(r *http.Request) string {
	if !t.contains(hostIP(r.RemoteAddr)) {
		return ""
	}

	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		if ip := net.ParseIP(rip); ip != nil {
			return ip.String()
		}
		return ""
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			return ""
		}
		if !t.contains(ip) {
			return ip.String()
		}
	}
	return ""
}

// TrustedRealIP rewrites RemoteAddr to the client address forwarded by a
// trusted proxy. Requests from any other peer keep their RemoteAddr.
func TrustedRealIP(trusted []string) func(http.Handler) http.Handler {
	proxies := parseTrustedProxies(trusted)

	return func(next http.Handler) http.Handler {
		if len(proxies) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if addr := proxies.clientAddr(r); addr != "" {
				r.RemoteAddr = addr
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the request's client address without the port. Behind
// TrustedRealIP it reflects what a trusted proxy forwarded.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func hostIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
