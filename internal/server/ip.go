package server

import (
	"net"
	"net/http"
	"strings"
)

// clientIP reports the address netlogd attaches to an entry's
// source_ip. Unlike the teacher's ingest server — which always sits
// behind a specific ALB/CloudFront chain and so hardcodes a header
// priority list — netlogd has no fixed front door: the HTTP adapter
// in this repository is a stand-in for whatever real event bus a
// deployment wires in (spec.md §1 treats it as external), so trusting
// any forwarding header is a config decision, not a deployment
// assumption baked into the code. When trustProxy is false (the
// default), only RemoteAddr is ever consulted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := firstRoutableIP(xff); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := safeParseIP(host); routable(ip) {
		return ip.String()
	}
	return ""
}

// firstRoutableIP returns the first routable address in a
// comma-separated X-Forwarded-For value, left to right — the order a
// proxy chain appends to it, client first.
func firstRoutableIP(xff string) string {
	for _, part := range strings.Split(xff, ",") {
		if ip := safeParseIP(part); routable(ip) {
			return ip.String()
		}
	}
	return ""
}

func routable(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsLinkLocalMulticast()
}

func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}
