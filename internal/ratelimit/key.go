package ratelimit

import (
	"net"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/auth"
)

// KeyFunc derives the budget key of a request.
type KeyFunc func(c *fiber.Ctx) string

// IPKey keys requests by client address. IPv6 clients are grouped by their
// /56 prefix since a single host usually controls the whole block.
func IPKey(trustProxy bool) KeyFunc {
	return func(c *fiber.Ctx) string {
		ip := c.IP()
		if trustProxy {
			if ips := c.IPs(); len(ips) > 0 && strings.TrimSpace(ips[0]) != "" {
				ip = strings.TrimSpace(ips[0])
			}
		}
		return NormalizeIP(ip)
	}
}

// UserOrIPKey keys authenticated requests by user id and falls back to IPKey.
func UserOrIPKey(trustProxy bool) KeyFunc {
	byIP := IPKey(trustProxy)
	return func(c *fiber.Ctx) string {
		if principal, ok := auth.PrincipalFromContext(c); ok {
			return "uid:" + strconv.FormatInt(principal.UserID, 10)
		}
		return byIP(c)
	}
}

// NormalizeIP returns IPv4 addresses unchanged and IPv6 addresses as their /56 network.
func NormalizeIP(raw string) string {
	ip := net.ParseIP(raw)
	if ip == nil {
		if raw == "" {
			return "unknown"
		}
		return raw
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.Mask(net.CIDRMask(56, 128)).String() + "/56"
}
