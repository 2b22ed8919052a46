// Package util: helpers chicos sin dependencia de dominio.
package util

import "strings"

// MaskIdentifier oculta un identificador de login para logs.
// email: u…@e….com · phone: últimos 2 dígitos · resto: primer y último char.
func MaskIdentifier(typ, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	switch typ {
	case "email":
		return maskEmail(v)
	case "phone":
		if len(v) <= 2 {
			return "**"
		}
		return strings.Repeat("*", len(v)-2) + v[len(v)-2:]
	default:
		if len(v) <= 3 {
			return "***"
		}
		return v[:1] + "…" + v[len(v)-1:]
	}
}

func maskEmail(s string) string {
	s = strings.ToLower(s)
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		return MaskIdentifier("", s)
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	parts := strings.Split(dom, ".")
	if len(parts[0]) > 1 {
		parts[0] = parts[0][:1] + "…"
	}
	return user + "@" + strings.Join(parts, ".")
}
