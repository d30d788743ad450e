// redact маскирует чувствительные данные перед записью в логи:
// e-mail пользователя, access/refresh токены, одноразовые коды входа.
package redact

import "strings"

// Email маскирует e-mail для логирования.
//
// Правила:
//   - строка должна содержать ровно один '@', иначе возвращается "***";
//   - локальная часть заменяется на первые два символа (по рунам) + "***";
//   - если локальная часть не длиннее двух символов, возвращается "***@<domain>".
//
// Примеры:
//
//	"foobar@example.com" -> "fo***@example.com"
//	"ab@ex.com"          -> "***@ex.com"
//	"no-at"              -> "***"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	lr := []rune(local)
	if len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return "[REDACTED_TOKEN]" }

// TokenTail оставляет последние 4 символа токена, чтобы в логах можно было
// отличить «старый» токен от «нового» при ротации.
func TokenTail(tok string) string {
	if len(tok) <= 8 {
		return Token()
	}

	return "***" + tok[len(tok)-4:]
}

// Code возвращает литерал-заглушку для одноразового кода подтверждения.
func Code() string { return "[REDACTED_CODE]" }
