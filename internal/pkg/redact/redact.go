// redact маскирует секреты перед записью в логи.
package redact

import "net/url"

const hashPrefixLen = 8

// Token — литерал вместо значения refresh/access токена.
func Token() string { return "[REDACTED_TOKEN]" }

// Hash оставляет короткий префикс хэша токена: его достаточно,
// чтобы сопоставить записи в логах, но нельзя использовать для поиска в БД.
func Hash(h string) string {
	if len(h) <= hashPrefixLen {
		return "***"
	}

	return h[:hashPrefixLen] + "***"
}

// DSN убирает пароль из URL подключения (postgres://, redis://, mongodb://).
// Невалидный URL целиком заменяется на "***".
func DSN(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxx")
		}
	}

	return u.String()
}
