// models содержит доменные сущности клиентского слоя синхронизации.
// Эти типы используются стором токенов, сторами сессии/коллекций и репозиториями.
package models

import "strings"

// TokenPair — пара учётных данных текущей сессии.
//
// Описание:
//   - AccessToken — короткоживущий bearer-токен для авторизации запросов;
//   - RefreshToken — секрет для выпуска новой пары через /auth/refresh-token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Complete сообщает, что оба токена заданы.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// User — минимальная идентичность аутентифицированного пользователя.
type User struct {
	Email    string
	Username string
}

// NewUser строит идентичность из e-mail: имя берётся из локальной части
// адреса, пока более богатый профиль не загружен.
func NewUser(email string) User {
	email = strings.TrimSpace(email)
	username := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		username = email[:i]
	}

	return User{Email: email, Username: username}
}
