// service содержит сторы клиентского слоя: сессию, ленты событий, список
// чатов и профиль пользователя.
//
// Основные аспекты:
//   - каждый стор хранит своё состояние под мьютексом и отдаёт наружу
//     только копии (Snapshot); прямой мутации полей нет;
//   - сетевые вызовы и обращения к защищённому хранилищу выполняются
//     без удержания мьютекса состояния;
//   - операции сторов тотальны: ошибка записывается в поле Err снимка
//     и возвращается вызывающему, Loading никогда не остаётся true.
package service

import (
	"context"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
)

// TokenStore — то, что сессии нужно от стора учётных данных.
type TokenStore interface {
	Load(ctx context.Context) (models.TokenPair, error)
	RefreshToken(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, pair models.TokenPair, email string) error
	Identity(ctx context.Context) (models.User, bool, error)
	Clear(ctx context.Context) error
}

//go:generate mockgen -destination=../../mocks/refresher.go -package=mocks github.com/pribylovaa/campus-sync/internal/service Refresher

// Refresher — общий single-flight refresh исполнителя запросов.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Expirer реагирует на ErrAuthExpired, пойманный любым стором.
// Реализуется Session: локальная очистка без удалённого logout.
type Expirer interface {
	Expire(ctx context.Context)
}

// checkExpired передаёт терминальную ошибку сессии в Expirer.
func checkExpired(ctx context.Context, ex Expirer, err error) {
	if ex != nil && apperrors.IsAuthExpired(err) {
		ex.Expire(ctx)
	}
}
