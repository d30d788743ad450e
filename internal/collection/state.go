// collection — обобщённый стор постраничной коллекции с дедупликацией.
//
// Переходы состояния — чистые функции над State; Store применяет их под
// мьютексом и отдаёт наружу только копии (Snapshot).
package collection

import "github.com/pribylovaa/campus-sync/internal/models"

// Keyed — элемент коллекции со стабильным уникальным идентификатором.
type Keyed interface {
	Key() string
}

// State — наблюдаемое состояние коллекции.
//
// Инварианты:
//   - ключи Items уникальны;
//   - PageIndex — номер следующей запрашиваемой страницы (>= 0);
//   - HasMore == false терминально до Reset/SetFilter/Refresh.
type State[T Keyed, F comparable] struct {
	Items     []T
	PageIndex int
	HasMore   bool
	Loading   bool
	Err       error
	Filter    F
}

// Initial — состояние пустой коллекции под фильтром filter.
func Initial[T Keyed, F comparable](filter F) State[T, F] {
	return State[T, F]{Items: []T{}, HasMore: true, Filter: filter}
}

// BeginLoad отмечает начало загрузки следующей страницы.
// ok == false: загрузка уже идёт или страниц больше нет.
func BeginLoad[T Keyed, F comparable](s State[T, F]) (State[T, F], bool) {
	if s.Loading || !s.HasMore {
		return s, false
	}

	s.Loading = true
	return s, true
}

// PageLoaded добавляет в конец только новые по ключу элементы и сдвигает курсор.
func PageLoaded[T Keyed, F comparable](s State[T, F], page models.Page[T]) State[T, F] {
	s.Items = appendUnique(s.Items, page.Items)
	s.PageIndex++
	s.HasMore = page.HasMore
	s.Loading = false
	s.Err = nil

	return s
}

// LoadFailed фиксирует ошибку; курсор и элементы не меняются.
func LoadFailed[T Keyed, F comparable](s State[T, F], err error) State[T, F] {
	s.Loading = false
	s.Err = err

	return s
}

// BeginRefresh отмечает начало принудительной перезагрузки страницы 0.
// ok == false: загрузка уже идёт.
func BeginRefresh[T Keyed, F comparable](s State[T, F]) (State[T, F], bool) {
	if s.Loading {
		return s, false
	}

	s.Loading = true
	return s, true
}

// Refreshed заменяет коллекцию страницей 0; следующая страница — 1.
func Refreshed[T Keyed, F comparable](s State[T, F], page models.Page[T]) State[T, F] {
	s.Items = appendUnique(make([]T, 0, len(page.Items)), page.Items)
	s.PageIndex = 1
	s.HasMore = page.HasMore
	s.Loading = false
	s.Err = nil

	return s
}

// Reset возвращает коллекцию в начальное состояние, сохраняя фильтр.
func Reset[T Keyed, F comparable](s State[T, F]) State[T, F] {
	return Initial[T](s.Filter)
}

// WithFilter сбрасывает коллекцию при смене фильтра.
// changed == false: фильтр тот же, состояние не тронуто.
func WithFilter[T Keyed, F comparable](s State[T, F], filter F) (State[T, F], bool) {
	if s.Filter == filter {
		return s, false
	}

	return Initial[T](filter), true
}

// appendUnique возвращает новый срез: dst плюс элементы src, чьих ключей ещё нет.
// Дубликаты внутри src тоже отбрасываются; первое вхождение побеждает.
func appendUnique[T Keyed](dst, src []T) []T {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, it := range dst {
		seen[it.Key()] = struct{}{}
	}

	out := make([]T, len(dst), len(dst)+len(src))
	copy(out, dst)

	for _, it := range src {
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}

	return out
}
