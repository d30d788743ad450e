package collection

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
)

// FetchFunc запрашивает страницу page. Вызывающий решает, откуда и под каким
// фильтром она берётся; сам стор о фильтрах ничего не знает.
type FetchFunc[T any] func(ctx context.Context, page int) (models.Page[T], error)

// Store — потокобезопасная постраничная коллекция.
//
// Сетевой вызов делается без удержания мьютекса. Результат загрузки,
// начатой до Reset/SetFilter, отбрасывается (счётчик поколений).
type Store[T Keyed, F comparable] struct {
	name string

	mu    sync.Mutex
	state State[T, F]
	gen   uint64
}

// New создаёт пустую коллекцию. name попадает в логи.
func New[T Keyed, F comparable](name string, filter F) *Store[T, F] {
	return &Store[T, F]{name: name, state: Initial[T](filter)}
}

// Snapshot возвращает копию текущего состояния.
func (s *Store[T, F]) Snapshot() State[T, F] {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	st.Items = slices.Clone(s.state.Items)

	return st
}

// LoadNextPage загружает страницу PageIndex.
//
// Если загрузка уже идёт или HasMore == false, вызов ничего не делает и
// возвращает nil: конкурентный вызов отбрасывается, а не ставится в очередь.
// Ошибка загрузки записывается в State.Err и возвращается.
func (s *Store[T, F]) LoadNextPage(ctx context.Context, fetch FetchFunc[T]) error {
	const op = "collection.Store.LoadNextPage"

	s.mu.Lock()
	next, ok := BeginLoad(s.state)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.state = next
	gen, page := s.gen, next.PageIndex
	s.mu.Unlock()

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("collection", s.name),
		slog.Int("page", page),
	)

	res, err := fetch(ctx, page)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		lg.Debug("page_discarded_after_reset")
		return nil
	}

	if err != nil {
		s.state = LoadFailed(s.state, err)
		lg.Warn("page_load_failed", slog.String("err", err.Error()))
		return err
	}

	before := len(s.state.Items)
	s.state = PageLoaded(s.state, res)
	lg.Debug("page_loaded",
		slog.Int("received", len(res.Items)),
		slog.Int("added", len(s.state.Items)-before),
		slog.Bool("has_more", res.HasMore),
	)

	return nil
}

// Refresh перезагружает страницу 0 и заменяет ею коллекцию.
// Во время идущей загрузки игнорируется.
func (s *Store[T, F]) Refresh(ctx context.Context, fetch FetchFunc[T]) error {
	const op = "collection.Store.Refresh"

	s.mu.Lock()
	next, ok := BeginRefresh(s.state)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.state = next
	gen := s.gen
	s.mu.Unlock()

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("collection", s.name),
	)

	res, err := fetch(ctx, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		lg.Debug("refresh_discarded_after_reset")
		return nil
	}

	if err != nil {
		s.state = LoadFailed(s.state, err)
		lg.Warn("refresh_failed", slog.String("err", err.Error()))
		return err
	}

	s.state = Refreshed(s.state, res)
	lg.Debug("refreshed", slog.Int("items", len(res.Items)), slog.Bool("has_more", res.HasMore))

	return nil
}

// Reset очищает коллекцию и курсор.
func (s *Store[T, F]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reset(s.state)
	s.gen++
}

// SetFilter меняет фильтр. Тот же фильтр — no-op; другой — Reset.
// Возвращает true, если коллекция была сброшена.
func (s *Store[T, F]) SetFilter(filter F) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := WithFilter(s.state, filter)
	if !changed {
		return false
	}

	s.state = next
	s.gen++

	return true
}

// Mutate атомарно применяет fn к элементам коллекции.
// fn получает копию и возвращает новый срез и признак изменения; читатели
// видят либо старое, либо новое состояние целиком.
func (s *Store[T, F]) Mutate(fn func(items []T) ([]T, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, changed := fn(slices.Clone(s.state.Items))
	if !changed {
		return false
	}

	s.state.Items = items
	return true
}
