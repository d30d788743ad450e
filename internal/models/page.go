package models

// Page — одна страница коллекции, как её вернул сервер.
type Page[T any] struct {
	Items   []T
	HasMore bool
}
