package config

import "strings"

// Lookup - одна попытка получить значение. ok=false означает "значения нет, пробуем дальше".
type Lookup[T any] func() (value T, ok bool)

// FirstOf возвращает первое найденное значение из lookups, иначе fallback.
func FirstOf[T any](fallback T, lookups ...Lookup[T]) T {
	for _, lookup := range lookups {
		if v, ok := lookup(); ok {
			return v
		}
	}
	return fallback
}

// NonEmpty ищет ключ и пропускает пустые и пробельные значения
func NonEmpty(r Reader, key string) Lookup[string] {
	return func() (string, bool) {
		v, ok := r.Lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	}
}

// Bool ищет ключ и разбирает его как bool; нераспознанное значение считается отсутствующим
func Bool(r Reader, key string) Lookup[bool] {
	return func() (bool, bool) {
		v, ok := r.Lookup(key)
		if !ok {
			return false, false
		}
		return ParseBool(v)
	}
}

// Value - готовое значение; пустое значение типа считается отсутствующим
func Value[T comparable](v T) Lookup[T] {
	return func() (T, bool) {
		var zero T
		return v, v != zero
	}
}
