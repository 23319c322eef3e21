package services

import (
	"errors"
	"fmt"
)

var ErrDisambiguationExhausted = errors.New("no free name within attempt limit")

// Disambiguate returns base when exists reports it free, otherwise the first
// free "base COPY(n)" for n = 1, 2, ... . exists is the only source of truth,
// so callers run it inside the transaction that will insert the name.
func Disambiguate(base string, limit int, exists func(name string) (bool, error)) (string, error) {
	taken, err := exists(base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	for n := 1; n <= limit; n++ {
		candidate := copyName(base, n)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrDisambiguationExhausted
}

func copyName(base string, n int) string {
	return fmt.Sprintf("%s COPY(%d)", base, n)
}
