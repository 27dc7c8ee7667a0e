package taskservice

import "github.com/marktoda/astrotask/internal/taskerrors"

func notFound(kind, id string) error {
	return taskerrors.NotFound(kind, id)
}
