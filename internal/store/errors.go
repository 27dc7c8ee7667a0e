package store

import (
	"fmt"

	"github.com/marktoda/astrotask/internal/taskerrors"
)

// NotFoundTask and NotFoundDependency build the taskerrors.NotFoundError
// variants store implementations return, keeping the "kind" string
// (dependency endpoint vs task) consistent across implementations.
func NotFoundTask(id string) error {
	return taskerrors.NotFound("task", id)
}

func NotFoundDependency(dependentID, dependencyID string) error {
	return taskerrors.NotFound("dependency", fmt.Sprintf("%s->%s", dependentID, dependencyID))
}
