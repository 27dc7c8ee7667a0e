package tasktypes

import "fmt"

// ValidateTitle enforces the title length bounds.
func ValidateTitle(title string) error {
	n := len(title)
	if n < MinTitleLen {
		return fmt.Errorf("title is required")
	}
	if n > MaxTitleLen {
		return fmt.Errorf("title must be %d characters or less", MaxTitleLen)
	}
	return nil
}

// ValidateDescription enforces the description length bound.
func ValidateDescription(desc string) error {
	if len(desc) > MaxDescriptionLen {
		return fmt.Errorf("description must be %d characters or less", MaxDescriptionLen)
	}
	return nil
}

// ClampPriorityScore clamps score into [0, 100].
func ClampPriorityScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// ValidatePriorityScore rejects a score outside [0, 100] without clamping;
// used at input boundaries where an out-of-range score should be an error
// rather than silently normalized.
func ValidatePriorityScore(score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("priority_score must be between 0 and 100")
	}
	return nil
}

// ValidateTask runs the full set of field-level invariants on a task,
// independent of any graph or tree context.
func ValidateTask(t *Task) error {
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if err := ValidateDescription(t.Description); err != nil {
		return err
	}
	if err := ValidatePriorityScore(t.PriorityScore); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %q", t.Status)
	}
	return nil
}

// ValidateDependencyPair rejects a self-dependency; existence of both
// endpoints is checked against store/graph state by the caller.
func ValidateDependencyPair(dependentID, dependencyID string) error {
	if dependentID == dependencyID {
		return fmt.Errorf("self-dependency is not allowed: %s", dependentID)
	}
	if dependentID == "" || dependencyID == "" {
		return fmt.Errorf("dependency endpoints must be non-empty")
	}
	return nil
}
