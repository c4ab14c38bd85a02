package gateway

import (
	"fmt"

	"github.com/pribylovaa/flexibill/internal/retry"
)

// DependencyError — вызов зависимости завершился ошибкой.
// Transient=true — временная недоступность (повторы исчерпаны),
// false — постоянная (бизнес-) ошибка зависимости.
type DependencyError struct {
	Dependency string
	Transient  bool
	Err        error
}

func (e *DependencyError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("gateway: %s %s error: %v", e.Dependency, kind, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// classifyTransient применяет классификатор политики, если он задан.
func classifyTransient(p retry.Policy, err error) bool {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return retry.IsTransient(err)
}
