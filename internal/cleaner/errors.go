package cleaner

import (
	"fmt"
	"strings"

	"markettrend/server/internal/models"
)

// StructuralError means the table cannot be analyzed at all.
type StructuralError struct {
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%v: %s", models.ErrMissingRequiredFields, strings.Join(e.Missing, ", "))
}

func (e *StructuralError) Unwrap() error {
	return models.ErrMissingRequiredFields
}
