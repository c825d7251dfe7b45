package validation

import (
	"fmt"
	"strings"

	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/pkg/models"
)

// RangeValidator checks lookup requests before any session is opened
type RangeValidator struct {
	maxPlates int
}

// NewRangeValidator caps the number of plates per request, 0 means unlimited
func NewRangeValidator(maxPlates int) *RangeValidator {
	return &RangeValidator{maxPlates: maxPlates}
}

// Validate parses the canton and expands start..end into plate numbers. An
// end of 0 queries start alone.
func (v *RangeValidator) Validate(canton string, start, end, workers int) (models.Canton, []int, error) {
	c, err := models.ParseCanton(strings.ToUpper(strings.TrimSpace(canton)))
	if err != nil {
		return "", nil, apperrors.NewValidationError("unsupported canton", err)
	}
	if !models.ValidPlate(start) {
		return "", nil, apperrors.NewValidationError(fmt.Sprintf("start must be in range [%d,%d]", models.MinPlate, models.MaxPlate), nil)
	}
	if end != 0 && !models.ValidPlate(end) {
		return "", nil, apperrors.NewValidationError(fmt.Sprintf("end must be in range [%d,%d]", models.MinPlate, models.MaxPlate), nil)
	}
	if workers < 1 {
		return "", nil, apperrors.NewValidationError("number of workers must be > 0", nil)
	}
	if end != 0 && end < start {
		return "", nil, apperrors.NewValidationError("start must be <= end", nil)
	}
	if end == 0 {
		end = start
	}
	if v.maxPlates > 0 && end-start+1 > v.maxPlates {
		return "", nil, apperrors.NewValidationError(fmt.Sprintf("at most %d plates per request", v.maxPlates), nil)
	}

	plates := make([]int, 0, end-start+1)
	for plate := start; plate <= end; plate++ {
		plates = append(plates, plate)
	}
	return c, plates, nil
}
