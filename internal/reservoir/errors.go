package reservoir

import (
	"errors"
	"fmt"

	"github.com/lox/floodsim/internal/policy"
)

var (
	// ErrInvalidPolicyLabel is returned when a policy selects a rule outside the closed set.
	ErrInvalidPolicyLabel = fmt.Errorf("invalid policy label: %w", policy.ErrUnknownRule)

	// ErrDataAlignment is returned by NewModel when the input series cannot be aligned.
	ErrDataAlignment = errors.New("data alignment")
)
