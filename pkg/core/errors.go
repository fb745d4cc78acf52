package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the engine tallies.
var (
	ErrUnknownResidue        = errors.New("unknown residue")
	ErrUnknownMonosaccharide = errors.New("unknown monosaccharide")
	ErrDecoyCollision        = errors.New("decoy collides with a target candidate")
	ErrConfiguration         = errors.New("configuration error")
	ErrInvalidSpectrum       = errors.New("invalid spectrum")
)

// UnknownResidueError reports an amino acid symbol with no mass entry.
type UnknownResidueError struct {
	Symbol   rune
	Sequence string
}

func (e *UnknownResidueError) Error() string {
	return fmt.Sprintf("unknown residue '%c' in sequence %s", e.Symbol, e.Sequence)
}

func (e *UnknownResidueError) Is(target error) bool { return target == ErrUnknownResidue }

// UnknownMonosaccharideError reports a glycan composition key with no mass entry.
type UnknownMonosaccharideError struct {
	Name string
}

func (e *UnknownMonosaccharideError) Error() string {
	return fmt.Sprintf("unknown monosaccharide %q", e.Name)
}

func (e *UnknownMonosaccharideError) Is(target error) bool { return target == ErrUnknownMonosaccharide }

// DecoyCollisionError reports a target for which no collision-free decoy
// was found within the retry budget.
type DecoyCollisionError struct {
	TargetID int
	Attempts int
}

func (e *DecoyCollisionError) Error() string {
	return fmt.Sprintf("no collision-free decoy for candidate %d after %d attempts", e.TargetID, e.Attempts)
}

func (e *DecoyCollisionError) Is(target error) bool { return target == ErrDecoyCollision }

// ConfigurationError represents a missing or contradictory run setting.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSpectrum }
