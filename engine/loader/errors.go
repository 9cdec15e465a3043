package loader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxyview/engine/resource"
)

// ErrorKind classifies a LoadError.
type ErrorKind int

const (
	// KindDecode means the asset exists but could not be turned into a scene or image.
	KindDecode ErrorKind = iota
	// KindNotFound means the locator did not resolve to anything.
	KindNotFound
	// KindCosmetic marks a skybox or environment failure. These never affect scene state.
	KindCosmetic
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not found"
	case KindCosmetic:
		return "cosmetic"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels matched by LoadError.Is, so callers can use errors.Is(err, loader.ErrNotFound).
var (
	ErrDecode        = errors.New("decode error")
	ErrNotFound      = errors.New("not found")
	ErrCosmeticAsset = errors.New("cosmetic asset error")
)

// LoadError is the failure type of every loader entry point.
type LoadError struct {
	Kind    ErrorKind
	Locator resource.Locator
	Err     error
}

// Error implements error.
func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %s", e.Locator, e.Kind)
	}
	return fmt.Sprintf("load %s: %s: %v", e.Locator, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrCosmeticAsset:
		return e.Kind == KindCosmetic
	}
	return false
}

// Classify wraps err into a LoadError for loc. Resolution failures become KindNotFound and
// everything else KindDecode. An existing LoadError is returned unchanged; nil stays nil.
//
// Parameters:
//   - loc: the locator that failed
//   - err: the failure
//
// Returns:
//   - error: a *LoadError, or nil
func Classify(loc resource.Locator, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, resource.ErrNotFound) {
		return &LoadError{Kind: KindNotFound, Locator: loc, Err: err}
	}
	return &LoadError{Kind: KindDecode, Locator: loc, Err: err}
}

// Cosmetic wraps err as a KindCosmetic LoadError. Environment loaders use it for skybox and IBL
// failures so that callers can recognise and absorb them.
func Cosmetic(loc resource.Locator, err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Kind: KindCosmetic, Locator: loc, Err: err}
}
