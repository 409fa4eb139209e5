// Package directory searches a site directory for sites near a coordinate.
package directory

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/portion-finder/internal/domain"
)

// Directory returns sites within radiusMeters of center, nearest first.
type Directory interface {
	Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.Site, error)
}

// SearchOptions are the per-deployment filters applied to every search.
type SearchOptions struct {
	PageSize     int
	Statuses     []string
	ConceptIDs   []string
	AddressTypes []string
}

// DefaultSearchOptions mirrors the public restaurant directory defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		PageSize:     1000,
		Statuses:     []string{"OPEN", "LAB"},
		ConceptIDs:   []string{"CMG"},
		AddressTypes: []string{"MAIN"},
	}
}

// Error describes a failed directory search. StatusCode is the provider's
// HTTP status when one was received, otherwise zero.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("directory: %s: %v", e.Message, e.Err)
	}
	return "directory: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FormatAddress renders a postal address as "line1, locality, area postal".
func FormatAddress(line1, locality, area, postal string) string {
	return fmt.Sprintf("%s, %s, %s %s", line1, locality, area, postal)
}
