package directory

import "context"

// Repository is the persistence contract for destinations.
//
// List must return destinations in insertion order; FindDestinations relies
// on it for stable result ordering.
type Repository interface {
	List(ctx context.Context) ([]Destination, error)
	Get(ctx context.Context, id string) (Destination, error)
	Upsert(ctx context.Context, d Destination) error

	// SetAvailability upserts one inventory entry on an existing
	// destination. Returns ErrNotFound if the destination does not exist.
	SetAvailability(ctx context.Context, destinationID, medicationKey string, rec AvailabilityRecord) error
}
