package directory

import "time"

// Destination is a callable pharmacy location.
//
// Invariants:
// - ID is immutable once registered.
// - Inventory is mutated only by the call orchestrator after a successful
//   classification; entries are overwritten wholesale, no history is kept.
type Destination struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Phone   string `json:"phone" db:"phone"`
	Address string `json:"address" db:"address"`
	Hours   string `json:"hours" db:"hours"`

	// Category groups destinations by what they can dispense,
	// e.g. general, specialty_medications, compounding.
	Category string `json:"category" db:"category"`

	// LocationKey is a coarse location tag (zip code). Empty means the
	// destination matches every location query.
	LocationKey string `json:"location_key,omitempty" db:"location_key"`

	// Inventory maps a lowercased medication name to its last known
	// availability.
	Inventory map[string]AvailabilityRecord `json:"inventory,omitempty" db:"inventory"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AvailabilityRecord is the last availability answer heard for one
// (destination, medication) pair.
type AvailabilityRecord struct {
	Available   bool      `json:"available"`
	Quantity    string    `json:"quantity"`
	Price       *float64  `json:"price,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// CategoryGeneral is the catch-all category: general destinations match any
// category query.
const CategoryGeneral = "general"
