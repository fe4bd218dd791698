package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("directory: destination not found")
	ErrInvalidArgument = errors.New("directory: invalid argument")
)

// Service owns read and registration access to the destination directory.
// Inventory writes go through ApplyAvailability and come only from the
// call orchestrator.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// FindDestinations returns destinations matching the requested category, or
// tagged with the catch-all general category, additionally filtered by
// location. A destination without a location key matches every location
// query (permissive policy). Results keep the backing store's insertion
// order; there is no distance model.
func (s *Service) FindDestinations(ctx context.Context, locationKey, category string) ([]Destination, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = CategoryGeneral
	}

	out := make([]Destination, 0, len(all))
	for _, d := range all {
		if d.Category != category && d.Category != CategoryGeneral {
			continue
		}
		if d.LocationKey != "" && locationKey != "" && d.LocationKey != locationKey {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Destination, error) {
	if id == "" {
		return Destination{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Destination, error) {
	return s.repo.List(ctx)
}

// Register adds or updates a destination. A missing ID is generated.
func (s *Service) Register(ctx context.Context, d Destination) (Destination, error) {
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Phone) == "" {
		return Destination{}, ErrInvalidArgument
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Category == "" {
		d.Category = CategoryGeneral
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.clock().UTC()
	}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return Destination{}, err
	}
	return d, nil
}

// ApplyAvailability overwrites the inventory entry for one medication at one
// destination. Medication names are normalized to lower case so repeated
// checks for the same drug land on the same key. A missing destination is
// reported as ErrNotFound; callers in the event-processing path log it and
// move on rather than aborting the flow.
func (s *Service) ApplyAvailability(ctx context.Context, destinationID, medicationName string, rec AvailabilityRecord) error {
	if destinationID == "" || strings.TrimSpace(medicationName) == "" {
		return ErrInvalidArgument
	}
	if rec.Quantity == "" {
		rec.Quantity = "unknown"
	}
	if rec.LastChecked.IsZero() {
		rec.LastChecked = s.clock().UTC()
	}
	key := strings.ToLower(strings.TrimSpace(medicationName))
	return s.repo.SetAvailability(ctx, destinationID, key, rec)
}

// Seed loads the bundled sample directory into an empty repository.
// Destinations that already exist are left untouched.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	now := s.clock().UTC()
	for _, d := range seedDestinations {
		d.CreatedAt = now
		if err := s.repo.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// seedDestinations mirrors the sample directory shipped with the service.
var seedDestinations = []Destination{
	{
		ID:       "cvs_main_st",
		Name:     "CVS Pharmacy - Main Street",
		Phone:    "+1234567890",
		Address:  "123 Main St, Anytown, USA",
		Hours:    "8:00 AM - 10:00 PM",
		Category: CategoryGeneral,
	},
	{
		ID:       "walgreens_oak_ave",
		Name:     "Walgreens - Oak Avenue",
		Phone:    "+1234567891",
		Address:  "456 Oak Ave, Anytown, USA",
		Hours:    "7:00 AM - 11:00 PM",
		Category: CategoryGeneral,
	},
	{
		ID:       "specialty_pharmacy",
		Name:     "Specialty Care Pharmacy",
		Phone:    "+1234567892",
		Address:  "789 Medical Dr, Anytown, USA",
		Hours:    "9:00 AM - 6:00 PM",
		Category: "specialty_medications",
	},
	{
		ID:       "compounding_pharmacy",
		Name:     "Custom Compounding Pharmacy",
		Phone:    "+1234567893",
		Address:  "321 Health Blvd, Anytown, USA",
		Hours:    "8:00 AM - 8:00 PM",
		Category: "compounding",
	},
}
