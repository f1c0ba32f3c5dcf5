package service

import (
	"fmt"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/repository"
)

// TripService handles business logic for stored trips
type TripService struct {
	trips  *repository.TripRepository
	points *repository.LocationRepository
}

// NewTripService creates a new trip service
func NewTripService(trips *repository.TripRepository, points *repository.LocationRepository) *TripService {
	return &TripService{trips: trips, points: points}
}

// GetTrips retrieves trips with filtering and pagination
func (s *TripService) GetTrips(filter models.TripFilter) ([]models.Trip, int64, error) {
	return s.trips.GetTrips(filter)
}

// GetTripByID retrieves a single trip by ID, nil when not found
func (s *TripService) GetTripByID(id string) (*models.Trip, error) {
	return s.trips.GetTripByID(id)
}

// GetTripRoute returns a trip's stored points in timestamp order
func (s *TripService) GetTripRoute(id string) ([]models.LocationPoint, error) {
	return s.points.GetLocationsByTrip(id)
}

// CorrectTrip applies a user correction to a terminal trip. Corrected trips
// go back to unsynced so the backend receives the fix on the next sync run.
func (s *TripService) CorrectTrip(id string, correction models.TripCorrection) (*models.Trip, error) {
	trip, err := s.trips.GetTripByID(id)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, nil
	}
	if !trip.IsTerminal() {
		return nil, fmt.Errorf("trip %s is still active", id)
	}

	fields := map[string]interface{}{}
	if correction.Type != nil {
		switch *correction.Type {
		case models.TripTypeWalk, models.TripTypeCycle:
		default:
			return nil, fmt.Errorf("invalid trip type: %q", *correction.Type)
		}
		fields["type"] = *correction.Type
	}
	if correction.Notes != nil {
		fields["notes"] = *correction.Notes
	}
	if correction.IsManual != nil {
		fields["is_manual"] = *correction.IsManual
	}
	if len(fields) == 0 {
		return trip, nil
	}

	if trip.SyncState == models.SyncStateSynced {
		fields["sync_state"] = models.SyncStateUnsynced
	}

	if err := s.trips.UpdateTripFields(id, fields); err != nil {
		return nil, err
	}
	return s.trips.GetTripByID(id)
}

// DeleteTrip removes a trip and its points
func (s *TripService) DeleteTrip(id string) error {
	return s.trips.DeleteTrip(id)
}
