// Package dispatch holds the hard business rules that guard trip dispatch
// and shipment booking. The functions are pure: the caller fetches current
// records, we only judge them. First failing rule wins.
package dispatch

import (
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
)

// ValidateTripAssignment checks a proposed (vehicle, driver, cargo) triple.
// Rule order: existence, capacity, license compliance.
func ValidateTripAssignment(vehicle *models.Vehicle, driver *models.Driver, cargoWeight float64, now time.Time) error {
	if vehicle == nil {
		return faults.NotFound("vehicle")
	}
	if driver == nil {
		return faults.NotFound("driver")
	}

	if cargoWeight > vehicle.MaxLoadCapacity {
		return faults.Validation(faults.RuleCapacity,
			"Cargo (%gkg) exceeds vehicle capacity (%gkg)", cargoWeight, vehicle.MaxLoadCapacity)
	}

	// Expiry is compared against the instant, not the calendar day: a
	// license is invalid from the moment it passes.
	if driver.LicenseExpiry.Before(now) {
		return faults.Validation(faults.RuleLicenseExpired,
			"Driver's license expired %s. Assignment blocked.", driver.LicenseExpiry.Format("2006-01-02"))
	}

	return nil
}

// ValidateShipmentBooking re-checks availability server-side instead of
// trusting the candidate list the client picked from.
func ValidateShipmentBooking(shipment *models.Shipment, truck *models.Truck) error {
	if shipment == nil {
		return faults.NotFound("shipment")
	}
	if truck == nil {
		return faults.NotFound("truck")
	}

	if shipment.Status != models.ShipmentStatusPending {
		return faults.Conflict(faults.RuleTerminalState,
			"shipment %d is %s, only PENDING shipments can be booked", shipment.ID, shipment.Status)
	}

	if !truck.IsAvailable {
		return faults.Validation(faults.RuleTruckUnavailable,
			"truck %d is already assigned to another shipment", truck.ID)
	}

	return nil
}

// ValidateTripCompletion guards odometer monotonicity and terminal state.
func ValidateTripCompletion(trip *models.Trip, vehicle *models.Vehicle, finalOdometer float64) error {
	if trip == nil {
		return faults.NotFound("trip")
	}
	if vehicle == nil {
		return faults.NotFound("vehicle")
	}

	if trip.Status == models.TripStatusCompleted {
		return faults.Conflict(faults.RuleTerminalState, "trip %d is already COMPLETED", trip.ID)
	}

	if finalOdometer < vehicle.Odometer {
		return faults.Validation(faults.RuleOdometer,
			"final odometer (%gkm) is below the recorded odometer (%gkm)", finalOdometer, vehicle.Odometer)
	}

	return nil
}
