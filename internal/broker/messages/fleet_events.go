package messages

import "time"

// ShipmentUpdated is published on every shipment lifecycle transition and
// consumed back when a dealer-side system confirms delivery.
type ShipmentUpdated struct {
	ShipmentID uint64    `json:"shipment_id"`
	Status     string    `json:"status"`
	TruckID    *uint64   `json:"truck_id,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TripUpdated struct {
	TripID     uint64    `json:"trip_id"`
	VehicleID  uint64    `json:"vehicle_id"`
	DriverID   uint64    `json:"driver_id,omitempty"`
	Status     string    `json:"status"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
