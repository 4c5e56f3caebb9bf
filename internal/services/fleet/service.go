package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/BearBump/FleetBox/internal/broker/messages"
	"github.com/BearBump/FleetBox/internal/cache"
	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/BearBump/FleetBox/internal/services/dispatch"
	"github.com/BearBump/FleetBox/internal/services/matching"
	"github.com/BearBump/FleetBox/internal/storage/pgfleet"
)

type Repository interface {
	CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error)
	GetVehicleByID(ctx context.Context, id uint64) (*models.Vehicle, error)
	ListVehicles(ctx context.Context) ([]*models.Vehicle, error)

	CreateDriver(ctx context.Context, in models.DriverCreateInput) (*models.Driver, error)
	GetDriverByID(ctx context.Context, id uint64) (*models.Driver, error)
	ListDrivers(ctx context.Context) ([]*models.Driver, error)

	CreateTruck(ctx context.Context, in models.TruckCreateInput) (*models.Truck, error)
	GetTruckByID(ctx context.Context, id uint64) (*models.Truck, error)
	ListAvailableTrucks(ctx context.Context) ([]*models.Truck, error)

	CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	ListWarehouseShipments(ctx context.Context, warehouseID string) ([]*models.Shipment, error)
	ListDealerJobs(ctx context.Context, dealerID string) ([]*models.Shipment, error)
	BookShipment(ctx context.Context, shipmentID, truckID uint64) (*models.Shipment, error)
	DeliverShipment(ctx context.Context, shipmentID, truckID uint64, m pgfleet.DeliveryMetrics) (*models.Shipment, error)

	GetTripByID(ctx context.Context, id uint64) (*models.Trip, error)
	ListTrips(ctx context.Context) ([]*models.Trip, error)
	DispatchTrip(ctx context.Context, vehicleID, driverID uint64, cargoWeight float64) (*models.Trip, error)
	CompleteTrip(ctx context.Context, upd pgfleet.TripCompletion) (*models.Trip, error)

	OpenMaintenance(ctx context.Context, vehicleID uint64, description string, cost float64) (*models.MaintenanceLog, error)
	ListMaintenance(ctx context.Context) ([]*models.MaintenanceLog, error)
	ReleaseMaintenance(ctx context.Context, vehicleID uint64) (*models.Vehicle, error)

	CreateExpense(ctx context.Context, in models.ExpenseCreateInput) (*models.Expense, error)
	ListExpenses(ctx context.Context) ([]*models.Expense, error)

	VehicleAnalytics(ctx context.Context) ([]*models.VehicleAnalytics, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Delivery economics. Market rate is what a spot-hired truck would cost
// relative to the platform rate; emissions use the standard diesel factor.
const (
	marketRateFactor = 1.3
	co2PerLiter      = 2.68
	co2SavedShare    = 0.2

	defaultFuelEfficiency = 4.0
)

type Settings struct {
	// CurrentTTL <= 0 or a nil cache disables vehicle state caching.
	CurrentTTL time.Duration

	// RouteDistanceKm <= 0 falls back to the matching default.
	RouteDistanceKm float64

	EventsTopic string
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	producer Publisher
	st       Settings
}

func New(repo Repository, c cache.BytesCache, pub Publisher, st Settings) *Service {
	if st.RouteDistanceKm <= 0 {
		st.RouteDistanceKm = matching.DefaultRouteDistanceKm
	}
	return &Service{repo: repo, cache: c, producer: pub, st: st}
}

func (s *Service) CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	if in.Name == "" {
		return nil, faults.BadInput("name is required")
	}
	if in.LicensePlate == "" {
		return nil, faults.BadInput("licensePlate is required")
	}
	if in.MaxLoadCapacity <= 0 {
		return nil, faults.BadInput("maxLoadCapacity must be positive")
	}
	if in.Odometer < 0 {
		return nil, faults.BadInput("odometer cannot be negative")
	}
	return s.repo.CreateVehicle(ctx, in)
}

// GetVehicle reads through the best-effort cache: any cache problem is a
// miss, never an error.
func (s *Service) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, vehicleKey(id)); err == nil && ok {
			var v models.Vehicle
			if json.Unmarshal(b, &v) == nil {
				return &v, nil
			}
		}
	}

	v, err := s.repo.GetVehicleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled() {
		b, _ := json.Marshal(v)
		_ = s.cache.Set(ctx, vehicleKey(id), b, s.st.CurrentTTL)
	}
	return v, nil
}

func (s *Service) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	return s.repo.ListVehicles(ctx)
}

func (s *Service) CreateDriver(ctx context.Context, in models.DriverCreateInput) (*models.Driver, error) {
	if in.Name == "" {
		return nil, faults.BadInput("name is required")
	}
	if in.LicenseExpiry.IsZero() {
		return nil, faults.BadInput("licenseExpiry is required")
	}
	return s.repo.CreateDriver(ctx, in)
}

func (s *Service) ListDrivers(ctx context.Context) ([]*models.Driver, error) {
	return s.repo.ListDrivers(ctx)
}

func (s *Service) CreateTruck(ctx context.Context, in models.TruckCreateInput) (*models.Truck, error) {
	if in.DealerID == "" {
		return nil, faults.BadInput("dealerId is required")
	}
	if in.LicensePlate == "" {
		return nil, faults.BadInput("licensePlate is required")
	}
	if in.CapacityWeight <= 0 || in.CapacityVolume <= 0 {
		return nil, faults.BadInput("capacityWeight and capacityVolume must be positive")
	}
	if in.CostPerKm <= 0 {
		return nil, faults.BadInput("costPerKm must be positive")
	}
	return s.repo.CreateTruck(ctx, in)
}

func (s *Service) ListAvailableTrucks(ctx context.Context) ([]*models.Truck, error) {
	return s.repo.ListAvailableTrucks(ctx)
}

// CreateShipment books nothing: it records the shipment and returns the
// ranked candidates so the warehouse can choose.
func (s *Service) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, []matching.RankedTruck, error) {
	if in.WarehouseID == "" {
		return nil, nil, faults.BadInput("warehouseId is required")
	}
	if in.Origin == "" || in.Destination == "" {
		return nil, nil, faults.BadInput("origin and destination are required")
	}
	if in.TotalWeight <= 0 || in.TotalVolume <= 0 {
		return nil, nil, faults.BadInput("totalWeight and totalVolume must be positive")
	}

	sh, err := s.repo.CreateShipment(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	ranked, err := s.rankForShipment(ctx, sh)
	if err != nil {
		return nil, nil, err
	}
	return sh, ranked, nil
}

// MatchTrucks re-ranks the current truck pool for a still-PENDING shipment.
func (s *Service) MatchTrucks(ctx context.Context, shipmentID uint64) ([]matching.RankedTruck, error) {
	sh, err := s.repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.Status != models.ShipmentStatusPending {
		return nil, faults.Conflict(faults.RuleTerminalState,
			"shipment %d is %s, matching applies to PENDING shipments", sh.ID, sh.Status)
	}
	return s.rankForShipment(ctx, sh)
}

func (s *Service) rankForShipment(ctx context.Context, sh *models.Shipment) ([]matching.RankedTruck, error) {
	pool, err := s.repo.ListAvailableTrucks(ctx)
	if err != nil {
		return nil, err
	}
	size := matching.ShipmentSize{TotalWeight: sh.TotalWeight, TotalVolume: sh.TotalVolume}
	return matching.RankTrucks(size, pool, s.st.RouteDistanceKm), nil
}

func (s *Service) GetShipment(ctx context.Context, id uint64) (*models.Shipment, error) {
	return s.repo.GetShipmentByID(ctx, id)
}

func (s *Service) ListWarehouseShipments(ctx context.Context, warehouseID string) ([]*models.Shipment, error) {
	if warehouseID == "" {
		return nil, faults.BadInput("warehouseId is required")
	}
	return s.repo.ListWarehouseShipments(ctx, warehouseID)
}

func (s *Service) ListDealerJobs(ctx context.Context, dealerID string) ([]*models.Shipment, error) {
	if dealerID == "" {
		return nil, faults.BadInput("dealerId is required")
	}
	return s.repo.ListDealerJobs(ctx, dealerID)
}

// BookShipment validates against fresh reads, then lets the storage CAS
// settle any race that slipped in between.
func (s *Service) BookShipment(ctx context.Context, shipmentID, truckID uint64, actor string) (*models.Shipment, error) {
	sh, err := s.repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	truck, err := s.repo.GetTruckByID(ctx, truckID)
	if err != nil {
		return nil, err
	}
	if err := dispatch.ValidateShipmentBooking(sh, truck); err != nil {
		return nil, err
	}

	booked, err := s.repo.BookShipment(ctx, shipmentID, truckID)
	if err != nil {
		return nil, err
	}

	s.publishShipment(ctx, booked, actor)
	return booked, nil
}

// DeliverShipment closes the shipment and settles its economics: actual
// cost at the platform rate, savings against the spot market rate, and
// the CO2 the consolidated haul avoided.
func (s *Service) DeliverShipment(ctx context.Context, shipmentID uint64, actor string) (*models.Shipment, error) {
	sh, err := s.repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.AssignedTruckID == nil {
		return nil, faults.Validation(faults.RuleShipmentNotBooked,
			"shipment %d has no assigned truck", shipmentID)
	}
	truck, err := s.repo.GetTruckByID(ctx, *sh.AssignedTruckID)
	if err != nil {
		return nil, err
	}

	distance := s.st.RouteDistanceKm
	actualCost := distance * truck.CostPerKm
	marketCost := marketRateFactor * actualCost

	fe := truck.FuelEfficiency
	if fe <= 0 {
		fe = defaultFuelEfficiency
	}
	fuelUsed := distance / fe
	co2Emitted := co2PerLiter * fuelUsed

	delivered, err := s.repo.DeliverShipment(ctx, shipmentID, truck.ID, pgfleet.DeliveryMetrics{
		EstimatedCost: actualCost,
		Savings:       marketCost - actualCost,
		CO2Saved:      round2(co2SavedShare * co2Emitted),
		DeliveredAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.publishShipment(ctx, delivered, actor)
	return delivered, nil
}

// DispatchTrip runs the rule chain on fresh reads and leaves the final
// word to the storage CAS, so a vehicle taken between read and write
// surfaces as a state conflict rather than a double dispatch.
func (s *Service) DispatchTrip(ctx context.Context, vehicleID, driverID uint64, cargoWeight float64, actor string) (*models.Trip, error) {
	if cargoWeight <= 0 {
		return nil, faults.BadInput("cargoWeight must be positive")
	}

	vehicle, err := s.repo.GetVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	driver, err := s.repo.GetDriverByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if err := dispatch.ValidateTripAssignment(vehicle, driver, cargoWeight, time.Now().UTC()); err != nil {
		return nil, err
	}

	trip, err := s.repo.DispatchTrip(ctx, vehicleID, driverID, cargoWeight)
	if err != nil {
		return nil, err
	}

	s.dropVehicleKey(ctx, vehicleID)
	s.publishTrip(ctx, trip, actor)
	return trip, nil
}

func (s *Service) GetTrip(ctx context.Context, id uint64) (*models.Trip, error) {
	return s.repo.GetTripByID(ctx, id)
}

func (s *Service) ListTrips(ctx context.Context) ([]*models.Trip, error) {
	return s.repo.ListTrips(ctx)
}

type CompleteTripInput struct {
	TripID        uint64
	FinalOdometer float64
	FuelLiters    float64
	FuelCost      float64
}

func (s *Service) CompleteTrip(ctx context.Context, in CompleteTripInput, actor string) (*models.Trip, error) {
	if in.FuelLiters < 0 || in.FuelCost < 0 {
		return nil, faults.BadInput("fuel liters and cost cannot be negative")
	}

	trip, err := s.repo.GetTripByID(ctx, in.TripID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.repo.GetVehicleByID(ctx, trip.VehicleID)
	if err != nil {
		return nil, err
	}
	if err := dispatch.ValidateTripCompletion(trip, vehicle, in.FinalOdometer); err != nil {
		return nil, err
	}

	done, err := s.repo.CompleteTrip(ctx, pgfleet.TripCompletion{
		TripID:        in.TripID,
		VehicleID:     trip.VehicleID,
		FinalOdometer: in.FinalOdometer,
		CompletedAt:   time.Now().UTC(),
		FuelLiters:    in.FuelLiters,
		FuelCost:      in.FuelCost,
	})
	if err != nil {
		return nil, err
	}

	s.dropVehicleKey(ctx, trip.VehicleID)
	s.publishTrip(ctx, done, actor)
	return done, nil
}

func (s *Service) OpenMaintenance(ctx context.Context, vehicleID uint64, description string, cost float64) (*models.MaintenanceLog, error) {
	if description == "" {
		return nil, faults.BadInput("description is required")
	}
	if cost < 0 {
		return nil, faults.BadInput("cost cannot be negative")
	}

	m, err := s.repo.OpenMaintenance(ctx, vehicleID, description, cost)
	if err != nil {
		return nil, err
	}
	s.dropVehicleKey(ctx, vehicleID)
	return m, nil
}

func (s *Service) ListMaintenance(ctx context.Context) ([]*models.MaintenanceLog, error) {
	return s.repo.ListMaintenance(ctx)
}

func (s *Service) ReleaseMaintenance(ctx context.Context, vehicleID uint64) (*models.Vehicle, error) {
	v, err := s.repo.ReleaseMaintenance(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	s.dropVehicleKey(ctx, vehicleID)
	return v, nil
}

// CreateExpense records an operating cost against a vehicle. An omitted
// date means the expense is booked now.
func (s *Service) CreateExpense(ctx context.Context, in models.ExpenseCreateInput) (*models.Expense, error) {
	if in.VehicleID == 0 {
		return nil, faults.BadInput("vehicleId is required")
	}
	if !models.ValidExpenseCategory(in.Category) {
		return nil, faults.BadInput("unknown expense category: " + in.Category)
	}
	if in.Amount <= 0 {
		return nil, faults.BadInput("amount must be positive")
	}
	if _, err := s.repo.GetVehicleByID(ctx, in.VehicleID); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}
	return s.repo.CreateExpense(ctx, in)
}

func (s *Service) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) VehicleAnalytics(ctx context.Context) ([]*models.VehicleAnalytics, error) {
	return s.repo.VehicleAnalytics(ctx)
}

// ApplyShipmentEvent is the consume path: a dealer-side system confirms
// delivery over the broker. Replays of an already-delivered shipment are
// acknowledged, not failed, so the consumer can commit and move on.
func (s *Service) ApplyShipmentEvent(ctx context.Context, msg messages.ShipmentUpdated) error {
	if msg.ShipmentID == 0 {
		return faults.BadInput("shipment_id is required")
	}
	if msg.Status != models.ShipmentStatusDelivered {
		return nil
	}

	_, err := s.DeliverShipment(ctx, msg.ShipmentID, msg.Actor)
	if faults.IsStateConflict(err) {
		return nil
	}
	return err
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.st.CurrentTTL > 0
}

func (s *Service) dropVehicleKey(ctx context.Context, id uint64) {
	if s.cacheEnabled() {
		_ = s.cache.Del(ctx, vehicleKey(id))
	}
}

// Events are best-effort: the transition is already committed, a broker
// hiccup must not fail the request.
func (s *Service) publishShipment(ctx context.Context, sh *models.Shipment, actor string) {
	if s.producer == nil || s.st.EventsTopic == "" {
		return
	}
	b, _ := json.Marshal(messages.ShipmentUpdated{
		ShipmentID: sh.ID,
		Status:     sh.Status,
		TruckID:    sh.AssignedTruckID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
	_ = s.producer.Publish(ctx, s.st.EventsTopic, []byte("shipment:"+strconv.FormatUint(sh.ID, 10)), b)
}

func (s *Service) publishTrip(ctx context.Context, t *models.Trip, actor string) {
	if s.producer == nil || s.st.EventsTopic == "" {
		return
	}
	b, _ := json.Marshal(messages.TripUpdated{
		TripID:     t.ID,
		VehicleID:  t.VehicleID,
		DriverID:   t.DriverID,
		Status:     t.Status,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
	_ = s.producer.Publish(ctx, s.st.EventsTopic, []byte("trip:"+strconv.FormatUint(t.ID, 10)), b)
}

func vehicleKey(id uint64) string {
	return fmt.Sprintf("vehicle:%d:current", id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
