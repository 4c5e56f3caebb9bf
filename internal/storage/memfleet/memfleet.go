// Package memfleet is a mutex-guarded in-memory fleet store with the same
// transition semantics as the postgres storage. It backs handler tests and
// local runs without a database.
package memfleet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/BearBump/FleetBox/internal/storage/pgfleet"
)

type Storage struct {
	mu sync.Mutex

	vehicles    map[uint64]*models.Vehicle
	drivers     map[uint64]*models.Driver
	trips       map[uint64]*models.Trip
	trucks      map[uint64]*models.Truck
	shipments   map[uint64]*models.Shipment
	maintenance map[uint64]*models.MaintenanceLog
	fuel        []*models.FuelLog
	expenses    []*models.Expense

	nextID uint64
}

func New() *Storage {
	return &Storage{
		vehicles:    map[uint64]*models.Vehicle{},
		drivers:     map[uint64]*models.Driver{},
		trips:       map[uint64]*models.Trip{},
		trucks:      map[uint64]*models.Truck{},
		shipments:   map[uint64]*models.Shipment{},
		maintenance: map[uint64]*models.MaintenanceLog{},
	}
}

func (s *Storage) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *Storage) CreateVehicle(_ context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	v := &models.Vehicle{
		ID:              s.id(),
		Name:            in.Name,
		LicensePlate:    in.LicensePlate,
		MaxLoadCapacity: in.MaxLoadCapacity,
		Odometer:        in.Odometer,
		Status:          models.VehicleStatusAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.vehicles[v.ID] = v
	return cloneVehicle(v), nil
}

func (s *Storage) GetVehicleByID(_ context.Context, id uint64) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, faults.NotFound("vehicle")
	}
	return cloneVehicle(v), nil
}

func (s *Storage) ListVehicles(_ context.Context) ([]*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, cloneVehicle(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) CreateDriver(_ context.Context, in models.DriverCreateInput) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &models.Driver{
		ID:            s.id(),
		Name:          in.Name,
		LicenseExpiry: in.LicenseExpiry,
		SafetyScore:   100,
		Status:        models.DriverStatusOnDuty,
		CreatedAt:     time.Now().UTC(),
	}
	s.drivers[d.ID] = d
	return cloneDriver(d), nil
}

func (s *Storage) GetDriverByID(_ context.Context, id uint64) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[id]
	if !ok {
		return nil, faults.NotFound("driver")
	}
	return cloneDriver(d), nil
}

func (s *Storage) ListDrivers(_ context.Context) ([]*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, cloneDriver(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) CreateTruck(_ context.Context, in models.TruckCreateInput) (*models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe := in.FuelEfficiency
	if fe <= 0 {
		fe = 4
	}
	t := &models.Truck{
		ID:             s.id(),
		DealerID:       in.DealerID,
		LicensePlate:   in.LicensePlate,
		TruckType:      in.TruckType,
		CapacityWeight: in.CapacityWeight,
		CapacityVolume: in.CapacityVolume,
		CostPerKm:      in.CostPerKm,
		FuelEfficiency: fe,
		IsAvailable:    true,
		CreatedAt:      time.Now().UTC(),
	}
	s.trucks[t.ID] = t
	return cloneTruck(t), nil
}

func (s *Storage) GetTruckByID(_ context.Context, id uint64) (*models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trucks[id]
	if !ok {
		return nil, faults.NotFound("truck")
	}
	return cloneTruck(t), nil
}

func (s *Storage) ListAvailableTrucks(_ context.Context) ([]*models.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Truck, 0, len(s.trucks))
	for _, t := range s.trucks {
		if t.IsAvailable {
			out = append(out, cloneTruck(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) CreateShipment(_ context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh := &models.Shipment{
		ID:          s.id(),
		WarehouseID: in.WarehouseID,
		Origin:      in.Origin,
		Destination: in.Destination,
		TotalWeight: in.TotalWeight,
		TotalVolume: in.TotalVolume,
		Status:      models.ShipmentStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.shipments[sh.ID] = sh
	return cloneShipment(sh), nil
}

func (s *Storage) GetShipmentByID(_ context.Context, id uint64) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[id]
	if !ok {
		return nil, faults.NotFound("shipment")
	}
	return cloneShipment(sh), nil
}

func (s *Storage) ListWarehouseShipments(_ context.Context, warehouseID string) ([]*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Shipment
	for _, sh := range s.shipments {
		if sh.WarehouseID == warehouseID {
			out = append(out, cloneShipment(sh))
		}
	}
	sortShipmentsNewestFirst(out)
	return out, nil
}

func (s *Storage) ListDealerJobs(_ context.Context, dealerID string) ([]*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Shipment
	for _, sh := range s.shipments {
		if sh.Status != models.ShipmentStatusAssigned || sh.AssignedTruckID == nil {
			continue
		}
		t, ok := s.trucks[*sh.AssignedTruckID]
		if ok && t.DealerID == dealerID {
			out = append(out, cloneShipment(sh))
		}
	}
	sortShipmentsNewestFirst(out)
	return out, nil
}

// BookShipment checks both transitions before mutating anything, so a
// failed booking leaves no partial state, same as the sql transaction.
func (s *Storage) BookShipment(_ context.Context, shipmentID, truckID uint64) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[shipmentID]
	if !ok {
		return nil, faults.NotFound("shipment")
	}
	if sh.Status != models.ShipmentStatusPending {
		return nil, faults.Conflict(faults.RuleTerminalState, "shipment %d is not PENDING", shipmentID)
	}
	t, ok := s.trucks[truckID]
	if !ok {
		return nil, faults.NotFound("truck")
	}
	if !t.IsAvailable {
		return nil, faults.Validation(faults.RuleTruckUnavailable, "truck %d is already assigned to another shipment", truckID)
	}

	id := truckID
	sh.AssignedTruckID = &id
	sh.Status = models.ShipmentStatusAssigned
	t.IsAvailable = false
	return cloneShipment(sh), nil
}

func (s *Storage) DeliverShipment(_ context.Context, shipmentID, truckID uint64, m pgfleet.DeliveryMetrics) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[shipmentID]
	if !ok {
		return nil, faults.NotFound("shipment")
	}
	if sh.Status != models.ShipmentStatusAssigned {
		return nil, faults.Conflict(faults.RuleTerminalState, "shipment %d is not ASSIGNED", shipmentID)
	}

	cost, sav, co2 := m.EstimatedCost, m.Savings, m.CO2Saved
	at := m.DeliveredAt.UTC()
	sh.Status = models.ShipmentStatusDelivered
	sh.EstimatedCost = &cost
	sh.Savings = &sav
	sh.CO2Saved = &co2
	sh.DeliveredAt = &at
	if t, ok := s.trucks[truckID]; ok {
		t.IsAvailable = true
	}
	return cloneShipment(sh), nil
}

func (s *Storage) GetTripByID(_ context.Context, id uint64) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trips[id]
	if !ok {
		return nil, faults.NotFound("trip")
	}
	return cloneTrip(t), nil
}

func (s *Storage) ListTrips(_ context.Context) ([]*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Trip, 0, len(s.trips))
	for _, t := range s.trips {
		out = append(out, cloneTrip(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Storage) DispatchTrip(_ context.Context, vehicleID, driverID uint64, cargoWeight float64) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, faults.NotFound("vehicle")
	}
	if v.Status != models.VehicleStatusAvailable {
		return nil, faults.Conflict(faults.RuleTerminalState, "vehicle %d is not AVAILABLE", vehicleID)
	}

	now := time.Now().UTC()
	v.Status = models.VehicleStatusOnTrip
	v.UpdatedAt = now

	t := &models.Trip{
		ID:          s.id(),
		VehicleID:   vehicleID,
		DriverID:    driverID,
		CargoWeight: cargoWeight,
		Status:      models.TripStatusDispatched,
		CreatedAt:   now,
	}
	s.trips[t.ID] = t
	return cloneTrip(t), nil
}

func (s *Storage) CompleteTrip(_ context.Context, upd pgfleet.TripCompletion) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trips[upd.TripID]
	if !ok {
		return nil, faults.NotFound("trip")
	}
	if t.Status != models.TripStatusDispatched {
		return nil, faults.Conflict(faults.RuleTerminalState, "trip %d is already COMPLETED", upd.TripID)
	}
	v, ok := s.vehicles[upd.VehicleID]
	if !ok {
		return nil, faults.NotFound("vehicle")
	}
	if upd.FinalOdometer < v.Odometer {
		return nil, faults.Validation(faults.RuleOdometer,
			"final odometer (%gkm) is below the recorded odometer", upd.FinalOdometer)
	}

	at := upd.CompletedAt.UTC()
	t.Status = models.TripStatusCompleted
	t.CompletedAt = &at
	v.Status = models.VehicleStatusAvailable
	v.Odometer = upd.FinalOdometer
	v.UpdatedAt = at

	if upd.FuelLiters > 0 || upd.FuelCost > 0 {
		tripID := upd.TripID
		s.fuel = append(s.fuel, &models.FuelLog{
			ID:        s.id(),
			VehicleID: upd.VehicleID,
			TripID:    &tripID,
			Liters:    upd.FuelLiters,
			Cost:      upd.FuelCost,
			CreatedAt: at,
		})
	}
	return cloneTrip(t), nil
}

func (s *Storage) OpenMaintenance(_ context.Context, vehicleID uint64, description string, cost float64) (*models.MaintenanceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, faults.NotFound("vehicle")
	}
	if v.Status != models.VehicleStatusAvailable {
		return nil, faults.Conflict(faults.RuleTerminalState, "vehicle %d is not AVAILABLE", vehicleID)
	}

	now := time.Now().UTC()
	v.Status = models.VehicleStatusInShop
	v.UpdatedAt = now

	m := &models.MaintenanceLog{
		ID:          s.id(),
		VehicleID:   vehicleID,
		Description: description,
		Cost:        cost,
		Date:        now,
	}
	s.maintenance[m.ID] = m
	return cloneMaintenance(m), nil
}

func (s *Storage) ListMaintenance(_ context.Context) ([]*models.MaintenanceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.MaintenanceLog, 0, len(s.maintenance))
	for _, m := range s.maintenance {
		out = append(out, cloneMaintenance(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Storage) ReleaseMaintenance(_ context.Context, vehicleID uint64) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, faults.NotFound("vehicle")
	}
	if v.Status != models.VehicleStatusInShop {
		return nil, faults.Conflict(faults.RuleTerminalState, "vehicle %d is not IN_SHOP", vehicleID)
	}

	now := time.Now().UTC()
	v.Status = models.VehicleStatusAvailable
	v.UpdatedAt = now
	for _, m := range s.maintenance {
		if m.VehicleID == vehicleID && m.ResolvedAt == nil {
			at := now
			m.ResolvedAt = &at
		}
	}
	return cloneVehicle(v), nil
}

func (s *Storage) CreateExpense(_ context.Context, in models.ExpenseCreateInput) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[in.VehicleID]; !ok {
		return nil, faults.NotFound("vehicle")
	}

	e := &models.Expense{
		ID:          s.id(),
		VehicleID:   in.VehicleID,
		Category:    in.Category,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        in.Date.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	s.expenses = append(s.expenses, e)
	return cloneExpense(e), nil
}

func (s *Storage) ListExpenses(_ context.Context) ([]*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, cloneExpense(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Storage) VehicleAnalytics(_ context.Context) ([]*models.VehicleAnalytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.VehicleAnalytics, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		a := &models.VehicleAnalytics{
			VehicleID:    v.ID,
			Name:         v.Name,
			LicensePlate: v.LicensePlate,
			Odometer:     v.Odometer,
		}
		for _, f := range s.fuel {
			if f.VehicleID == v.ID {
				a.TotalFuelLiters += f.Liters
				a.TotalFuelCost += f.Cost
			}
		}
		for _, m := range s.maintenance {
			if m.VehicleID == v.ID {
				a.TotalMaintenanceCost += m.Cost
			}
		}
		for _, e := range s.expenses {
			if e.VehicleID == v.ID {
				a.TotalExpenseCost += e.Amount
			}
		}
		a.TotalOperationalCost = a.TotalFuelCost + a.TotalMaintenanceCost + a.TotalExpenseCost
		if a.TotalFuelLiters > 0 {
			a.FuelEfficiency = a.Odometer / a.TotalFuelLiters
		}
		if a.Odometer > 0 {
			a.CostPerKm = a.TotalOperationalCost / a.Odometer
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func sortShipmentsNewestFirst(list []*models.Shipment) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
}

func cloneVehicle(v *models.Vehicle) *models.Vehicle {
	c := *v
	return &c
}

func cloneDriver(d *models.Driver) *models.Driver {
	c := *d
	return &c
}

func cloneTruck(t *models.Truck) *models.Truck {
	c := *t
	return &c
}

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func cloneShipment(sh *models.Shipment) *models.Shipment {
	c := *sh
	if sh.AssignedTruckID != nil {
		id := *sh.AssignedTruckID
		c.AssignedTruckID = &id
	}
	if sh.EstimatedCost != nil {
		v := *sh.EstimatedCost
		c.EstimatedCost = &v
	}
	if sh.Savings != nil {
		v := *sh.Savings
		c.Savings = &v
	}
	if sh.CO2Saved != nil {
		v := *sh.CO2Saved
		c.CO2Saved = &v
	}
	if sh.DeliveredAt != nil {
		at := *sh.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}

func cloneExpense(e *models.Expense) *models.Expense {
	c := *e
	return &c
}

func cloneMaintenance(m *models.MaintenanceLog) *models.MaintenanceLog {
	c := *m
	if m.ResolvedAt != nil {
		at := *m.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}
