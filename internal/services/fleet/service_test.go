package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/FleetBox/internal/broker/messages"
	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/BearBump/FleetBox/internal/storage/memfleet"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	keys   []string
	values [][]byte
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, key, value []byte) error {
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return p.err
}

type fakeCache struct {
	m    map[string][]byte
	dels []string
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}
func (c *fakeCache) Del(_ context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.m, key)
	return nil
}

func newTestService(pub Publisher, c *fakeCache) (*Service, *memfleet.Storage) {
	repo := memfleet.New()
	st := Settings{EventsTopic: "fleet.events"}
	if c == nil {
		return New(repo, nil, pub, st), repo
	}
	st.CurrentTTL = 10 * time.Minute
	return New(repo, c, pub, st), repo
}

func TestService_CreateVehicle_validate(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	_, err := s.CreateVehicle(ctx, models.VehicleCreateInput{LicensePlate: "P", MaxLoadCapacity: 1})
	require.True(t, faults.IsBadInput(err))

	_, err = s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", MaxLoadCapacity: 1})
	require.True(t, faults.IsBadInput(err))

	_, err = s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P"})
	require.True(t, faults.IsBadInput(err))

	_, err = s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 1, Odometer: -1})
	require.True(t, faults.IsBadInput(err))
}

func TestService_DispatchTrip_capacityMessage(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	v, err := s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 500})
	require.NoError(t, err)
	d, err := s.CreateDriver(ctx, models.DriverCreateInput{Name: "D", LicenseExpiry: time.Now().AddDate(1, 0, 0)})
	require.NoError(t, err)

	_, err = s.DispatchTrip(ctx, v.ID, d.ID, 650, "dispatcher-1")
	require.True(t, faults.IsValidation(err))
	require.Equal(t, faults.RuleCapacity, faults.RuleOf(err))
	require.Equal(t, "Cargo (650kg) exceeds vehicle capacity (500kg)", err.Error())
}

func TestService_DispatchTrip_expiredLicense(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	v, err := s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 500})
	require.NoError(t, err)
	d, err := s.CreateDriver(ctx, models.DriverCreateInput{Name: "D", LicenseExpiry: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	_, err = s.DispatchTrip(ctx, v.ID, d.ID, 100, "")
	require.Equal(t, faults.RuleLicenseExpired, faults.RuleOf(err))
}

func TestService_DispatchTrip_publishesAndDropsCache(t *testing.T) {
	pub := &fakePublisher{}
	c := &fakeCache{m: map[string][]byte{}}
	s, _ := newTestService(pub, c)
	ctx := context.Background()

	v, err := s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 500})
	require.NoError(t, err)
	d, err := s.CreateDriver(ctx, models.DriverCreateInput{Name: "D", LicenseExpiry: time.Now().AddDate(1, 0, 0)})
	require.NoError(t, err)

	trip, err := s.DispatchTrip(ctx, v.ID, d.ID, 300, "dispatcher-1")
	require.NoError(t, err)

	require.Contains(t, c.dels, "vehicle:1:current")
	require.Len(t, pub.values, 1)

	var ev messages.TripUpdated
	require.NoError(t, json.Unmarshal(pub.values[0], &ev))
	require.Equal(t, trip.ID, ev.TripID)
	require.Equal(t, models.TripStatusDispatched, ev.Status)
	require.Equal(t, "dispatcher-1", ev.Actor)
}

func TestService_GetVehicle_cacheHit(t *testing.T) {
	c := &fakeCache{m: map[string][]byte{}}
	s, _ := newTestService(nil, c)
	ctx := context.Background()

	want := &models.Vehicle{ID: 7, Name: "cached", Status: models.VehicleStatusAvailable}
	b, _ := json.Marshal(want)
	c.m["vehicle:7:current"] = b

	// id 7 does not exist in the store, only in the cache
	got, err := s.GetVehicle(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "cached", got.Name)
}

func TestService_GetVehicle_cacheMissFillsCache(t *testing.T) {
	c := &fakeCache{m: map[string][]byte{}}
	s, _ := newTestService(nil, c)
	ctx := context.Background()

	v, err := s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 1})
	require.NoError(t, err)

	got, err := s.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, v.ID, got.ID)
	require.Contains(t, c.m, "vehicle:1:current")
}

func TestService_DeliverShipment_math(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newTestService(pub, nil)
	ctx := context.Background()

	// fuelEfficiency omitted: falls back to 4 km/l
	truck, err := s.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d1", LicensePlate: "T1", TruckType: "Open",
		CapacityWeight: 5000, CapacityVolume: 40, CostPerKm: 50,
	})
	require.NoError(t, err)

	sh, ranked, err := s.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "A", Destination: "B", TotalWeight: 1000, TotalVolume: 10,
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, 25000.0, ranked[0].EstimatedCost)

	_, err = s.BookShipment(ctx, sh.ID, truck.ID, "w1")
	require.NoError(t, err)

	delivered, err := s.DeliverShipment(ctx, sh.ID, "d1")
	require.NoError(t, err)

	// 500km at 50/km: actual 25000, market 32500, fuel 125l, co2 335kg
	require.Equal(t, 25000.0, *delivered.EstimatedCost)
	require.Equal(t, 7500.0, *delivered.Savings)
	require.Equal(t, 67.0, *delivered.CO2Saved)
	require.NotNil(t, delivered.DeliveredAt)

	var ev messages.ShipmentUpdated
	require.NoError(t, json.Unmarshal(pub.values[len(pub.values)-1], &ev))
	require.Equal(t, models.ShipmentStatusDelivered, ev.Status)
}

func TestService_DeliverShipment_notBooked(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	sh, _, err := s.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "A", Destination: "B", TotalWeight: 1, TotalVolume: 1,
	})
	require.NoError(t, err)

	_, err = s.DeliverShipment(ctx, sh.ID, "")
	require.Equal(t, faults.RuleShipmentNotBooked, faults.RuleOf(err))
}

func TestService_MatchTrucks_pendingOnly(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	truck, err := s.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d1", LicensePlate: "T1", CapacityWeight: 100, CapacityVolume: 10, CostPerKm: 40,
	})
	require.NoError(t, err)

	sh, _, err := s.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "A", Destination: "B", TotalWeight: 50, TotalVolume: 5,
	})
	require.NoError(t, err)

	ranked, err := s.MatchTrucks(ctx, sh.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	_, err = s.BookShipment(ctx, sh.ID, truck.ID, "")
	require.NoError(t, err)

	_, err = s.MatchTrucks(ctx, sh.ID)
	require.True(t, faults.IsStateConflict(err))
}

func TestService_ApplyShipmentEvent(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	require.True(t, faults.IsBadInput(s.ApplyShipmentEvent(ctx, messages.ShipmentUpdated{})))

	// non-terminal statuses are ignored
	require.NoError(t, s.ApplyShipmentEvent(ctx, messages.ShipmentUpdated{ShipmentID: 1, Status: models.ShipmentStatusAssigned}))

	truck, err := s.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d1", LicensePlate: "T1", CapacityWeight: 100, CapacityVolume: 10, CostPerKm: 40,
	})
	require.NoError(t, err)
	sh, _, err := s.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "A", Destination: "B", TotalWeight: 50, TotalVolume: 5,
	})
	require.NoError(t, err)
	_, err = s.BookShipment(ctx, sh.ID, truck.ID, "")
	require.NoError(t, err)

	msg := messages.ShipmentUpdated{ShipmentID: sh.ID, Status: models.ShipmentStatusDelivered, Actor: "d1"}
	require.NoError(t, s.ApplyShipmentEvent(ctx, msg))

	// replay of an already delivered shipment is acknowledged
	require.NoError(t, s.ApplyShipmentEvent(ctx, msg))

	got, err := s.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, got.Status)
}

func TestService_CreateExpense(t *testing.T) {
	s, _ := newTestService(nil, nil)
	ctx := context.Background()

	v, err := s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 500})
	require.NoError(t, err)

	_, err = s.CreateExpense(ctx, models.ExpenseCreateInput{Category: models.ExpenseCategoryToll, Amount: 50})
	require.True(t, faults.IsBadInput(err))

	_, err = s.CreateExpense(ctx, models.ExpenseCreateInput{VehicleID: v.ID, Category: "SNACKS", Amount: 50})
	require.True(t, faults.IsBadInput(err))

	_, err = s.CreateExpense(ctx, models.ExpenseCreateInput{VehicleID: v.ID, Category: models.ExpenseCategoryToll})
	require.True(t, faults.IsBadInput(err))

	_, err = s.CreateExpense(ctx, models.ExpenseCreateInput{VehicleID: 99, Category: models.ExpenseCategoryToll, Amount: 50})
	require.True(t, faults.IsNotFound(err))

	// omitted date defaults to now
	e, err := s.CreateExpense(ctx, models.ExpenseCreateInput{VehicleID: v.ID, Category: models.ExpenseCategoryToll, Amount: 50})
	require.NoError(t, err)
	require.False(t, e.Date.IsZero())

	list, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestService_PublishErrorDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	s, _ := newTestService(pub, nil)
	ctx := context.Background()

	v, err := s.CreateVehicle(ctx, models.VehicleCreateInput{Name: "V", LicensePlate: "P", MaxLoadCapacity: 500})
	require.NoError(t, err)
	d, err := s.CreateDriver(ctx, models.DriverCreateInput{Name: "D", LicenseExpiry: time.Now().AddDate(1, 0, 0)})
	require.NoError(t, err)

	_, err = s.DispatchTrip(ctx, v.ID, d.ID, 100, "")
	require.NoError(t, err)
}
