package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/BearBump/FleetBox/internal/storage/memfleet"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite

	repo *memfleet.Storage
	pub  *fakePublisher
	svc  *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = memfleet.New()
	s.pub = &fakePublisher{}
	s.svc = New(s.repo, nil, s.pub, Settings{EventsTopic: "fleet.events"})
}

func (s *ServiceSuite) TestTripLifecycle() {
	ctx := context.Background()

	v, err := s.svc.CreateVehicle(ctx, models.VehicleCreateInput{
		Name: "Tata 407", LicensePlate: "KA-01", MaxLoadCapacity: 500, Odometer: 1000,
	})
	s.Require().NoError(err)
	d, err := s.svc.CreateDriver(ctx, models.DriverCreateInput{
		Name: "Asha", LicenseExpiry: time.Now().AddDate(1, 0, 0),
	})
	s.Require().NoError(err)

	trip, err := s.svc.DispatchTrip(ctx, v.ID, d.ID, 450, "ops")
	s.Require().NoError(err)

	// the vehicle is taken, a second dispatch loses
	_, err = s.svc.DispatchTrip(ctx, v.ID, d.ID, 100, "ops")
	s.Require().True(faults.IsStateConflict(err))

	// regression is rejected before anything is written
	_, err = s.svc.CompleteTrip(ctx, CompleteTripInput{TripID: trip.ID, FinalOdometer: 900}, "ops")
	s.Require().Equal(faults.RuleOdometer, faults.RuleOf(err))

	done, err := s.svc.CompleteTrip(ctx, CompleteTripInput{
		TripID: trip.ID, FinalOdometer: 1120, FuelLiters: 30, FuelCost: 3000,
	}, "ops")
	s.Require().NoError(err)
	s.Require().Equal(models.TripStatusCompleted, done.Status)

	freed, err := s.svc.GetVehicle(ctx, v.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.VehicleStatusAvailable, freed.Status)
	s.Require().Equal(1120.0, freed.Odometer)

	_, err = s.svc.CompleteTrip(ctx, CompleteTripInput{TripID: trip.ID, FinalOdometer: 1200}, "ops")
	s.Require().True(faults.IsStateConflict(err))

	stats, err := s.svc.VehicleAnalytics(ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 1)
	s.Require().Equal(30.0, stats[0].TotalFuelLiters)

	// DISPATCHED + COMPLETED
	s.Require().Len(s.pub.values, 2)
}

func (s *ServiceSuite) TestShipmentLifecycle() {
	ctx := context.Background()

	cheap, err := s.svc.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d1", LicensePlate: "T1", CapacityWeight: 5000, CapacityVolume: 40, CostPerKm: 40,
	})
	s.Require().NoError(err)
	_, err = s.svc.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d2", LicensePlate: "T2", CapacityWeight: 5000, CapacityVolume: 40, CostPerKm: 55,
	})
	s.Require().NoError(err)
	_, err = s.svc.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d3", LicensePlate: "T3", CapacityWeight: 100, CapacityVolume: 1, CostPerKm: 10,
	})
	s.Require().NoError(err)

	sh, ranked, err := s.svc.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "Mumbai", Destination: "Pune", TotalWeight: 1200, TotalVolume: 10,
	})
	s.Require().NoError(err)

	// the small truck is filtered out, the cheap one wins
	s.Require().Len(ranked, 2)
	s.Require().Equal(cheap.ID, ranked[0].Truck.ID)
	s.Require().Equal(25.0, ranked[0].Utilization)

	booked, err := s.svc.BookShipment(ctx, sh.ID, cheap.ID, "w1")
	s.Require().NoError(err)
	s.Require().Equal(models.ShipmentStatusAssigned, booked.Status)

	jobs, err := s.svc.ListDealerJobs(ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)

	delivered, err := s.svc.DeliverShipment(ctx, sh.ID, "d1")
	s.Require().NoError(err)
	s.Require().Equal(20000.0, *delivered.EstimatedCost)
	s.Require().Equal(6000.0, *delivered.Savings)
	s.Require().Equal(67.0, *delivered.CO2Saved)

	listed, err := s.svc.ListWarehouseShipments(ctx, "w1")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Require().Equal(models.ShipmentStatusDelivered, listed[0].Status)
}

func (s *ServiceSuite) TestBookShipment_truckTakenBetweenReads() {
	ctx := context.Background()

	truck, err := s.svc.CreateTruck(ctx, models.TruckCreateInput{
		DealerID: "d1", LicensePlate: "T1", CapacityWeight: 100, CapacityVolume: 10, CostPerKm: 40,
	})
	s.Require().NoError(err)

	a, _, err := s.svc.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "A", Destination: "B", TotalWeight: 10, TotalVolume: 1,
	})
	s.Require().NoError(err)
	b, _, err := s.svc.CreateShipment(ctx, models.ShipmentCreateInput{
		WarehouseID: "w1", Origin: "A", Destination: "B", TotalWeight: 10, TotalVolume: 1,
	})
	s.Require().NoError(err)

	_, err = s.svc.BookShipment(ctx, a.ID, truck.ID, "w1")
	s.Require().NoError(err)

	_, err = s.svc.BookShipment(ctx, b.ID, truck.ID, "w1")
	s.Require().Equal(faults.RuleTruckUnavailable, faults.RuleOf(err))

	got, err := s.svc.GetShipment(ctx, b.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.ShipmentStatusPending, got.Status)
}

func (s *ServiceSuite) TestMaintenanceBlocksDispatch() {
	ctx := context.Background()

	v, err := s.svc.CreateVehicle(ctx, models.VehicleCreateInput{
		Name: "V", LicensePlate: "P", MaxLoadCapacity: 500,
	})
	s.Require().NoError(err)
	d, err := s.svc.CreateDriver(ctx, models.DriverCreateInput{
		Name: "D", LicenseExpiry: time.Now().AddDate(1, 0, 0),
	})
	s.Require().NoError(err)

	_, err = s.svc.OpenMaintenance(ctx, v.ID, "gearbox", 5000)
	s.Require().NoError(err)

	_, err = s.svc.DispatchTrip(ctx, v.ID, d.ID, 100, "ops")
	s.Require().True(faults.IsStateConflict(err))

	released, err := s.svc.ReleaseMaintenance(ctx, v.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.VehicleStatusAvailable, released.Status)

	_, err = s.svc.DispatchTrip(ctx, v.ID, d.ID, 100, "ops")
	s.Require().NoError(err)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
