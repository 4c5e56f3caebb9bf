package models

import "time"

// Vehicle status lifecycle: AVAILABLE -> ON_TRIP -> AVAILABLE,
// AVAILABLE -> IN_SHOP -> AVAILABLE.
const (
	VehicleStatusAvailable = "AVAILABLE"
	VehicleStatusOnTrip    = "ON_TRIP"
	VehicleStatusInShop    = "IN_SHOP"
)

const (
	DriverStatusOnDuty    = "ON_DUTY"
	DriverStatusOffDuty   = "OFF_DUTY"
	DriverStatusSuspended = "SUSPENDED"
)

const (
	TripStatusDispatched = "DISPATCHED"
	TripStatusCompleted  = "COMPLETED"
)

const (
	ShipmentStatusPending   = "PENDING"
	ShipmentStatusAssigned  = "ASSIGNED"
	ShipmentStatusDelivered = "DELIVERED"
)

const (
	ExpenseCategoryFuel        = "FUEL"
	ExpenseCategoryMaintenance = "MAINTENANCE"
	ExpenseCategoryInsurance   = "INSURANCE"
	ExpenseCategoryToll        = "TOLL"
	ExpenseCategoryParking     = "PARKING"
	ExpenseCategoryOther       = "OTHER"
)

func ValidExpenseCategory(c string) bool {
	switch c {
	case ExpenseCategoryFuel, ExpenseCategoryMaintenance, ExpenseCategoryInsurance,
		ExpenseCategoryToll, ExpenseCategoryParking, ExpenseCategoryOther:
		return true
	}
	return false
}

type Vehicle struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	LicensePlate    string    `json:"licensePlate"`
	MaxLoadCapacity float64   `json:"maxLoadCapacity"`
	Odometer        float64   `json:"odometer"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Driver struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	LicenseExpiry time.Time `json:"licenseExpiry"`
	SafetyScore   float64   `json:"safetyScore"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Trip struct {
	ID          uint64     `json:"id"`
	VehicleID   uint64     `json:"vehicleId"`
	DriverID    uint64     `json:"driverId"`
	CargoWeight float64    `json:"cargoWeight"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Truck is a dealer-owned capacity unit, distinct from Vehicle.
type Truck struct {
	ID             uint64    `json:"id"`
	DealerID       string    `json:"dealerId"`
	LicensePlate   string    `json:"licensePlate"`
	TruckType      string    `json:"truckType"`
	CapacityWeight float64   `json:"capacityWeight"`
	CapacityVolume float64   `json:"capacityVolume"`
	CostPerKm      float64   `json:"costPerKm"`
	FuelEfficiency float64   `json:"fuelEfficiency"`
	IsAvailable    bool      `json:"isAvailable"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Shipment struct {
	ID              uint64     `json:"id"`
	WarehouseID     string     `json:"warehouseId"`
	Origin          string     `json:"origin"`
	Destination     string     `json:"destination"`
	TotalWeight     float64    `json:"totalWeight"`
	TotalVolume     float64    `json:"totalVolume"`
	Status          string     `json:"status"`
	AssignedTruckID *uint64    `json:"assignedTruckId,omitempty"`
	EstimatedCost   *float64   `json:"estimatedCost,omitempty"`
	Savings         *float64   `json:"savings,omitempty"`
	CO2Saved        *float64   `json:"co2Saved,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type MaintenanceLog struct {
	ID          uint64     `json:"id"`
	VehicleID   uint64     `json:"vehicleId"`
	Description string     `json:"description"`
	Cost        float64    `json:"cost"`
	Date        time.Time  `json:"date"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

type FuelLog struct {
	ID        uint64    `json:"id"`
	VehicleID uint64    `json:"vehicleId"`
	TripID    *uint64   `json:"tripId,omitempty"`
	Liters    float64   `json:"liters"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expense is a categorized operating cost outside fuel and shop work:
// insurance, tolls, parking and the like.
type Expense struct {
	ID          uint64    `json:"id"`
	VehicleID   uint64    `json:"vehicleId"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
}

type VehicleCreateInput struct {
	Name            string  `json:"name"`
	LicensePlate    string  `json:"licensePlate"`
	MaxLoadCapacity float64 `json:"maxLoadCapacity"`
	Odometer        float64 `json:"odometer"`
}

type DriverCreateInput struct {
	Name          string    `json:"name"`
	LicenseExpiry time.Time `json:"licenseExpiry"`
}

type TruckCreateInput struct {
	DealerID       string  `json:"dealerId"`
	LicensePlate   string  `json:"licensePlate"`
	TruckType      string  `json:"truckType"`
	CapacityWeight float64 `json:"capacityWeight"`
	CapacityVolume float64 `json:"capacityVolume"`
	CostPerKm      float64 `json:"costPerKm"`
	FuelEfficiency float64 `json:"fuelEfficiency"`
}

type ShipmentCreateInput struct {
	WarehouseID string  `json:"warehouseId"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	TotalWeight float64 `json:"totalWeight"`
	TotalVolume float64 `json:"totalVolume"`
}

type ExpenseCreateInput struct {
	VehicleID   uint64    `json:"vehicleId"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// VehicleAnalytics is the per-vehicle operational cost aggregate.
type VehicleAnalytics struct {
	VehicleID            uint64  `json:"vehicleId"`
	Name                 string  `json:"name"`
	LicensePlate         string  `json:"licensePlate"`
	Odometer             float64 `json:"odometer"`
	TotalFuelLiters      float64 `json:"totalFuelLiters"`
	TotalFuelCost        float64 `json:"totalFuelCost"`
	TotalMaintenanceCost float64 `json:"totalMaintenanceCost"`
	TotalExpenseCost     float64 `json:"totalExpenseCost"`
	TotalOperationalCost float64 `json:"totalOperationalCost"`
	FuelEfficiency       float64 `json:"fuelEfficiency"`
	CostPerKm            float64 `json:"costPerKm"`
}
