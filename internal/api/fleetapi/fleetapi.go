// Package fleetapi is the JSON REST surface over the fleet service.
package fleetapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/BearBump/FleetBox/internal/observability"
	"github.com/BearBump/FleetBox/internal/services/fleet"
	"github.com/BearBump/FleetBox/internal/services/matching"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

const actorHeader = "X-Actor-Id"

type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type API struct {
	svc *fleet.Service

	limiter    Limiter
	rateLimit  int64
	rateWindow time.Duration

	swaggerPath string
}

func New(svc *fleet.Service) *API {
	return &API{svc: svc}
}

// WithRateLimiter caps mutating requests per actor. A nil limiter keeps
// the API unthrottled.
func (a *API) WithRateLimiter(l Limiter, limit int64, window time.Duration) *API {
	a.limiter = l
	a.rateLimit = limit
	a.rateWindow = window
	return a
}

func (a *API) WithSwagger(path string) *API {
	a.swaggerPath = path
	return a
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	if a.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, a.swaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.throttle)

		r.Post("/vehicles", a.createVehicle)
		r.Get("/vehicles", a.listVehicles)
		r.Get("/vehicles/analytics", a.vehicleAnalytics)
		r.Get("/vehicles/{id}", a.getVehicle)
		r.Post("/vehicles/{id}/maintenance", a.openMaintenance)
		r.Post("/vehicles/{id}/maintenance/release", a.releaseMaintenance)

		r.Post("/drivers", a.createDriver)
		r.Get("/drivers", a.listDrivers)

		r.Post("/trucks", a.createTruck)
		r.Get("/trucks/available", a.listAvailableTrucks)

		r.Post("/shipments", a.createShipment)
		r.Get("/shipments/{id}", a.getShipment)
		r.Get("/shipments/{id}/matches", a.matchTrucks)
		r.Post("/shipments/{id}/book", a.bookShipment)
		r.Post("/shipments/{id}/deliver", a.deliverShipment)

		r.Get("/warehouses/{id}/shipments", a.listWarehouseShipments)
		r.Get("/dealers/{id}/jobs", a.listDealerJobs)

		r.Post("/trips", a.dispatchTrip)
		r.Get("/trips", a.listTrips)
		r.Get("/trips/{id}", a.getTrip)
		r.Post("/trips/{id}/complete", a.completeTrip)

		r.Get("/maintenance", a.listMaintenance)

		r.Post("/expenses", a.createExpense)
		r.Get("/expenses", a.listExpenses)
	})

	return r
}

func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		status := strconv.Itoa(ww.Status())
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, pattern, status).Observe(time.Since(start).Seconds())
	})
}

// throttle counts mutating requests per actor; reads pass through.
func (a *API) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		actor := r.Header.Get(actorHeader)
		if actor == "" {
			actor = r.RemoteAddr
		}
		ok, _, err := a.limiter.Allow(r.Context(), "rl:actor:"+actor, a.rateLimit, a.rateWindow)
		if err != nil {
			// limiter trouble must not take the API down
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeJSON(w, http.StatusTooManyRequests, errBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) createVehicle(w http.ResponseWriter, r *http.Request) {
	var in models.VehicleCreateInput
	if !decode(w, r, &in) {
		return
	}
	v, err := a.svc.CreateVehicle(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) listVehicles(w http.ResponseWriter, r *http.Request) {
	vs, err := a.svc.ListVehicles(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (a *API) getVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := a.svc.GetVehicle(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) vehicleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.VehicleAnalytics(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) createDriver(w http.ResponseWriter, r *http.Request) {
	var in models.DriverCreateInput
	if !decode(w, r, &in) {
		return
	}
	d, err := a.svc.CreateDriver(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) listDrivers(w http.ResponseWriter, r *http.Request) {
	ds, err := a.svc.ListDrivers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (a *API) createTruck(w http.ResponseWriter, r *http.Request) {
	var in models.TruckCreateInput
	if !decode(w, r, &in) {
		return
	}
	t, err := a.svc.CreateTruck(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) listAvailableTrucks(w http.ResponseWriter, r *http.Request) {
	ts, err := a.svc.ListAvailableTrucks(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

type createShipmentResponse struct {
	Shipment *models.Shipment       `json:"shipment"`
	Matches  []matching.RankedTruck `json:"matches"`
}

func (a *API) createShipment(w http.ResponseWriter, r *http.Request) {
	var in models.ShipmentCreateInput
	if !decode(w, r, &in) {
		return
	}
	sh, ranked, err := a.svc.CreateShipment(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createShipmentResponse{Shipment: sh, Matches: ranked})
}

func (a *API) getShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sh, err := a.svc.GetShipment(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (a *API) matchTrucks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ranked, err := a.svc.MatchTrucks(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (a *API) bookShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		TruckID uint64 `json:"truckId"`
	}
	if !decode(w, r, &body) {
		return
	}
	sh, err := a.svc.BookShipment(r.Context(), id, body.TruckID, r.Header.Get(actorHeader))
	if err != nil {
		writeErr(w, err)
		return
	}
	observability.ShipmentsBookedTotal.Inc()
	writeJSON(w, http.StatusOK, sh)
}

func (a *API) deliverShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sh, err := a.svc.DeliverShipment(r.Context(), id, r.Header.Get(actorHeader))
	if err != nil {
		writeErr(w, err)
		return
	}
	observability.ShipmentsDelivered.Inc()
	writeJSON(w, http.StatusOK, sh)
}

func (a *API) listWarehouseShipments(w http.ResponseWriter, r *http.Request) {
	shs, err := a.svc.ListWarehouseShipments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shs)
}

func (a *API) listDealerJobs(w http.ResponseWriter, r *http.Request) {
	shs, err := a.svc.ListDealerJobs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shs)
}

func (a *API) dispatchTrip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VehicleID   uint64  `json:"vehicleId"`
		DriverID    uint64  `json:"driverId"`
		CargoWeight float64 `json:"cargoWeight"`
	}
	if !decode(w, r, &body) {
		return
	}
	trip, err := a.svc.DispatchTrip(r.Context(), body.VehicleID, body.DriverID, body.CargoWeight, r.Header.Get(actorHeader))
	if err != nil {
		writeErr(w, err)
		return
	}
	observability.TripsDispatchedTotal.Inc()
	writeJSON(w, http.StatusCreated, trip)
}

func (a *API) listTrips(w http.ResponseWriter, r *http.Request) {
	ts, err := a.svc.ListTrips(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (a *API) getTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := a.svc.GetTrip(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) completeTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		FinalOdometer float64 `json:"finalOdometer"`
		FuelLiters    float64 `json:"fuelLiters"`
		FuelCost      float64 `json:"fuelCost"`
	}
	if !decode(w, r, &body) {
		return
	}
	trip, err := a.svc.CompleteTrip(r.Context(), fleet.CompleteTripInput{
		TripID:        id,
		FinalOdometer: body.FinalOdometer,
		FuelLiters:    body.FuelLiters,
		FuelCost:      body.FuelCost,
	}, r.Header.Get(actorHeader))
	if err != nil {
		writeErr(w, err)
		return
	}
	observability.TripsCompletedTotal.Inc()
	writeJSON(w, http.StatusOK, trip)
}

func (a *API) openMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Description string  `json:"description"`
		Cost        float64 `json:"cost"`
	}
	if !decode(w, r, &body) {
		return
	}
	m, err := a.svc.OpenMaintenance(r.Context(), id, body.Description, body.Cost)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) releaseMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := a.svc.ReleaseMaintenance(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) listMaintenance(w http.ResponseWriter, r *http.Request) {
	ms, err := a.svc.ListMaintenance(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (a *API) createExpense(w http.ResponseWriter, r *http.Request) {
	var in models.ExpenseCreateInput
	if !decode(w, r, &in) {
		return
	}
	e, err := a.svc.CreateExpense(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) listExpenses(w http.ResponseWriter, r *http.Request) {
	es, err := a.svc.ListExpenses(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, es)
}

type errBody struct {
	Error string `json:"error"`
	Rule  string `json:"rule,omitempty"`
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeErr maps a fault kind to a status; unstructured errors stay opaque.
func writeErr(w http.ResponseWriter, err error) {
	rule := faults.RuleOf(err)
	status := http.StatusInternalServerError
	msg := "internal error"

	switch faults.KindOf(err) {
	case faults.KindNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case faults.KindBadInput:
		status, msg = http.StatusBadRequest, err.Error()
	case faults.KindValidationFailed:
		status, msg = http.StatusUnprocessableEntity, err.Error()
		if rule == faults.RuleLicenseExpired {
			status = http.StatusForbidden
		}
		observability.ValidationRejects.WithLabelValues(rule).Inc()
	case faults.KindStateConflict:
		status, msg = http.StatusConflict, err.Error()
	default:
		slog.Error("request failed", "err", err)
	}

	writeJSON(w, status, errBody{Error: msg, Rule: rule})
}
