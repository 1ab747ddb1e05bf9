package api

import (
	"encoding/json"
	"net/http"

	"pawtrack/internal/domain"
	"pawtrack/internal/tracking"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type deviceResponse struct {
	Success bool          `json:"success"`
	Data    domain.Device `json:"data"`
}

func (api *API) ListDevices(w http.ResponseWriter, r *http.Request) {
	log := api.log.With("requestId", middleware.GetReqID(r.Context()))

	devices, err := api.services.Registry.ListByOwner(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		api.respondWithDomainError(w, log, err)
		return
	}

	if devices == nil {
		devices = []domain.DeviceView{}
	}
	respondWithJSON(w, http.StatusOK, listResponse{Success: true, Data: devices, Count: len(devices)})
}

func (api *API) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	log := api.log.With("requestId", middleware.GetReqID(r.Context()))

	var in tracking.RegisterDeviceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.OwnerID = ownerFrom(r.Context())

	device, err := api.services.Registry.RegisterDevice(r.Context(), in)
	if err != nil {
		api.respondWithDomainError(w, log, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, deviceResponse{Success: true, Data: device})
}

func (api *API) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	log := api.log.With("requestId", middleware.GetReqID(r.Context()))
	deviceID := chi.URLParam(r, "deviceId")

	var update domain.DeviceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	device, err := api.services.Registry.UpdateDevice(r.Context(), ownerFrom(r.Context()), deviceID, update)
	if err != nil {
		api.respondWithDomainError(w, log, err)
		return
	}

	respondWithJSON(w, http.StatusOK, deviceResponse{Success: true, Data: device})
}
