package api

import (
	"net/http"

	"github.com/nerrad567/area-core/internal/device"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleListDevicesPaginated(w http.ResponseWriter, r *http.Request) {
	page, err := s.devices.FindAllPaginated(r.Context(), pageRequest(r))
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var d device.Device
	if !decodeJSON(w, r, &d) {
		return
	}
	if err := s.devices.Save(r.Context(), &d); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var d device.Device
	if !decodeJSON(w, r, &d) {
		return
	}
	if err := s.devices.Update(r.Context(), &d); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	d, err := s.devices.Find(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := s.devices.Remove(r.Context(), id); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
