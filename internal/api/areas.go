package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/area-core/internal/area"
)

// imageFormField is the multipart field carrying an area image.
const imageFormField = "image_file"

func (s *Server) handleAreaConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"maxFileSize": s.areas.MaxFileSize()})
}

func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.areas.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (s *Server) handleListAreasPaginated(w http.ResponseWriter, r *http.Request) {
	page, err := s.areas.FindAllPaginated(r.Context(), pageRequest(r))
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var a area.Area
	if !decodeJSON(w, r, &a) {
		return
	}
	if err := s.areas.Save(r.Context(), &a); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateArea(w http.ResponseWriter, r *http.Request) {
	var a area.Area
	if !decodeJSON(w, r, &a) {
		return
	}
	if err := s.areas.Update(r.Context(), &a); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGetArea(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.areas.Find(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := s.areas.Remove(r.Context(), id); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAreaTree(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	tree, err := s.areas.InnerAreas(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleDeepAreaDevices(w http.ResponseWriter, r *http.Request) {
	s.writeDeepAreaDevices(w, r, false)
}

func (s *Server) handleDeepAreaDevicesFromRoot(w http.ResponseWriter, r *http.Request) {
	s.writeDeepAreaDevices(w, r, true)
}

func (s *Server) writeDeepAreaDevices(w http.ResponseWriter, r *http.Request, seekRoot bool) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	devices, err := s.areas.DeepAreaDevices(r.Context(), id, seekRoot)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleAreaPath(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.areas.AreaPath(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleResetAreaType(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.areas.ResetAreaType(r.Context(), id, area.ViewType(chi.URLParam(r, "type")))
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSetAreaImage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBadRequest(w, "request body too large")
			return
		}
		writeBadRequest(w, "multipart field "+imageFormField+" is required")
		return
	}
	defer file.Close()

	a, err := s.areas.SetImage(r.Context(), id, header.Filename, file)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGetAreaImage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	rc, a, err := s.areas.GetImage(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(a.ImagePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.ImagePath}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("streaming area image", "area_id", id, "error", err)
	}
}

func (s *Server) handleUnsetAreaImage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.areas.UnsetImage(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAreaDevices(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	devices, err := s.areas.ListAreaDevices(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handlePutAreaDevice adds a placement, or updates it when the body carries
// an id.
func (s *Server) handlePutAreaDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var ad area.AreaDevice
	if !decodeJSON(w, r, &ad) {
		return
	}

	var err error
	if ad.ID > 0 {
		err = s.areas.UpdateAreaDevice(r.Context(), id, &ad)
	} else {
		err = s.areas.AddAreaDevice(r.Context(), id, &ad)
	}
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

func (s *Server) handleDeleteAreaDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	adID, ok := urlID(w, r, "areaDeviceId")
	if !ok {
		return
	}
	if err := s.areas.RemoveAreaDevice(r.Context(), id, adID); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAreaDevice(w http.ResponseWriter, r *http.Request) {
	adID, ok := urlID(w, r, "areaDeviceId")
	if !ok {
		return
	}
	ad, err := s.areas.GetAreaDevice(r.Context(), adID)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}
