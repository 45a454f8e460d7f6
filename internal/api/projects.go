package api

import (
	"net/http"

	"github.com/nerrad567/area-core/internal/project"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleListProjectsPaginated(w http.ResponseWriter, r *http.Request) {
	page, err := s.projects.FindAllPaginated(r.Context(), pageRequest(r))
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p project.Project
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := s.projects.Save(r.Context(), &p); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p project.Project
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := s.projects.Update(r.Context(), &p); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.projects.Find(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := s.projects.Remove(r.Context(), id); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProjectAreas(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	areas, err := s.areas.ListByProject(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (s *Server) handleProjectRootAreas(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	areas, err := s.areas.RootAreas(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (s *Server) handleProjectDevices(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	devices, err := s.devices.ListByProject(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}
