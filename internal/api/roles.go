package api

import (
	"context"
	"net/http"

	"github.com/nerrad567/area-core/internal/auth"
)

type permissionRequest struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

type permissionResponse struct {
	RoleID    int64     `json:"roleId"`
	Resource  string    `json:"resource"`
	ActionIDs auth.Mask `json:"actionIds"`
	Actions   []string  `json:"actions"`
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.roles.List(r.Context())
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleListRolesPaginated(w http.ResponseWriter, r *http.Request) {
	page, err := s.roles.ListPaginated(r.Context(), pageRequest(r))
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var role auth.Role
	if !decodeJSON(w, r, &role) {
		return
	}
	if err := s.roles.Create(r.Context(), &role); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := s.roles.Delete(r.Context(), id); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	s.changePermission(w, r, s.roles.Grant)
}

func (s *Server) handleRevokePermission(w http.ResponseWriter, r *http.Request) {
	s.changePermission(w, r, s.roles.Revoke)
}

type permissionChange func(ctx context.Context, roleID int64, resource auth.ResourceType, actions []string) (auth.Mask, error)

func (s *Server) changePermission(w http.ResponseWriter, r *http.Request, change permissionChange) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req permissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resource, err := auth.ParseResourceType(req.Resource)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	mask, err := change(r.Context(), id, resource, req.Actions)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, permissionResponse{
		RoleID:    id,
		Resource:  string(resource),
		ActionIDs: mask,
		Actions:   auth.ActionNames(resource, mask),
	})
}

func (s *Server) handleAssignMember(w http.ResponseWriter, r *http.Request) {
	roleID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := urlID(w, r, "userId")
	if !ok {
		return
	}
	if err := s.roles.AssignMember(r.Context(), roleID, userID); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	roleID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := urlID(w, r, "userId")
	if !ok {
		return
	}
	if err := s.roles.RemoveMember(r.Context(), roleID, userID); err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
