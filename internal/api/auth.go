package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        *auth.User `json:"user"`
}

type activateRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type meResponse struct {
	User        *auth.User          `json:"user"`
	Permissions map[string][]string `json:"permissions"`
}

// handleLogin checks credentials and issues an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthenticated(w, auth.ErrInvalidCredentials.Error())
			return
		}
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	if err := auth.CheckCredentials(user, req.Password); err != nil {
		s.logger.Info("login failed", "username", req.Username, "reason", err.Error())
		writeServiceError(w, s.logger.Logger, err)
		return
	}

	ttl := time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
	token, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}

	ctx := auth.WithPrincipal(r.Context(), user.Principal())
	s.audit.Record(ctx, audit.ActionLogin, "user", user.ID, nil)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		User:        user,
	})
}

// handleRegister creates an inactive account and hands the activation code
// to the notifier.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.registrar == nil {
		writeInternalError(w, "registration not configured")
		return
	}
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, code, err := s.registrar.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	if err := s.notifier.NotifyActivation(r.Context(), user, code); err != nil {
		s.logger.Error("delivering activation code", "user_id", user.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleActivate consumes an activation code.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if s.registrar == nil {
		writeInternalError(w, "registration not configured")
		return
	}
	var req activateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.registrar.Activate(r.Context(), req.Username, req.Code)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleMe returns the caller with roles and effective permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	user, err := s.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	if s.roleRepo != nil {
		if user.Roles, err = s.roleRepo.RolesForUser(r.Context(), user.ID); err != nil {
			writeServiceError(w, s.logger.Logger, err)
			return
		}
	}

	set, err := s.guard.Permissions(r.Context())
	if err != nil {
		writeServiceError(w, s.logger.Logger, err)
		return
	}
	perms := make(map[string][]string, len(set))
	for rt, mask := range set {
		perms[string(rt)] = auth.ActionNames(rt, mask)
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, Permissions: perms})
}
