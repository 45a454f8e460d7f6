package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/activate", s.handleActivate)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Route("/areas", func(r chi.Router) {
				r.Get("/", s.handleListAreasPaginated)
				r.Post("/", s.handleCreateArea)
				r.Put("/", s.handleUpdateArea)
				r.Get("/all", s.handleListAreas)
				r.Get("/config", s.handleAreaConfig)
				r.Get("/devices/{areaDeviceId}", s.handleGetAreaDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetArea)
					r.Delete("/", s.handleDeleteArea)
					r.Get("/tree", s.handleAreaTree)
					r.Get("/tree/devices", s.handleDeepAreaDevices)
					r.Get("/tree/devices/all", s.handleDeepAreaDevicesFromRoot)
					r.Get("/path", s.handleAreaPath)
					r.Put("/resetType/{type}", s.handleResetAreaType)

					r.Post("/image", s.handleSetAreaImage)
					r.Get("/image", s.handleGetAreaImage)
					r.Delete("/image", s.handleUnsetAreaImage)

					r.Get("/devices", s.handleListAreaDevices)
					r.Put("/devices", s.handlePutAreaDevice)
					r.Delete("/devices/{areaDeviceId}", s.handleDeleteAreaDevice)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", s.handleListProjectsPaginated)
				r.Post("/", s.handleCreateProject)
				r.Put("/", s.handleUpdateProject)
				r.Get("/all", s.handleListProjects)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetProject)
					r.Delete("/", s.handleDeleteProject)
					r.Get("/areas", s.handleProjectAreas)
					r.Get("/areas/roots", s.handleProjectRootAreas)
					r.Get("/devices", s.handleProjectDevices)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevicesPaginated)
				r.Post("/", s.handleCreateDevice)
				r.Put("/", s.handleUpdateDevice)
				r.Get("/all", s.handleListDevices)
				r.Get("/{id}", s.handleGetDevice)
				r.Delete("/{id}", s.handleDeleteDevice)
			})

			r.Route("/roles", func(r chi.Router) {
				r.Get("/", s.handleListRoles)
				r.Get("/paginated", s.handleListRolesPaginated)
				r.Post("/", s.handleCreateRole)
				r.Delete("/{id}", s.handleDeleteRole)
				r.Post("/{id}/permissions", s.handleGrantPermission)
				r.Delete("/{id}/permissions", s.handleRevokePermission)
				r.Post("/{id}/members/{userId}", s.handleAssignMember)
				r.Delete("/{id}/members/{userId}", s.handleRemoveMember)
			})

			r.Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}
