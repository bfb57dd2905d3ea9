package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/appideasfinder/backend/pkg/httpx"
	"github.com/appideasfinder/backend/pkg/rbac"
	"github.com/appideasfinder/backend/pkg/session"
)

// resolveRole loads the caller's staff role and stores it in the request
// context. Users without a role are rejected before any handler runs.
func (s *Service) resolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := session.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, httpx.ErrUnauthorized)
			return
		}

		role, err := s.store.GetUserRole(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				httpx.Error(w, httpx.ErrForbidden)
				return
			}
			s.log.ErrorContext(r.Context(), "failed to load staff role",
				slog.String("user_id", userID.String()),
				slog.Any("error", err))
			httpx.Error(w, err)
			return
		}
		if role == nil {
			httpx.Error(w, httpx.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(rbac.WithRole(r.Context(), *role)))
	})
}

// requirePermission gates a route group on one admin capability.
func (s *Service) requirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.authorizer.CanFromContext(r.Context(), perm); err != nil {
				httpx.Error(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
