// Package api implements the HTTP surface of the route planning service.
package api

import (
	"net/http"
	"strings"

	"routeplan/internal/auth"
)

const defaultTenant = "t_demo"

// getPrincipal extracts tenant and role from a bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else falls back to X-Tenant-Id / X-Role for dev.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
	}
	tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if tenant == "" {
		tenant = defaultTenant
	}
	if role == "" {
		role = "admin"
	}
	return auth.Principal{Tenant: tenant, Role: role}
}

// bearerRejected reports whether the request carried a bearer token the verifier refused.
func (s *Server) bearerRejected(r *http.Request) error {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") || s.Auth == nil {
		return nil
	}
	_, err := s.Auth.Verify(strings.TrimSpace(authz[len("Bearer "):]))
	return err
}
