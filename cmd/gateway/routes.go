package main

import (
	"context"
	"net/http"

	"github.com/vitaliydpua/appgw/internal/auth"
	"github.com/vitaliydpua/appgw/internal/dispatch"
)

// builtinRoutes returns the routes the gateway itself owns. Product
// routes are registered by the embedding service through RegisterRoutes.
func builtinRoutes() []dispatch.Route {
	return []dispatch.Route{
		{
			Method:    http.MethodGet,
			Path:      "/v1/session",
			AuthLevel: auth.LevelSession,
			Handler:   sessionInfo,
		},
		{
			Method:          http.MethodGet,
			Path:            "/v1/me",
			AuthLevel:       auth.LevelUser,
			CacheHashFields: []string{"userId", "phone", "locale"},
			HistoryCursor:   true,
			Handler:         userInfo,
		},
	}
}

// sessionInfo reports the session-level trust context.
func sessionInfo(_ context.Context, req *dispatch.Request) (any, error) {
	return map[string]any{
		"sessionId":      req.Auth.SessionID,
		"installationId": req.Auth.InstallationID,
	}, nil
}

// userInfo reports the user-level trust context.
func userInfo(_ context.Context, req *dispatch.Request) (any, error) {
	return map[string]any{
		"userId":         req.Auth.UserID,
		"phone":          req.Auth.Phone,
		"locale":         req.Auth.Locale,
		"counterpartyId": req.Auth.CounterpartyID,
	}, nil
}
