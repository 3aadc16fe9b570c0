package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/api/middleware"
	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/api/validators"
	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User       *session.User `json:"user"`
	RedirectTo string        `json:"redirect_to"`
}

type sessionResponse struct {
	State      string        `json:"state"`
	User       *session.User `json:"user,omitempty"`
	RedirectTo string        `json:"redirect_to,omitempty"`
}

// SessionEnder tears down everything bound to a session.
type SessionEnder interface {
	Logout(ctx context.Context, sessionID string)
}

// AuthLogin exchanges credentials for an authenticated session. The
// redirect query parameter is echoed back when it is a local path.
func AuthLogin(cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := middleware.SessionFromContext(r.Context())
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := store.Login(r.Context(), session.Credentials{
			Username: validators.SanitizeString(body.Username, 128),
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithUserID(r.Context(), user.ID)
		logg.Info(ctx, "session.login")

		responses.WriteSuccess(w, loginResponse{
			User:       user,
			RedirectTo: safeRedirect(r.URL.Query().Get("redirect"), cfg.DefaultRoute),
		})
	}
}

// AuthLogout ends the session locally even when the backend call fails.
func AuthLogout(sessions SessionEnder, cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := middleware.SessionIDFromContext(r.Context())
		if sid == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		sessions.Logout(r.Context(), sid)
		logg.Info(r.Context(), "session.logout")
		responses.WriteSuccess(w, map[string]string{
			"status":      "logged_out",
			"redirect_to": cfg.LoginPath,
		})
	}
}

// AuthSession reports the session state, waiting briefly for hydration.
func AuthSession(cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := middleware.SessionFromContext(r.Context())
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.HydrationWait)
		_ = store.WaitReady(ctx)
		cancel()

		snap := store.Snapshot()
		resp := sessionResponse{State: snap.State.String(), User: snap.User}
		if !snap.State.Settled() {
			resp.State = "loading"
		} else if !snap.IsAuthenticated() {
			resp.RedirectTo = cfg.LoginPath
		}
		responses.WriteSuccess(w, resp)
	}
}

func safeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	return target
}
