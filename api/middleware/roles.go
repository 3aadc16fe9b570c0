package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/internal/permissions"
	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

const (
	redirectParam    = "redirect"
	redirectToHeader = "X-Redirect-To"
)

// LoadingPayload is served while a session is still hydrating.
type LoadingPayload struct {
	Status string `json:"status"`
}

// RequireAuthenticated lets authenticated sessions through. A session still
// hydrating after the configured wait gets a neutral loading response; a
// logged-out one is sent to the login path with the requested location.
func RequireAuthenticated(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			store, ok := settledSession(ctx, w, cfg, logg)
			if !ok {
				return
			}
			if store.IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}

			target := LoginRedirect(cfg.LoginPath, r.URL.RequestURI())
			if wantsHTML(r) {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			w.Header().Set(redirectToHeader, target)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required").
				WithDetails(map[string]any{"redirect_to": target}))
		})
	}
}

// RequireAccess enforces a fixed policy.
func RequireAccess(policy permissions.Policy, logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireAccessFunc(func(*http.Request) (permissions.Policy, error) { return policy, nil }, logg)
}

// RequireAccessFunc enforces the policy resolved for each request. Denials
// render forbidden or redirect, as the policy says.
func RequireAccessFunc(resolve func(*http.Request) (permissions.Policy, error), logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			policy, err := resolve(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			decision := permissions.Evaluate(UserFromContext(ctx), policy)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if logg != nil {
				logg.Warn(logg.WithField(ctx, "deny_reason", decision.Reason), "access.denied")
			}
			if !decision.Forbidden && wantsHTML(r) {
				http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
				return
			}
			if decision.RedirectTo != "" {
				w.Header().Set(redirectToHeader, decision.RedirectTo)
			}
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeForbidden, "access denied"))
		})
	}
}

// PublicOnly keeps signed-in visitors away from entry points such as login.
func PublicOnly(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			store, ok := settledSession(ctx, w, cfg, logg)
			if !ok {
				return
			}
			if !store.IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if wantsHTML(r) {
				http.Redirect(w, r, cfg.DefaultRoute, http.StatusFound)
				return
			}
			w.Header().Set(redirectToHeader, cfg.DefaultRoute)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "already signed in"))
		})
	}
}

// LoginRedirect builds the login location that returns to requested.
func LoginRedirect(loginPath, requested string) string {
	if requested == "" || requested == loginPath {
		return loginPath
	}
	return loginPath + "?" + url.Values{redirectParam: {requested}}.Encode()
}

// settledSession waits for hydration, writing the loading response when
// the wait runs out.
func settledSession(ctx context.Context, w http.ResponseWriter, cfg config.SessionConfig, logg *logger.Logger) (*session.Store, bool) {
	store := SessionFromContext(ctx)
	if store == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session context missing"))
		return nil, false
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.HydrationWait)
	defer cancel()
	if err := store.WaitReady(waitCtx); err != nil {
		w.Header().Set("Retry-After", "1")
		responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, LoadingPayload{Status: "loading"})
		return nil, false
	}
	return store, true
}

func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
