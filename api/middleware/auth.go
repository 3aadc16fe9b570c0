package middleware

import (
	"net/http"
	"time"

	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	pkgauth "github.com/thaitruongdao01-afk/saintpaul/pkg/auth"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

// SessionContext resolves the signed session cookie to a session store. A
// missing or invalid cookie starts a fresh session with a new cookie. The
// store of a session that is still unauthenticated once the request ends is
// released.
func SessionContext(cfg config.SessionConfig, sessions *session.Registry, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sid := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				claims, err := pkgauth.ParseSessionToken(cfg, cookie.Value)
				if err == nil {
					sid = claims.SessionID
				} else if logg != nil {
					logg.Debug(ctx, "session cookie rejected")
				}
			}

			if sid == "" {
				sid = pkgauth.NewSessionID()
				if err := IssueSessionCookie(w, cfg, sid, time.Now()); err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
			}

			if logg != nil {
				ctx = logg.WithSessionID(ctx, sid)
			}
			store, release := sessions.Acquire(ctx, sid)
			defer release()
			if logg != nil {
				if u := store.CurrentUser(); u != nil {
					ctx = logg.WithActorRole(logg.WithUserID(ctx, u.ID), string(u.Role))
				}
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, store)))
		})
	}
}

// IssueSessionCookie signs sid and sets it as the session cookie.
func IssueSessionCookie(w http.ResponseWriter, cfg config.SessionConfig, sid string, now time.Time) error {
	token, err := pkgauth.MintSessionToken(cfg, now, sid)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign session cookie")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  now.Add(cfg.TTL),
	})
	return nil
}
