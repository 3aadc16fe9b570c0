package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/thaitruongdao01-afk/saintpaul/api/middleware"
	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/internal/preferences"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

type sidebarAction func(ctx context.Context, sb *preferences.Sidebar, r *http.Request) error

// Sidebar runs action against the session's sidebar and answers with the
// resulting state. A nil action only reads.
func Sidebar(prefs *preferences.Registry, logg *logger.Logger, action sidebarAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := middleware.SessionIDFromContext(r.Context())
		if sid == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}
		sb := prefs.Sidebar(r.Context(), sid)
		if action != nil {
			if err := action(r.Context(), sb, r); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, sb.Snapshot())
	}
}

func simple(fn func(*preferences.Sidebar, context.Context)) sidebarAction {
	return func(ctx context.Context, sb *preferences.Sidebar, _ *http.Request) error {
		fn(sb, ctx)
		return nil
	}
}

func byID(param string, fn func(*preferences.Sidebar, context.Context, string)) sidebarAction {
	return func(ctx context.Context, sb *preferences.Sidebar, r *http.Request) error {
		id := strings.TrimSpace(chi.URLParam(r, param))
		if id == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "identifier is required").WithDetails(map[string]any{"field": param})
		}
		fn(sb, ctx, id)
		return nil
	}
}

var (
	SidebarToggle        = simple((*preferences.Sidebar).Toggle)
	SidebarOpen          = simple((*preferences.Sidebar).Open)
	SidebarClose         = simple((*preferences.Sidebar).Close)
	SidebarToggleCompact = simple((*preferences.Sidebar).ToggleCompact)
	SidebarReset         = simple((*preferences.Sidebar).Reset)
	SidebarCollapseAll   = simple((*preferences.Sidebar).CollapseAllGroups)
	SidebarClearPins     = simple((*preferences.Sidebar).ClearPins)

	SidebarToggleGroup   = byID("groupID", (*preferences.Sidebar).ToggleGroup)
	SidebarExpandGroup   = byID("groupID", (*preferences.Sidebar).ExpandGroup)
	SidebarCollapseGroup = byID("groupID", (*preferences.Sidebar).CollapseGroup)

	SidebarTogglePin = byID("itemID", (*preferences.Sidebar).TogglePin)
	SidebarPin       = byID("itemID", (*preferences.Sidebar).PinItem)
	SidebarUnpin     = byID("itemID", (*preferences.Sidebar).UnpinItem)
)
