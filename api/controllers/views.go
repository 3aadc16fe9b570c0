package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thaitruongdao01-afk/saintpaul/api/middleware"
	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/api/validators"
	"github.com/thaitruongdao01-afk/saintpaul/internal/views"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

// maxWaitMillis bounds the optional wait query parameter.
const maxWaitMillis = 5000

type viewAction func(v *views.View, r *http.Request) error

type pageRequest struct {
	Page int `json:"page" validate:"required"`
}

type pageSizeRequest struct {
	PageSize int `json:"page_size" validate:"required"`
}

type sortRequest struct {
	Field string `json:"field" validate:"required,max=64"`
}

type searchRequest struct {
	Term   string `json:"term" validate:"max=200"`
	Commit bool   `json:"commit"`
}

type filtersRequest struct {
	Filters map[string]any `json:"filters" validate:"required"`
}

// View resolves the session's view named by the {view} URL parameter, runs
// action against it and answers with its snapshot. With ?wait=<ms> the
// response waits for in-flight fetches first.
func View(reg *views.Registry, logg *logger.Logger, action viewAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := middleware.SessionIDFromContext(r.Context())
		store := middleware.SessionFromContext(r.Context())
		if sid == "" || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		wait, err := validators.ParseQueryInt(r, "wait", 0, 0, maxWaitMillis)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		name := chi.URLParam(r, "view")
		ctx := logg.WithView(r.Context(), name)
		v, err := reg.Get(ctx, sid, name, store)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if action != nil {
			if err := action(v, r); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		if wait > 0 {
			wctx, cancel := context.WithTimeout(ctx, time.Duration(wait)*time.Millisecond)
			_ = v.WaitIdle(wctx)
			cancel()
		}
		responses.WriteSuccess(w, v.Snapshot())
	}
}

func ViewGoToPage(v *views.View, r *http.Request) error {
	var body pageRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return err
	}
	v.Controller().GoToPage(body.Page)
	return nil
}

func ViewNextPage(v *views.View, _ *http.Request) error {
	v.Controller().NextPage()
	return nil
}

func ViewPreviousPage(v *views.View, _ *http.Request) error {
	v.Controller().PreviousPage()
	return nil
}

func ViewFirstPage(v *views.View, _ *http.Request) error {
	v.Controller().FirstPage()
	return nil
}

func ViewLastPage(v *views.View, _ *http.Request) error {
	v.Controller().LastPage()
	return nil
}

func ViewPageSize(v *views.View, r *http.Request) error {
	var body pageSizeRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return err
	}
	v.Controller().ChangePageSize(body.PageSize)
	return nil
}

func ViewSort(v *views.View, r *http.Request) error {
	var body sortRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return err
	}
	return v.Sort(body.Field)
}

// ViewSearch records a keystroke. The fetch happens once the term settles,
// or immediately when commit is set.
func ViewSearch(v *views.View, r *http.Request) error {
	var body searchRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return err
	}
	v.Controller().HandleSearch(body.Term)
	if body.Commit {
		v.Controller().CommitSearch()
	}
	return nil
}

func ViewRefresh(v *views.View, _ *http.Request) error {
	v.Refresh()
	return nil
}

func ViewReset(v *views.View, _ *http.Request) error {
	v.Controller().Reset()
	return nil
}

func ViewUpdateFilters(v *views.View, r *http.Request) error {
	var body filtersRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return err
	}
	return v.UpdateFilters(body.Filters)
}

func ViewClearFilters(v *views.View, _ *http.Request) error {
	v.Controller().ClearFilters()
	return nil
}

func ViewRemoveFilter(v *views.View, r *http.Request) error {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "filter key is required")
	}
	return v.RemoveFilter(key)
}
