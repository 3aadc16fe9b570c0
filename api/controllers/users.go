package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/thaitruongdao01-afk/saintpaul/api/middleware"
	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/api/validators"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

// UserCreator forwards a validated user form to the backend.
type UserCreator interface {
	CreateUser(ctx context.Context, token string, form any) (json.RawMessage, error)
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	FullName    string `json:"full_name" validate:"required,max=128"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,vnphone"`
	IDCard      string `json:"id_card,omitempty" validate:"omitempty,idcard"`
	Password    string `json:"password" validate:"required,strongpassword"`
	Role        string `json:"role" validate:"required,role"`
	CommunityID string `json:"community_id,omitempty" validate:"omitempty,max=64"`
}

// UsersCreate validates the form locally; invalid forms never reach the
// backend.
func UsersCreate(backend UserCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := middleware.SessionFromContext(r.Context())
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session unavailable"))
			return
		}

		var form createUserRequest
		if err := validators.DecodeJSONBody(r, &form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form.Username = validators.SanitizeString(form.Username, 64)
		form.FullName = validators.SanitizeString(form.FullName, 128)

		created, err := backend.CreateUser(r.Context(), store.Token(), form)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
				store.Invalidate(r.Context(), "backend rejected token")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		logg.Info(logg.WithField(r.Context(), "username", form.Username), "user.created")
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}
