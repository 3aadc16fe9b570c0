package controllers

import (
	"net/http"
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/api/middleware"
	"github.com/thaitruongdao01-afk/saintpaul/api/responses"
	"github.com/thaitruongdao01-afk/saintpaul/internal/permissions"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

type actionsResponse struct {
	permissions.Actions
	CanEditSister   *bool `json:"canEditSister,omitempty"`
	CanDeleteSister bool  `json:"canDeleteSister"`
	IsAdmin         bool  `json:"isAdmin"`
	IsSuperior      bool  `json:"isSuperior"`
}

// PermissionActions reports what the current user may do. Passing
// community_id adds the edit decision for a sister of that community.
func PermissionActions(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		resp := actionsResponse{
			Actions:         permissions.AllowedActions(user),
			CanDeleteSister: permissions.CanDeleteSister(user),
			IsAdmin:         permissions.IsAdmin(user),
			IsSuperior:      permissions.IsSuperior(user),
		}
		if community := strings.TrimSpace(r.URL.Query().Get("community_id")); community != "" {
			allowed := permissions.CanEditSister(user, community)
			resp.CanEditSister = &allowed
		}
		responses.WriteSuccess(w, resp)
	}
}
