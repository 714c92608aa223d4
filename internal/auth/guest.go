package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	authmw "github.com/mind-engage/pruefungstrainer/internal/auth/middleware"
	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/rbac"
)

const (
	guestCookie = "pt_guest_id"
	guestPrefix = "guest|"
	guestTTL    = 30 * 24 * time.Hour
)

// GuestLoginHandler issues a learner token. A returning browser keeps its
// guest id through a cookie so results and preferences follow it.
func GuestLoginHandler(a *authmw.AuthService, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.EnableGuestAuth {
			http.Error(w, "guest auth disabled", http.StatusForbidden)
			return
		}

		userID := ""
		if c, err := r.Cookie(guestCookie); err == nil && strings.HasPrefix(c.Value, guestPrefix) {
			if _, err := uuid.Parse(strings.TrimPrefix(c.Value, guestPrefix)); err == nil {
				userID = c.Value
			}
		}
		if userID == "" {
			userID = guestPrefix + uuid.NewString()
		}

		tok, err := a.IssueJWT(userID, rbac.RoleLearner)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     guestCookie,
			Value:    userID,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
			Expires:  time.Now().Add(guestTTL),
		})
		username := "gast-" + userID[len(userID)-6:]
		authmw.WriteToken(w, tok, username, rbac.RoleLearner)
	}
}
