package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/graphfront/sparql-proxy/internal/api/respond"
)

const adminCookie = "sparql-proxy-admin"

// handleAdmin authenticates with basic auth and hands out the admin cookie
// that grants access to the live channel, then serves the dashboard.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok ||
		subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.AdminUser)) != 1 ||
		subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.AdminPassword)) != 1 {
		w.Header().Set("WWW-Authenticate", `Basic realm="sparql-proxy admin"`)
		respond.WriteJSON(w, http.StatusUnauthorized, respond.ErrorResponse{Message: "authentication required"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    s.secret,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	s.log.Info().Str("user", user).Msg("admin authenticated")
	serveStatic(w, r, "admin.html")
}

// AdminAuthorized reports whether r carries a valid admin cookie. The live
// channel uses it to gate the websocket handshake.
func (s *Server) AdminAuthorized(r *http.Request) bool {
	c, err := r.Cookie(adminCookie)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(s.secret)) == 1
}
