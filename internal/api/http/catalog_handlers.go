package http

import (
	"net/http"

	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/session"
)

// GET /modules
func ListModulesHandler(mods config.Modules) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mods)
	}
}

// GET /catalog?module=lesen
func CatalogHandler(c session.Catalogs, mods config.Modules) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := mods.Lookup(r.URL.Query().Get("module"))
		cat, err := c.Catalog(mod.DataFile)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"module": mod.Name,
			"levels": cat.Outline(),
		})
	}
}
