package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"roomviz/internal/storage"
)

// Asset streams a stored object. In production the storage bucket sits behind
// a CDN and this handler only serves local development traffic.
func (a *App) Asset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "asset key required")
		return
	}
	// Pending runs keep their scratch frames private.
	if strings.HasPrefix(key, "tmp/") {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	data, err := a.Store.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("assets: read object")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read asset")
		return
	}
	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
