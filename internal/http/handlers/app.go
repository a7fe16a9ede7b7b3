package handlers

import (
	"encoding/json"
	"net/http"

	"roomviz/internal/analytics"
	"roomviz/internal/catalog"
	"roomviz/internal/generation"
	"roomviz/internal/infra"
	"roomviz/internal/storage"
)

// App is the handler container: every request handler hangs off it and pulls
// its collaborators from here.
type App struct {
	Catalog   catalog.Catalog
	Claimer   *generation.Claimer
	Engine    *generation.Engine
	Store     storage.ObjectStore
	Analytics *analytics.Recorder
	Logger    infra.Logger

	// StorageBaseURL prefixes stored object keys into client-facing URLs.
	StorageBaseURL string
	// DefaultModel is used when a request does not pin a model.
	DefaultModel string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: kind, Message: message})
}

func (a *App) assetURL(key string) string {
	if key == "" {
		return ""
	}
	base := a.StorageBaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	for len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	return base + "/" + key
}
