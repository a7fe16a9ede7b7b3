package analytics

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"roomviz/internal/infra"
	"roomviz/internal/sqlinline"
)

// Event is one product-analytics datapoint emitted by the generation surface.
type Event struct {
	SessionID  string
	Route      string
	Model      string
	Country    string
	Locale     string
	Properties map[string]any
}

// Recorder persists analytics events. Recording is strictly best-effort: a
// storage failure is logged and swallowed so it can never affect a request.
type Recorder struct {
	db     infra.SQLExecutor
	logger infra.Logger
}

func NewRecorder(db infra.SQLExecutor, logger infra.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, event Event) {
	props := event.Properties
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		r.logger.Warn().Err(err).Str("route", event.Route).Msg("analytics: encode properties")
		return
	}
	_, err = r.db.Exec(ctx, sqlinline.QInsertAiEvent,
		uuid.New(),
		event.SessionID,
		event.Route,
		event.Model,
		event.Country,
		event.Locale,
		propsJSON,
	)
	if err != nil {
		r.logger.Warn().Err(err).Str("route", event.Route).Msg("analytics: record event")
	}
}
