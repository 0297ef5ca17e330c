package analytics

import (
	"context"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/models"
)

// публичная ручка принимает только эти события
var trackable = map[string]struct{}{
	models.EventPageView:      {},
	models.EventCTAClick:      {},
	models.EventDownloadClick: {},
}

// TrackInput событие из браузера.
type TrackInput struct {
	Name       string            `json:"name" validate:"required,max=64"`
	Path       string            `json:"path" validate:"required,max=2048"`
	Properties map[string]string `json:"properties,omitempty" validate:"max=20"`
}

// Trackable сообщает, можно ли принять событие с публичной ручки.
func Trackable(name string) bool {
	_, ok := trackable[name]
	return ok
}

// Track публикует событие из браузера. userID может быть nil.
func (r *Recorder) Track(ctx context.Context, in TrackInput, userID *uuid.UUID) error {
	if !Trackable(in.Name) {
		return ErrEventNotAllowed
	}
	return r.Record(ctx, models.AnalyticsEvent{
		Name:       in.Name,
		UserID:     userID,
		Path:       in.Path,
		Properties: in.Properties,
	})
}
