package services

import "context"

type eventSink interface {
	Publish(userID int64, eventKind string, payload map[string]string)
}

// NotificationService dispatches relationship events over the websocket hub.
// The hub drops events it cannot queue, so Notify never blocks or fails.
type NotificationService struct {
	sink eventSink
}

func NewNotificationService(sink eventSink) *NotificationService {
	return &NotificationService{sink: sink}
}

func (s *NotificationService) Notify(
	_ context.Context,
	userID int64,
	eventKind string,
	payload map[string]string,
) error {
	s.sink.Publish(userID, eventKind, payload)
	return nil
}
