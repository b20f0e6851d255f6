package handlers

import (
	"encoding/json"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/sirupsen/logrus"
)

// CardEventHandler consumes card events from the broker and writes them
// to the log. It backs `imsd events tail`.
type CardEventHandler struct {
	log logrus.FieldLogger
}

func NewCardEventHandler(logger logrus.FieldLogger) *CardEventHandler {
	return &CardEventHandler{log: logger.WithField("component", "event-tail")}
}

func (h *CardEventHandler) HandleMessage(message string) error {
	var event dto.CardEvent

	if err := json.Unmarshal([]byte(message), &event); err != nil {
		h.log.WithField("payload", message).Warn("invalid event payload")
		return err
	}

	fields := logrus.Fields{
		"type":        event.Type,
		"card_id":     event.CardID,
		"occurred_at": event.OccurredAt,
	}
	if event.Status != "" {
		fields["status"] = event.Status
		fields["token_version"] = event.TokenVersion
	}
	if event.Result != "" {
		fields["result"] = event.Result
		fields["reason"] = event.Reason
	}
	if event.ActorID != 0 {
		fields["actor_id"] = event.ActorID
	}
	h.log.WithFields(fields).Info("card event")
	return nil
}
