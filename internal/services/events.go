package services

import (
	"encoding/json"
	"time"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/interfaces"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/sirupsen/logrus"
)

// eventEmitter publishes card events best-effort. A nil producer turns
// it into a no-op.
type eventEmitter struct {
	producer interfaces.ProducerHandler
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

func (e eventEmitter) emit(ev dto.CardEvent) {
	if e.producer == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		e.log.WithError(err).Warn("encode card event")
		return
	}
	if err := e.producer.PublishMessage([]byte(ev.Type), payload); err != nil {
		e.metrics.EventPublishFailed()
		e.log.WithError(err).WithFields(logrus.Fields{
			"event":   ev.Type,
			"card_id": ev.CardID,
		}).Warn("publish card event")
	}
}
