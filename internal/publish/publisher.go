package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"breakwatch/internal/config"
	"breakwatch/internal/model"
)

// ViolationNotice is the message emitted for each anti-passback
// violation that surfaces in a report.
type ViolationNotice struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Message   string    `json:"message"`
	EventType string    `json:"eventType"`
	EmittedAt time.Time `json:"emittedAt"`
}

// Publisher fans violation records out to an optional kafka topic and
// keeps a bounded ring of recent notices for the API.
type Publisher struct {
	writer *kafka.Writer
	recent *Ring
	logger *slog.Logger
}

func New(cfg config.PublishConfig, logger *slog.Logger) *Publisher {
	p := &Publisher{
		recent: NewRing(cfg.StoreLimit),
		logger: logger,
	}
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("violation publisher disabled")
		}
		return p
	}
	if logger != nil {
		logger.Info("violation publisher enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return p
}

func (p *Publisher) PublishViolations(ctx context.Context, userID, userName string, violations []model.ViolationRecord) {
	for _, v := range violations {
		notice := ViolationNotice{
			UserID:    userID,
			UserName:  userName,
			Date:      v.Date,
			Time:      v.Time,
			Message:   v.Message,
			EventType: v.EventType,
			EmittedAt: time.Now().UTC(),
		}
		p.recent.Add(notice)
		if p.writer == nil {
			continue
		}
		value, err := json.Marshal(notice)
		if err != nil {
			continue
		}
		if err := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(userID),
			Value: value,
		}); err != nil && p.logger != nil {
			p.logger.Warn("kafka publish failed", "user_id", userID, "err", err)
		}
	}
}

func (p *Publisher) Recent(limit int) []ViolationNotice {
	return p.recent.List(limit)
}

func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
