// Package announcement calls patients on the waiting-room speakers. Calls
// are fire-and-forget: a failed publish is logged and counted, never
// returned to the caller.
package announcement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/triage-api/pkg/messaging"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

// Announcement is the message the display/speaker client consumes.
type Announcement struct {
	Text        string    `json:"text"`
	Repeat      int       `json:"repeat"`
	Tone        string    `json:"tone"`
	PatientName string    `json:"patient_name"`
	Room        string    `json:"room"`
	CalledAt    time.Time `json:"called_at"`
}

// Message is the spoken sentence for a call.
func Message(patientName, room string) string {
	return fmt.Sprintf("Chamando paciente %s, para a sala %s.", patientName, room)
}

type Announcer interface {
	Announce(ctx context.Context, patientName, room string)
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) Announce(context.Context, string, string) {}

type Config struct {
	Channel string
	Repeat  int
	Tone    string
	Timeout time.Duration
}

type Service struct {
	broker  messaging.Broker
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewService(broker messaging.Broker, cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if cfg.Repeat <= 0 {
		cfg.Repeat = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Service{
		broker:  broker,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Announce publishes in the background with its own deadline, so the call
// outlives the request that triggered it.
func (s *Service) Announce(_ context.Context, patientName, room string) {
	msg := Announcement{
		Text:        Message(patientName, room),
		Repeat:      s.cfg.Repeat,
		Tone:        s.cfg.Tone,
		PatientName: patientName,
		Room:        room,
		CalledAt:    s.now(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.metrics.Announcements.WithLabelValues("error").Inc()
				s.logger.Error().Interface("panic", r).Msg("announcement panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		if err := s.broker.Publish(ctx, s.cfg.Channel, msg); err != nil {
			s.metrics.Announcements.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("room", room).Msg("announcement failed")
			return
		}
		s.metrics.Announcements.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until in-flight announcements finish. Used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
