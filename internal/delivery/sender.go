package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/ytget/yt-telegram-bot/internal/metrics"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
)

// Retry defaults
const (
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

// Transport sends one file. Failures worth retrying are marked with model.MarkTransient.
type Transport interface {
	SendFile(ctx context.Context, upload model.Upload) error
}

// UploadFunc describes how a unit is presented to the transport
type UploadFunc func(unit model.DeliveryUnit) model.Upload

// Sender is the delivery retry controller
type Sender struct {
	transport Transport
	attempts  int
	delay     time.Duration
	cleaner   *platform.Cleaner
	log       *logrus.Entry
}

// NewSender creates a sender making at most attempts transport calls per unit
func NewSender(transport Transport, attempts int, delay time.Duration, cleaner *platform.Cleaner, log *logrus.Entry) *Sender {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Sender{
		transport: transport,
		attempts:  attempts,
		delay:     delay,
		cleaner:   cleaner,
		log:       log.WithField("component", "sender"),
	}
}

// Send delivers one upload, retrying transient failures. Any failure matches
// model.ErrDeliveryFailed and wraps the last transport error.
func (s *Sender) Send(ctx context.Context, upload model.Upload) error {
	log := s.log.WithField("path", upload.Path)
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++
		err := s.transport.SendFile(ctx, upload)
		switch {
		case err == nil:
			metrics.RecordDeliveryAttempt("ok")
			return struct{}{}, nil
		case model.IsTransient(err):
			metrics.RecordDeliveryAttempt("transient")
			log.WithError(err).WithField("attempt", attempt).Warn("transient delivery failure")
			return struct{}{}, err
		default:
			metrics.RecordDeliveryAttempt("permanent")
			return struct{}{}, backoff.Permanent(err)
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.delay)),
		backoff.WithMaxTries(uint(s.attempts)),
		// the attempt count is the only bound
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return fmt.Errorf("%w after %d attempt(s): %w", model.ErrDeliveryFailed, attempt, err)
}

// SendAll delivers units in order. A delivered part file is deleted right
// away; the first failure aborts the sequence and removes the parts not yet sent.
// The whole-artifact unit is never deleted here.
func (s *Sender) SendAll(ctx context.Context, units []model.DeliveryUnit, upload UploadFunc) error {
	for i, unit := range units {
		if err := s.Send(ctx, upload(unit)); err != nil {
			s.discard(units[i:])
			return fmt.Errorf("unit %d/%d: %w", unit.Index, unit.Total, err)
		}
		if unit.IsPart() {
			metrics.PartsSentTotal.Inc()
			s.cleaner.Remove(unit.Path)
		}
		s.log.WithFields(logrus.Fields{"index": unit.Index, "total": unit.Total}).Info("unit delivered")
	}
	return nil
}

func (s *Sender) discard(units []model.DeliveryUnit) {
	paths := make([]string, 0, len(units))
	for _, u := range units {
		if u.IsPart() {
			paths = append(paths, u.Path)
		}
	}
	s.cleaner.Remove(paths...)
}
