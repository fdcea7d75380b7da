package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/ytget/yt-telegram-bot/internal/catalog"
	"github.com/ytget/yt-telegram-bot/internal/delivery"
	"github.com/ytget/yt-telegram-bot/internal/download"
	"github.com/ytget/yt-telegram-bot/internal/i18n"
	"github.com/ytget/yt-telegram-bot/internal/metrics"
	"github.com/ytget/yt-telegram-bot/internal/model"
	"github.com/ytget/yt-telegram-bot/internal/platform"
	"github.com/ytget/yt-telegram-bot/internal/progress"
	"github.com/ytget/yt-telegram-bot/internal/transcode"
)

// Stage names used for metrics
const (
	StageCatalog = "catalog"
	StageAcquire = "acquire"
	StageMerge   = "merge"
	StageConvert = "convert"
	StageSize    = "size"
	StageDeliver = "deliver"
)

// OutcomeSuccess labels successful sessions and acquisitions
const OutcomeSuccess = "success"

// terminalTimeout bounds the final message when the session context is gone
const terminalTimeout = 30 * time.Second

// Conversation is the user-facing side of one chat
type Conversation interface {
	// SendStatus posts a new status message
	SendStatus(ctx context.Context, text string) error
	// EditStatus updates the last status message; updates may be coalesced
	EditStatus(ctx context.Context, text string) error
	// SendFile uploads one file. Failures worth retrying match model.ErrTransportTransient.
	SendFile(ctx context.Context, upload model.Upload) error
}

// Options holds the pipeline policy values
type Options struct {
	WorkDir           string
	LadderMaxLevels   int
	ProgressInterval  time.Duration
	ProgressThreshold int
	RetryAttempts     int
	RetryDelay        time.Duration
	SessionTTL        time.Duration
	Workers           int
}

// Components are the collaborators a Service drives
type Components struct {
	Builder  *catalog.Builder
	Executor *download.Executor
	Tool     transcode.Tool
	Splitter *delivery.Splitter
	Cleaner  *platform.Cleaner
	Texts    *i18n.Localization
}

// Offer is what a freshly opened session shows the user
type Offer struct {
	SessionID string
	Title     string
	Duration  string
	Views     int64
	Ladder    model.QualityLadder
}

// Service orchestrates sessions for every conversation
type Service struct {
	opts  Options
	comp  Components
	store *Store
	pool  *Pool
	log   *logrus.Entry
}

// NewService creates a pipeline service
func NewService(opts Options, comp Components, log *logrus.Entry) *Service {
	s := &Service{
		opts: opts,
		comp: comp,
		pool: NewPool(opts.Workers),
		log:  log.WithField("component", "pipeline"),
	}
	s.store = NewStore(opts.SessionTTL, s.cleanup)
	return s
}

// InUse reports whether path belongs to a live session; the janitor keeps such paths
func (s *Service) InUse(path string) bool {
	return s.store.InUse(path)
}

// Close waits for all offloaded operations to return
func (s *Service) Close() {
	s.pool.Wait()
}

// Open starts a new session for chatID: the catalog of ref is queried and
// reduced to a ladder. A previous session that is not in flight is discarded
// first; one in flight makes Open fail with model.ErrSessionBusy.
func (s *Service) Open(ctx context.Context, chatID int64, ref model.SourceReference) (Offer, error) {
	sess := newSession(chatID, ref, s.opts.WorkDir)
	if err := s.store.Replace(sess); err != nil {
		return Offer{}, err
	}
	log := s.log.WithFields(logrus.Fields{"session_id": sess.ID, "chat_id": chatID})
	log.WithField("source", ref).Info("session opened")

	start := time.Now()
	cat, err := Run(ctx, s.pool, func(ctx context.Context) (*model.Catalog, error) {
		return s.comp.Builder.Build(ctx, ref)
	})
	metrics.ObserveStage(StageCatalog, start)
	if err != nil {
		log.WithError(err).Warn("catalog failed")
		sess.fail()
		s.store.DeleteIf(sess)
		metrics.RecordSession(string(model.Kind(err)))
		return Offer{}, err
	}

	ladder := catalog.CapLadder(catalog.BuildLadder(cat), s.opts.LadderMaxLevels)
	// a newer link may have replaced this one while the catalog was loading
	if err := sess.offer(cat, ladder); err != nil || !s.store.IsCurrent(sess) {
		return Offer{}, model.ErrSessionExpired
	}

	log.WithField("ladder", ladder).Info("catalog ready")
	return Offer{
		SessionID: sess.ID,
		Title:     cat.Title,
		Duration:  cat.GetDurationString(),
		Views:     cat.Views,
		Ladder:    ladder,
	}, nil
}

// Discard drops the chat's session and removes its files. A session in
// flight is left alone and model.ErrSessionBusy returned.
func (s *Service) Discard(chatID int64) error {
	return s.store.Retire(chatID)
}

// Select runs the chat's session for label to a terminal state. Exactly one
// terminal message is posted to conv, and every working file is removed
// before Select returns. A sessionID that is not the chat's current session
// is answered as expired.
func (s *Service) Select(ctx context.Context, chatID int64, sessionID, label string, conv Conversation) error {
	texts := s.comp.Texts

	sess, ok := s.store.Get(chatID)
	if !ok || sess.ID != sessionID {
		s.terminal(ctx, conv, texts.GetText(i18n.KeySessionExpired))
		return model.ErrSessionExpired
	}
	if err := sess.begin(); err != nil {
		s.terminal(ctx, conv, s.errorText(err))
		return err
	}
	s.store.Pin(sess)

	metrics.ActiveAcquisitions.Inc()
	defer metrics.ActiveAcquisitions.Dec()

	log := s.log.WithFields(logrus.Fields{"session_id": sess.ID, "chat_id": chatID, "label": label})
	log.Info("selection started")

	done, err := s.run(ctx, sess, label, conv, log)

	s.cleanup(sess)
	s.store.DeleteIf(sess)

	if err != nil {
		sess.fail()
		log.WithError(err).Error("session failed")
		metrics.RecordSession(string(model.Kind(err)))
		s.terminal(ctx, conv, s.errorText(err))
		return err
	}

	log.Info("session succeeded")
	metrics.RecordSession(OutcomeSuccess)
	s.terminal(ctx, conv, done)
	return nil
}

// run walks the state machine and returns the success text
func (s *Service) run(ctx context.Context, sess *Session, label string, conv Conversation, log *logrus.Entry) (string, error) {
	texts := s.comp.Texts
	cat, _ := sess.Catalog()

	plan, err := catalog.Resolve(cat, label)
	if err != nil {
		return "", err
	}
	log = log.WithField("plan", plan.Kind)

	if err := sess.transition(model.SessionAcquiring); err != nil {
		return "", err
	}
	s.status(ctx, conv, texts.GetText(i18n.KeyStartingDownload), log)

	start := time.Now()
	backend := s.comp.Executor.Backend().Name()
	acq, err := monitored(ctx, s, conv, i18n.KeyDownloadProgress, func(ctx context.Context, cell *progress.Cell) (model.Acquisition, error) {
		return s.comp.Executor.Acquire(ctx, sess.Source, cat.Title, plan, sess.Dir, cell.Update)
	})
	sess.track(acq.Paths()...)
	metrics.ObserveStage(StageAcquire, start)
	if err != nil {
		metrics.RecordAcquisition(backend, string(plan.Kind), string(model.Kind(err)))
		return "", err
	}
	metrics.RecordAcquisition(backend, string(plan.Kind), OutcomeSuccess)

	artifact, err := s.produce(ctx, sess, plan, acq, conv, log)
	if err != nil {
		return "", err
	}

	if err := sess.transition(model.SessionSizing); err != nil {
		return "", err
	}
	start = time.Now()
	units, err := s.comp.Splitter.Plan(artifact)
	metrics.ObserveStage(StageSize, start)
	if err != nil {
		return "", err
	}
	for _, u := range units {
		if u.IsPart() {
			sess.track(u.Path)
		}
	}

	if err := sess.transition(model.SessionDelivering); err != nil {
		return "", err
	}
	switch {
	case len(units) > 1:
		s.status(ctx, conv, texts.Sprintf(i18n.KeySendingParts, len(units)), log)
	case artifact.Kind == model.FileAudio:
		s.status(ctx, conv, texts.GetText(i18n.KeySendingAudio), log)
	default:
		s.status(ctx, conv, texts.GetText(i18n.KeySendingVideo), log)
	}

	start = time.Now()
	sender := delivery.NewSender(conv, s.opts.RetryAttempts, s.opts.RetryDelay, s.comp.Cleaner, log)
	err = sender.SendAll(ctx, units, s.uploadFor(artifact))
	metrics.ObserveStage(StageDeliver, start)
	if err != nil {
		return "", err
	}

	if err := sess.transition(model.SessionSucceeded); err != nil {
		return "", err
	}

	switch {
	case artifact.Degraded:
		return texts.GetText(i18n.KeyDegradedSent), nil
	case len(units) > 1:
		return texts.Sprintf(i18n.KeyPartsSent, len(units)), nil
	case artifact.Kind == model.FileAudio:
		return texts.GetText(i18n.KeyAudioSent), nil
	default:
		return texts.GetText(i18n.KeyVideoSent), nil
	}
}

// produce turns the acquired streams into the artifact to deliver
func (s *Service) produce(ctx context.Context, sess *Session, plan model.SelectionPlan, acq model.Acquisition, conv Conversation, log *logrus.Entry) (model.Artifact, error) {
	texts := s.comp.Texts
	primary := acq.Primary()

	switch plan.Kind {
	case model.PlanCombined:
		return primary, nil

	case model.PlanMerge:
		if len(acq.Streams) != 2 {
			return model.Artifact{}, fmt.Errorf("%w: expected 2 streams, got %d", model.ErrMergeFailed, len(acq.Streams))
		}
		if err := sess.transition(model.SessionMerging); err != nil {
			return model.Artifact{}, err
		}
		s.status(ctx, conv, texts.GetText(i18n.KeyMerging), log)

		start := time.Now()
		merged, err := monitored(ctx, s, conv, i18n.KeyMergeProgress, func(ctx context.Context, cell *progress.Cell) (string, error) {
			return s.comp.Tool.Mux(ctx, acq.Streams[0].Path, acq.Streams[1].Path, cell.Update)
		})
		metrics.ObserveStage(StageMerge, start)
		sess.track(merged)

		switch {
		case err == nil:
			return model.Artifact{Path: merged, Title: acq.Title, Kind: model.FileVideo}, nil
		case errors.Is(err, model.ErrMergeFailed):
			log.WithError(err).Warn("merge failed, delivering video without audio")
			degraded := primary
			degraded.Kind = model.FileVideo
			degraded.Degraded = true
			return degraded, nil
		default:
			return model.Artifact{}, err
		}

	case model.PlanAudio:
		if err := sess.transition(model.SessionMerging); err != nil {
			return model.Artifact{}, err
		}
		s.status(ctx, conv, texts.GetText(i18n.KeyConverting), log)

		start := time.Now()
		mp3, err := monitored(ctx, s, conv, i18n.KeyConvertProgress, func(ctx context.Context, cell *progress.Cell) (string, error) {
			return s.comp.Tool.ExtractAudio(ctx, primary.Path, cell.Update)
		})
		metrics.ObserveStage(StageConvert, start)
		sess.track(mp3)
		if err != nil {
			return model.Artifact{}, err
		}
		return model.Artifact{Path: mp3, Title: acq.Title, Kind: model.FileAudio}, nil
	}

	return model.Artifact{}, fmt.Errorf("%w: unknown plan kind %q", model.ErrNotFound, plan.Kind)
}

// uploadFor presents delivery units of artifact to the transport
func (s *Service) uploadFor(artifact model.Artifact) delivery.UploadFunc {
	texts := s.comp.Texts
	title := artifact.GetDisplayTitle()

	return func(unit model.DeliveryUnit) model.Upload {
		up := model.Upload{Path: unit.Path, Kind: artifact.Kind, Title: title}
		switch {
		case unit.IsPart():
			up.Kind = model.FileDocument
			up.Caption = texts.Sprintf(i18n.KeyCaptionPart, title, unit.Index, unit.Total)
		case artifact.Degraded:
			up.Caption = texts.Sprintf(i18n.KeyCaptionNoAudio, title)
		case artifact.Kind == model.FileAudio:
			up.Caption = texts.Sprintf(i18n.KeyCaptionAudio, title)
		default:
			up.Caption = texts.Sprintf(i18n.KeyCaptionVideo, title)
		}
		return up
	}
}

// monitored runs fn on the pool with a progress monitor editing the status
// with key. The monitor is stopped and joined before monitored returns.
func monitored[T any](ctx context.Context, s *Service, conv Conversation, key i18n.Key, fn func(context.Context, *progress.Cell) (T, error)) (T, error) {
	cell := &progress.Cell{}
	mon := progress.NewMonitor(cell, s.opts.ProgressInterval, s.opts.ProgressThreshold, func(ctx context.Context, pct int) {
		if err := conv.EditStatus(ctx, s.comp.Texts.Sprintf(key, pct)); err != nil {
			s.log.WithError(err).Debug("progress update dropped")
		}
	})

	stop := mon.Start(ctx)
	defer stop()

	return Run(ctx, s.pool, func(ctx context.Context) (T, error) {
		return fn(ctx, cell)
	})
}

func (s *Service) status(ctx context.Context, conv Conversation, text string, log *logrus.Entry) {
	if err := conv.SendStatus(ctx, text); err != nil {
		log.WithError(err).Warn("status message failed")
	}
}

// terminal posts the final message even when ctx was canceled
func (s *Service) terminal(ctx context.Context, conv Conversation, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalTimeout)
	defer cancel()
	if err := conv.SendStatus(ctx, text); err != nil {
		s.log.WithError(err).Error("terminal message failed")
	}
}

// cleanup removes every working file of sess
func (s *Service) cleanup(sess *Session) {
	s.comp.Cleaner.Remove(sess.Files()...)
	s.comp.Cleaner.RemoveDir(sess.Dir)
}

// errorText selects the user-facing text for a terminal error
func (s *Service) errorText(err error) string {
	texts := s.comp.Texts

	switch model.Kind(err) {
	case model.KindSourceUnavailable:
		return texts.GetText(i18n.KeySourceFailed)
	case model.KindNoFormatsFound:
		return texts.GetText(i18n.KeyNoFormats)
	case model.KindNotFound:
		return texts.GetText(i18n.KeyNotFound)
	case model.KindFormatGone:
		return texts.GetText(i18n.KeyFormatGone)
	case model.KindSizeRejected:
		var sizeErr *model.SizeRejectedError
		if errors.As(err, &sizeErr) {
			return texts.Sprintf(i18n.KeySizeRejected, humanize.IBytes(uint64(sizeErr.Size)), humanize.IBytes(uint64(sizeErr.Limit)))
		}
		return texts.Sprintf(i18n.KeySizeRejected, "?", "?")
	case model.KindMergeFailed:
		return texts.GetText(i18n.KeyMergeFailed)
	case model.KindConversionFailed:
		return texts.GetText(i18n.KeyConversionFailed)
	case model.KindDeliveryFailed, model.KindTransient:
		return texts.GetText(i18n.KeyDeliveryFailed)
	case model.KindSessionBusy:
		return texts.GetText(i18n.KeyBusy)
	case model.KindSessionExpired:
		return texts.GetText(i18n.KeySessionExpired)
	default:
		return texts.GetText(i18n.KeyUnknownError)
	}
}

// ErrorText exposes the user-facing text for err, e.g. for failures of Open
func (s *Service) ErrorText(err error) string {
	return s.errorText(err)
}
