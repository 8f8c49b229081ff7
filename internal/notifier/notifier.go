// Package notifier pushes run summaries to an operator chat.
//
// Delivery is best-effort: a full queue drops the message rather than
// blocking a distribution run, and notifier failures never take down the
// app.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	rtsup "crosspost/internal/runtime/supervisor"
	"crosspost/internal/stats"
	"crosspost/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
)

// Config enables and tunes the Telegram notifier. A missing token keeps
// the notifier disabled regardless of Enabled.
type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64
	QueueSize  int
	RatePerSec float64
}

// Summary is one finished run as shown to operators.
type Summary struct {
	RunID string
	Title string
	Stats stats.Stats
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	bot     *tele.Bot
	log     logx.Logger
	limiter *rate.Limiter

	queue chan Summary
	sup   *rtsup.Supervisor
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
	if !cfg.Enabled || cfg.Token == "" {
		return s, nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: false,
		Poller:  nil,
	})
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	s.bot = bot
	return s, nil
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bot != nil
}

// Start spins up the delivery worker. Idempotent; a disabled notifier
// starts nothing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot == nil || s.queue != nil {
		return
	}
	s.queue = make(chan Summary, s.cfg.QueueSize)
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		rtsup.WithCancelOnError(false),
	)
	q := s.queue
	s.sup.Go("notifier.deliver", func(c context.Context) error {
		s.deliverLoop(c, q)
		return nil
	})
}

// Notify enqueues a summary. Returns ErrQueueFull instead of blocking.
func (s *Service) Notify(sum Summary) error {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return ErrDisabled
	}
	select {
	case q <- sum:
		return nil
	default:
		s.log.Warn("notification dropped", logx.String("run_id", sum.RunID))
		return ErrQueueFull
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	sup := s.sup
	q := s.queue
	s.queue = nil
	s.sup = nil
	s.mu.Unlock()
	if q != nil {
		close(q)
	}
	if sup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Stop(ctx)
	}
}

func (s *Service) deliverLoop(ctx context.Context, q <-chan Summary) {
	for {
		select {
		case <-ctx.Done():
			return
		case sum, ok := <-q:
			if !ok {
				return
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.send(sum); err != nil {
				s.log.Warn("notification send failed",
					logx.String("run_id", sum.RunID),
					logx.Err(err))
			}
		}
	}
}

func (s *Service) send(sum Summary) error {
	st := sum.Stats
	text := fmt.Sprintf(
		"Run %s finished\n%s\n\nAttempted: %d\nSucceeded: %d (%.0f%%)\nFailed: %d\nConfirmed: %d\nDisputed: %d\nUnconfirmed: %d\nNot checked: %d",
		sum.RunID, sum.Title,
		st.Attempted, st.Succeeded, st.SuccessRatePct, st.Failed,
		st.Confirmed, st.Disputed, st.Unconfirmed, st.NotAttempted,
	)
	_, err := s.bot.Send(&tele.Chat{ID: s.cfg.ChatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	return err
}
