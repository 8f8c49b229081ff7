package verify

import (
	"context"

	"github.com/robfig/cron/v3"

	"crosspost/pkg/logx"
)

// Sweeper re-runs verification on a cron schedule, catching content that
// disappears or propagates late after the initial pass.
type Sweeper struct {
	cron *cron.Cron
	log  logx.Logger
}

// NewSweeper schedules fn on the given cron spec (standard 5-field format).
// An empty spec returns a nil Sweeper, which is a no-op to Start and Stop.
func NewSweeper(spec string, fn func(context.Context), log logx.Logger) (*Sweeper, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		fn(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return &Sweeper{cron: c, log: log}, nil
}

func (s *Sweeper) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.log.Info("verification sweeper started")
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}
