// Package refresh keeps the institute catalog warm and the week cache
// pruned on a cron schedule.
package refresh

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"istubot/internal/schedule"
	logx "istubot/pkg/logx"
)

const defaultSpec = "@every 30m"

type Service struct {
	cron   *cron.Cron
	client *schedule.Client
	log    logx.Logger
}

// New builds a refresh service with the given cron spec. An empty spec
// falls back to the default half-hourly run.
func New(spec string, client *schedule.Client, log logx.Logger) (*Service, error) {
	if spec == "" {
		spec = defaultSpec
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Service{
		cron:   cron.New(),
		client: client,
		log:    log,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Start() { s.cron.Start() }

func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// run refreshes the catalog and sweeps expired week entries. Failures
// are logged and retried on the next tick; the cached catalog stays
// usable in the meantime.
func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.client.RefreshInstitutes(ctx); err != nil {
		s.log.Warn("catalog refresh failed", logx.Err(err))
	}
	if n := s.client.SweepCache(); n > 0 {
		s.log.Debug("week cache swept", logx.Int("expired", n))
	}
}
