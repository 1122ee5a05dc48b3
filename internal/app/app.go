// Package app wires configuration, logging, storage, the schedule
// client, the Telegram bot and the refresh job into one process.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"istubot/internal/bot"
	"istubot/internal/config"
	"istubot/internal/refresh"
	"istubot/internal/schedule"
	"istubot/internal/storage"
	logx "istubot/pkg/logx"
)

const defaultTimezone = "Asia/Irkutsk"

// logRelay forwards log lines to the bot once it exists. The logging
// service is built before the bot, so the sender is attached late.
type logRelay struct {
	mu sync.Mutex
	s  logx.Sender
}

func (r *logRelay) set(s logx.Sender) {
	r.mu.Lock()
	r.s = s
	r.mu.Unlock()
}

func (r *logRelay) SendLog(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	s := r.s
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.SendLog(ctx, chatID, text)
}

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store     storage.Store
	schedules *schedule.Client
	bot       *bot.Bot
	refresh   *refresh.Service

	cancelWatch context.CancelFunc
	wg          sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// logx.New applies the config immediately. Telegram forwarding is
	// enabled only after the bot exists and the target chat is set, so
	// the bootstrap Apply does not warn about a missing target.
	relay := &logRelay{}
	baseLogCfg := mapLoggingConfig(cfg.Logging)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, relay)
	log = log.With(logx.String("comp", "app"))

	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	storeCfg, err := mapStorageConfig(cfg.Storage)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	schedOpts, err := mapScheduleOptions(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	schedules := schedule.NewClient(schedOpts, log.With(logx.String("comp", "schedule")))

	botCfg, err := mapBotConfig(cfg.Telegram, log)
	if err != nil {
		return nil, err
	}
	b, err := bot.New(botCfg, schedules, store, log.With(logx.String("comp", "bot")))
	if err != nil {
		return nil, err
	}

	relay.set(b)
	if cfg.Telegram.AdminChat != 0 {
		logSvc.SetTelegramTarget(cfg.Telegram.AdminChat)
	}
	logSvc.Apply(mapLoggingConfig(cfg.Logging))

	var refreshSvc *refresh.Service
	if cfg.Refresh != nil && cfg.Refresh.Enabled {
		refreshSvc, err = refresh.New(cfg.Refresh.Spec, schedules, log.With(logx.String("comp", "refresh")))
		if err != nil {
			return nil, fmt.Errorf("refresh.spec: %w", err)
		}
	}

	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		store:     store,
		schedules: schedules,
		bot:       b,
		refresh:   refreshSvc,
	}, nil
}

// Start launches polling, the refresh job and the config watcher. It
// returns once everything is running.
func (a *App) Start(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(watchCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	if a.refresh != nil {
		a.refresh.Start()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.bot.Start()
	}()

	a.log.Info("started")
}

// applyReload applies the runtime-changeable part of a reloaded
// config: the logging sinks and levels. Everything else requires a
// restart and is logged as such.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Telegram.AdminChat != 0 {
		a.logs.SetTelegramTarget(cfg.Telegram.AdminChat)
	}
	a.logs.Apply(mapLoggingConfig(cfg.Logging))
	a.log.Info("logging config applied")
}

func (a *App) Stop() {
	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	a.bot.Stop()
	if a.refresh != nil {
		a.refresh.Stop()
	}
	a.wg.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}

func mapLoggingConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(sc *config.StorageConfig) (storage.Config, error) {
	if sc == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, nil
}

func mapScheduleOptions(sc config.ScheduleConfig) (schedule.Options, error) {
	timeout, err := config.ParseDurationOrDefault("schedule.timeout", sc.Timeout, 0)
	if err != nil {
		return schedule.Options{}, err
	}
	retryBase, err := config.ParseDurationOrDefault("schedule.retry_base", sc.RetryBase, 0)
	if err != nil {
		return schedule.Options{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("schedule.retry_max_delay", sc.RetryMaxDelay, 0)
	if err != nil {
		return schedule.Options{}, err
	}
	rawTTL, err := config.ParseDurationOrDefault("schedule.raw_cache_ttl", sc.RawCacheTTL, 30*time.Second)
	if err != nil {
		return schedule.Options{}, err
	}
	cacheTTL, err := config.ParseDurationOrDefault("schedule.cache_ttl", sc.CacheTTL, 0)
	if err != nil {
		return schedule.Options{}, err
	}
	return schedule.Options{
		Fetcher: schedule.FetcherOptions{
			BaseURL:       sc.BaseURL,
			Timeout:       timeout,
			Retries:       sc.Retries,
			RetryBase:     retryBase,
			RetryMaxDelay: retryMax,
			RawCacheTTL:   rawTTL,
		},
		CacheTTL:      cacheTTL,
		CacheCapacity: sc.CacheCapacity,
	}, nil
}

func mapBotConfig(tc config.TelegramConfig, log logx.Logger) (bot.Config, error) {
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", tc.PollTimeout, 10*time.Second)
	if err != nil {
		return bot.Config{}, err
	}

	tz := tc.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("timezone load failed, using UTC", logx.String("tz", tz), logx.Err(err))
		loc = time.UTC
	}

	return bot.Config{
		Token:       tc.Token,
		AdminChat:   tc.AdminChat,
		PollTimeout: pollTimeout,
		Location:    loc,
	}, nil
}
