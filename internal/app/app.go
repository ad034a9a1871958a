package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"habitbot/internal/bot"
	"habitbot/internal/config"
	"habitbot/internal/habit"
	"habitbot/internal/runtime/supervisor"
	"habitbot/internal/services/scheduler"
	"habitbot/internal/storage"
	kit "habitbot/internal/transport"
	"habitbot/internal/transport/telegram"
	logx "habitbot/pkg/logx"
)

const defaultOverviewTime = "08:00"

// App wires the habit bot: config, logging, storage, scheduler, the habit
// reconciler/broadcaster and the conversation router.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	store   storage.Store
	sched   *scheduler.Service
	rec     *habit.Reconciler
	bcast   *habit.Broadcaster
	router  *bot.Router

	overviewTime string

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies the config immediately. Bootstrap with the Telegram
	// sink disabled, set its target, then Apply the real config so an
	// enabled-but-untargeted sink never produces a spurious warning.
	baseLogCfg := mapLoggingConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if chatID := parseChatID(cfg.Telegram.GroupLog); chatID != 0 {
		logSvc.SetTelegramTarget(chatID)
	}
	logSvc.Apply(mapLoggingConfig(cfg))

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")))

	sender := bot.NewChatSender(ad)
	rec := habit.NewReconciler(store, sched, sender, bot.HabitKeyboard,
		log.With(logx.String("comp", "reconciler")))
	bcast := habit.NewBroadcaster(store, sender, bot.HabitKeyboard, sched.Location(),
		cfg.Habits.SendRatePerSec, log.With(logx.String("comp", "overview")))
	router := bot.NewRouter(store, rec, ad, sched.Location(),
		log.With(logx.String("comp", "bot")))

	overviewTime := strings.TrimSpace(cfg.Habits.OverviewTime)
	if overviewTime == "" {
		overviewTime = defaultOverviewTime
	}

	return &App{
		cfgPath:      cfgPath,
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		adapter:      ad,
		store:        store,
		sched:        sched,
		rec:          rec,
		bcast:        bcast,
		router:       router,
		overviewTime: overviewTime,
		updates:      make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	// Every stored habit gets its job before the cron loop starts, so the
	// first tick after boot already sees the full schedule.
	if err := a.rec.ResyncAll(a.sup.Context()); err != nil {
		return err
	}
	if err := a.bcast.Register(a.sched, a.overviewTime, time.Minute); err != nil {
		return fmt.Errorf("register overview broadcast: %w", err)
	}
	a.sched.Start(a.sup.Context())

	for _, sc := range a.sched.Snapshot().Schedules {
		a.log.Debug("schedule active",
			logx.String("name", sc.Name), logx.String("spec", sc.Spec), logx.Time("next", sc.Next))
	}

	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if menu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
		if err := menu.UpdateMenuCommands(mctx, bot.Commands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
		cancel()
	}

	a.log.Info("app started")
	return nil
}

// applyReload applies the hot-reloadable config sections. Storage, scheduler
// timezone and the bot token require a restart; only logging and the log
// target change live.
func (a *App) applyReload(cfg *config.Config) {
	if chatID := parseChatID(cfg.Telegram.GroupLog); chatID != 0 {
		a.logs.SetTelegramTarget(chatID)
	} else {
		a.logs.SetTelegramTarget(0)
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	cur := a.cfgm.Get()
	if cur != nil {
		if cfg.Storage != cur.Storage {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
		if cfg.Scheduler.Timezone != cur.Scheduler.Timezone {
			a.log.Warn("scheduler timezone changed; restart required for changes to take effect")
		}
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(_ context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// ---- config mapping ----

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = "./habits.db"
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	defTimeout, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: defTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		RetryMax:       cfg.Scheduler.RetryMax,
		Timezone:       cfg.Scheduler.Timezone,
	}, nil
}

func validate(cfg *config.Config) error {
	if cfg.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers must be >= 0")
	}
	if cfg.Scheduler.HistorySize < 0 {
		return fmt.Errorf("scheduler.history_size must be >= 0")
	}
	if cfg.Scheduler.RetryMax < 0 {
		return fmt.Errorf("scheduler.retry_max must be >= 0")
	}
	if _, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if at := strings.TrimSpace(cfg.Habits.OverviewTime); at != "" {
		if _, _, err := habit.ParseReminderTime(at); err != nil {
			return fmt.Errorf("habits.overview_time: %w", err)
		}
	}
	if cfg.Habits.SendRatePerSec < 0 {
		return fmt.Errorf("habits.send_rate_per_sec must be >= 0")
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

func parseChatID(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
