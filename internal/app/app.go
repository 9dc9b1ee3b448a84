// Package app wires the master controller together: config, logging,
// persistence, the bus connection, the topology and the autonomy loop.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hydroplant/master-controller/internal/autonomy"
	"github.com/hydroplant/master-controller/internal/bus"
	"github.com/hydroplant/master-controller/internal/controller"
	"github.com/hydroplant/master-controller/internal/plant"
	"github.com/hydroplant/master-controller/internal/platform/logger"
	"github.com/hydroplant/master-controller/internal/platform/mongodb"
	"github.com/hydroplant/master-controller/internal/state"
)

type App struct {
	Log        *logger.Logger
	Cfg        Config
	Bus        bus.Bus
	System     *plant.System
	Store      state.Store
	Controller *controller.Controller
	Scheduler  *autonomy.Scheduler
}

func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// The controller keeps running on in-memory state when the database
	// is unreachable at boot.
	var store state.Store
	client, err := mongodb.Connect(context.Background(), cfg.DatabaseHost, cfg.DatabasePort)
	if err != nil {
		log.Warn("database unreachable, continuing with in-memory state", "error", err)
		store = state.NewMemory()
	} else {
		mongoStore, err := state.NewMongo(state.MongoOptions{Client: client})
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init state store: %w", err)
		}
		store = mongoStore
	}

	system := plant.Default()
	mqttBus := bus.NewMQTT(log, bus.MQTTConfig{Host: cfg.BrokerHost, Port: cfg.BrokerPort})

	ctrl := controller.New(log, mqttBus, system, store, controller.RestorePolicy(cfg.RestorePolicy))
	scheduler := autonomy.New(log, system, ctrl.Publish, autonomy.Options{
		Tick:          cfg.AutonomyTick,
		IntervalCheck: cfg.IntervalCheck,
		DayStart:      cfg.DayStart,
		DayEnd:        cfg.DayEnd,
	})
	ctrl.SetAutonomy(scheduler)

	return &App{
		Log:        log,
		Cfg:        cfg,
		Bus:        mqttBus,
		System:     system,
		Store:      store,
		Controller: ctrl,
		Scheduler:  scheduler,
	}, nil
}

// Run connects to the broker and drives the autonomy loop until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Bus.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer a.Bus.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Scheduler.Run(ctx)
	})
	return g.Wait()
}

func (a *App) Close() {
	a.Log.Sync()
}
