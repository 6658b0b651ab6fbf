package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/booking"
	"github.com/pavitra93/go-gym-booking/shared/config"
	"github.com/pavitra93/go-gym-booking/shared/lock"
	"github.com/pavitra93/go-gym-booking/shared/logger"
	"github.com/pavitra93/go-gym-booking/shared/store"
	"github.com/pavitra93/go-gym-booking/shared/utils"
)

// app holds the wired components shared by every command
type app struct {
	cfg        *config.Config
	store      *store.Store
	directory  *store.Directory
	locker     lock.Locker
	scheduler  *booking.Scheduler
	engine     *booking.Engine
	queries    *booking.Queries
	reconciler *booking.Reconciler
}

// newApp loads config, connects Postgres and Redis and builds the booking components
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Redis.Enabled {
		if err := utils.InitRedis(cfg.Redis); err != nil {
			// Redis only backs caches unless it also holds the locks
			if cfg.Booking.LockBackend == "redis" {
				return nil, err
			}
			logrus.WithError(err).Warn("Redis unavailable, continuing without cache")
		}
	}

	var locker lock.Locker
	switch cfg.Booking.LockBackend {
	case "redis":
		locker = lock.NewRedisLocker(utils.GetRedisClient(), cfg.Booking.LockTTL)
	default:
		locker = lock.NewLocalLocker()
	}

	st := store.New(db)
	opts := booking.Options{
		LockWait:     cfg.Booking.LockWait,
		CancelCutoff: cfg.Booking.CancelCutoff,
	}

	return &app{
		cfg:        cfg,
		store:      st,
		directory:  store.NewDirectory(st),
		locker:     locker,
		scheduler:  booking.NewScheduler(st, locker, opts),
		engine:     booking.NewEngine(st, locker, opts),
		queries:    booking.NewQueries(st),
		reconciler: booking.NewReconciler(st, locker, opts),
	}, nil
}

func (a *app) close() {
	if err := utils.CloseRedis(); err != nil {
		logrus.WithError(err).Warn("Failed to close Redis")
	}
	if sqlDB, err := a.store.DB().DB(); err == nil {
		sqlDB.Close()
	}
}
