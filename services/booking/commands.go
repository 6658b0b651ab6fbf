package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pavitra93/go-gym-booking/shared/config"
	"github.com/pavitra93/go-gym-booking/shared/events"
	"github.com/pavitra93/go-gym-booking/shared/middleware"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the outbox relay and occupancy reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := a.store.Migrate(); err != nil {
					return err
				}
			}

			auth, err := middleware.NewAuthMiddleware(a.cfg.Auth, a.directory)
			if err != nil {
				return fmt.Errorf("failed to initialize auth middleware: %w", err)
			}

			scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
			if _, err := a.reconciler.Register(scheduler, a.cfg.Booking.ReconcileSchedule); err != nil {
				return fmt.Errorf("invalid reconcile schedule: %w", err)
			}

			if a.cfg.Kafka.Enabled {
				publisher := events.NewKafkaPublisher(a.cfg.Kafka.Broker, a.cfg.Kafka.Topic)
				defer publisher.Close()

				relay := events.NewRelay(a.store, publisher, nil, events.RelayConfig{
					BatchSize:   a.cfg.Kafka.RelayBatch,
					MaxAttempts: a.cfg.Kafka.RelayMaxAttempts,
				})
				if _, err := relay.Register(scheduler, a.cfg.Kafka.RelaySchedule); err != nil {
					return fmt.Errorf("invalid relay schedule: %w", err)
				}
			} else {
				logrus.Warn("Kafka disabled, booking events stay in the outbox")
			}

			scheduler.Start()
			defer func() { <-scheduler.Stop().Done() }()

			gin.SetMode(a.cfg.Server.Mode)
			router := newRouter(routerDeps{
				Store:     a.store,
				Auth:      auth,
				Scheduler: a.scheduler,
				Engine:    a.engine,
				Queries:   a.queries,
				CORS:      a.cfg.CORS,
			})

			return runServer(router, a.cfg.Server.Port)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving")
	return cmd
}

// runServer serves until SIGINT or SIGTERM, then drains in-flight requests
func runServer(handler http.Handler, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Booking service starting on port %s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start booking service: %w", err)
	case <-ctx.Done():
	}

	logrus.Info("Shutting down booking service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Migrate(); err != nil {
				return err
			}
			logrus.Info("Database migrated")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair booked counts that disagree with confirmed bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			repaired, err := a.reconciler.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %d session instance(s)\n", repaired)
			return nil
		},
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			tenant, err := a.directory.CreateTenant(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tenant.ID, tenant.Name)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "tenant name")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			tenants, err := a.directory.ListTenants(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tactive=%t\n", t.ID, t.Name, t.IsActive)
			}
			return nil
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			return a.directory.Deactivate(cmd.Context(), id)
		},
	}

	cmd.AddCommand(create, list, deactivate)
	return cmd
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the booking event outbox",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count outbox events by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			relay := events.NewRelay(a.store, nil, nil, events.RelayConfig{})
			counts, err := relay.Stats(cmd.Context())
			if err != nil {
				return err
			}
			for _, status := range []models.EventStatus{models.EventPending, models.EventPublished, models.EventFailed} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", status, counts[status])
			}
			return nil
		},
	}

	relayOnce := &cobra.Command{
		Use:   "relay",
		Short: "Publish one batch of due events to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			publisher := events.NewKafkaPublisher(a.cfg.Kafka.Broker, a.cfg.Kafka.Topic)
			defer publisher.Close()

			relay := events.NewRelay(a.store, publisher, nil, events.RelayConfig{
				BatchSize:   a.cfg.Kafka.RelayBatch,
				MaxAttempts: a.cfg.Kafka.RelayMaxAttempts,
			})
			result, err := relay.RelayOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published=%d retried=%d failed=%d deferred=%d\n",
				result.Published, result.Retried, result.Failed, result.Deferred)
			return nil
		},
	}

	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print booking events as they arrive on the Kafka topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer := events.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Topic, group)
			defer consumer.Close()

			out := cmd.OutOrStdout()
			return consumer.Consume(ctx, func(d events.Delivery) error {
				_, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
					d.Time.Format(time.RFC3339), d.TenantID, d.Type, d.MemberID, d.Payload)
				return err
			})
		},
	}
	tail.Flags().StringVar(&group, "group", "", "consumer group; empty reads partition 0 without committing")

	cmd.AddCommand(stats, relayOnce, tail)
	return cmd
}

// tokenCmd mints a shared-secret token for local development
func tokenCmd() *cobra.Command {
	var (
		tenant string
		member string
		email  string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development token with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.Provider != "jwt" {
				return fmt.Errorf("token signing needs AUTH_PROVIDER=jwt")
			}

			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid tenant id: %w", err)
			}
			r := models.UserRole(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := middleware.NewHMACToken(cfg.Auth.JWTSecret, models.Identity{
				MemberID: member,
				Email:    email,
				Role:     r,
				TenantID: tenantID,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&member, "member", "", "member id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "member email")
	cmd.Flags().StringVar(&role, "role", string(models.RoleMember), "OWNER, ADMIN, STAFF, TRAINER or MEMBER")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}
