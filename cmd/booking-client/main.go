package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/booking-client/internal/api"
	"qms/booking-client/internal/booking"
	"qms/booking-client/internal/config"
	"qms/booking-client/internal/models"
	"qms/booking-client/internal/notifications"
	"qms/booking-client/internal/queue"
	"qms/booking-client/internal/realtime"
	"qms/booking-client/internal/rooms"
	"qms/booking-client/internal/telemetry"
	"qms/booking-client/internal/ticket"

	"golang.org/x/sync/errgroup"
)

type roomJoiner interface {
	JoinBusiness(ctx context.Context, businessID string)
	JoinQueue(ctx context.Context, queueID string)
	RegisterUser(ctx context.Context, userID string)
}

func main() {
	cfg := config.Load()
	shutdownTelemetry, err := telemetry.Setup(context.Background(), telemetry.Options{
		ServiceName: "booking-client",
		Version:     cfg.Tracing.Version,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Printf("telemetry disabled: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	client := api.New(api.Options{BaseURL: cfg.APIURL, Token: cfg.SessionToken, Timeout: cfg.HTTPTimeout})
	transports, err := realtime.TransportsByName(cfg.Transports, realtime.TransportOptions{HandshakeTimeout: cfg.HTTPTimeout})
	if err != nil {
		log.Fatalf("realtime transports: %v", err)
	}
	manager := realtime.NewManager(realtime.Options{
		URL:               cfg.RealtimeURL,
		Token:             cfg.SessionToken,
		Transports:        transports,
		Reconnect:         cfg.Reconnect,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	})

	store := notifications.New(notifications.Options{
		Persistence: client,
		Alerter:     notifications.NewAlerter(cfg.AlertProvider),
	})
	store.Attach(manager)
	tracker := ticket.NewTracker(client)
	tracker.Attach(manager)
	view := queue.NewView(client)
	view.Attach(manager)
	evaluator := booking.NewEvaluator(client, client, client)
	controller := rooms.New(manager)

	for _, kind := range []realtime.Kind{realtime.KindConnect, realtime.KindDisconnect, realtime.KindReconnect} {
		manager.On(kind, func(e realtime.Event) {
			if lc, ok := e.(realtime.Lifecycle); ok {
				log.Print(lifecycleLine(lc))
			}
		})
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	joinRooms(context.Background(), controller, cfg)
	conn := manager.EnsureConnection()
	log.Printf("booking-client session connection=%s url=%s", conn.ID, cfg.RealtimeURL)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		store.Hydrate(ctx)
		return nil
	})
	g.Go(func() error {
		return tracker.Load(ctx)
	})
	if cfg.BusinessID != "" {
		g.Go(func() error {
			if _, err := view.Refresh(ctx, cfg.BusinessID); err != nil {
				log.Printf("queue refresh error: %v", err)
			}
			log.Print(decisionLine(cfg.BusinessID, evaluator.Evaluate(ctx, cfg.BusinessID)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("startup error: %v", err)
	}
	for _, tk := range tracker.Active() {
		log.Print(ticketLine(tk))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	controller.Close()
	store.Detach()
	tracker.Detach()
	view.Detach()
	if err := manager.Close(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	store.Wait()
	log.Printf("booking-client stopped unread=%d", store.UnreadCount())
}

// joinRooms subscribes to every room the configuration names.
func joinRooms(ctx context.Context, j roomJoiner, cfg config.Config) {
	if cfg.BusinessID != "" {
		j.JoinBusiness(ctx, cfg.BusinessID)
	}
	if cfg.QueueID != "" {
		j.JoinQueue(ctx, cfg.QueueID)
	}
	if cfg.UserID != "" {
		j.RegisterUser(ctx, cfg.UserID)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("metrics listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server error: %v", err)
	}
}

func lifecycleLine(e realtime.Lifecycle) string {
	line := fmt.Sprintf("realtime %s", e.Type)
	if e.Transport != "" {
		line += " transport=" + e.Transport
	}
	if e.Err != nil {
		line += fmt.Sprintf(" error=%q", e.Err.Error())
	}
	return line
}

func decisionLine(businessID string, d booking.Decision) string {
	if d.Allowed {
		return fmt.Sprintf("booking allowed business=%s queue=%s", businessID, d.QueueState)
	}
	return fmt.Sprintf("booking denied business=%s reason=%q message=%q", businessID, d.Reason, d.Message())
}

func ticketLine(tk models.Ticket) string {
	return fmt.Sprintf("ticket id=%s number=%s status=%s position=%d", tk.TicketID, tk.Number, tk.Status, tk.Position)
}
