// Command opswatch consumes the pairchat lifecycle event feed from NATS and
// logs it for operators. When MATCHLOG_DSN is set, dissolved rooms are also
// persisted to PostgreSQL for offline analysis. Events carry session and room
// IDs only; chat content never reaches this service.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/mtsl/pairchat/internal/matchlog"
	"github.com/mtsl/pairchat/internal/messaging"
)

func main() {
	log.Println("Starting pairchat opswatch...")

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "pairchat-opswatch"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Optional PostgreSQL match log.
	var store *matchlog.Store
	if dsn := os.Getenv("MATCHLOG_DSN"); dsn != "" {
		if err := matchlog.Migrate(dsn); err != nil {
			log.Fatalf("match log migration failed: %v", err)
		}

		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("failed to open postgres: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		cancel()

		store = matchlog.NewStore(db)
		log.Println("[opswatch] match log persistence enabled")
	}

	err = natsClient.SubscribeEvents(func(subject string, data []byte) {
		switch subject {
		case messaging.SubjectQueueJoined:
			var ev messaging.QueueEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[opswatch] bad %s payload: %v", subject, err)
				return
			}
			log.Printf("[opswatch] queue joined session=%s", ev.SessionID)

		case messaging.SubjectQueueLeft:
			var ev messaging.QueueEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[opswatch] bad %s payload: %v", subject, err)
				return
			}
			log.Printf("[opswatch] queue left session=%s reason=%s", ev.SessionID, ev.Reason)

		case messaging.SubjectRoomCreated:
			var ev messaging.RoomCreatedEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[opswatch] bad %s payload: %v", subject, err)
				return
			}
			log.Printf("[opswatch] room created room=%s", ev.RoomID)

		case messaging.SubjectRoomDissolved:
			var ev messaging.RoomDissolvedEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[opswatch] bad %s payload: %v", subject, err)
				return
			}
			log.Printf("[opswatch] room dissolved room=%s reason=%s age=%.1fs",
				ev.RoomID, ev.Reason, ev.AgeSeconds)

			if store != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := store.Create(ctx, &matchlog.Record{
					RoomID:      ev.RoomID,
					Reason:      ev.Reason,
					AgeSeconds:  ev.AgeSeconds,
					DissolvedAt: time.Unix(ev.Ts, 0),
				})
				cancel()
				if err != nil {
					log.Printf("[opswatch] persist room=%s: %v", ev.RoomID, err)
				}
			}

		case messaging.SubjectMatchTimeout:
			var ev messaging.MatchTimeoutEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[opswatch] bad %s payload: %v", subject, err)
				return
			}
			log.Printf("[opswatch] match timeout session=%s waited=%.1fs",
				ev.SessionID, ev.WaitedSeconds)

		default:
			log.Printf("[opswatch] unknown subject=%s", subject)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to event feed: %v", err)
	}

	log.Printf("[opswatch] listening on %s", messaging.SubjectAll)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[opswatch] shutting down...")
	natsClient.Close()
}
