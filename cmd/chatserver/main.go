// Command chatserver runs the pairchat WebSocket server: an anonymous 1-on-1
// chat where the coordinator pairs waiting users FIFO, relays messages and
// typing indicators within rooms, and recovers from disconnects by requeueing
// the surviving partner.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mtsl/pairchat/internal/chat"
	"github.com/mtsl/pairchat/internal/coordinator"
	"github.com/mtsl/pairchat/internal/messaging"
	"github.com/mtsl/pairchat/internal/metrics"
	"github.com/mtsl/pairchat/internal/presence"
	"github.com/mtsl/pairchat/internal/protocol"
	"github.com/mtsl/pairchat/internal/ratelimit"
	"github.com/mtsl/pairchat/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	coordConfig := coordinator.DefaultConfig()
	if v := os.Getenv("RETRY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			coordConfig.RetryInterval = d
		}
	}
	if v := os.Getenv("MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			coordConfig.MaxAttempts = n
		}
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	serverName, _ := os.Hostname()
	if v := os.Getenv("SERVER_NAME"); v != "" {
		serverName = v
	}
	if serverName == "" {
		serverName = "pairchat-1"
	}

	presenceStore, err := presence.NewStore(redisAddr, serverName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	limiter := ratelimit.NewLimiter(presenceStore.Client())

	log.Printf("pairchat server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  retry_interval:  %s", coordConfig.RetryInterval)
	log.Printf("  max_attempts:    %d", coordConfig.MaxAttempts)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  server_name:     %s", serverName)

	dispatcher := ws.NewMessageDispatcher()

	server := ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)
	server.SetPresenceStore(presenceStore)
	server.SetConnectLimiter(limiter)

	events := newPresenceEvents(presenceStore, messaging.NewEventPublisher(natsClient))

	coord := coordinator.New(coordConfig, server, events)
	coord.Start()

	server.SetSnapshotFunc(coord.Snapshot)
	metrics.RegisterCoordinatorGauges(coord.WaitingCount, coord.RoomCount)

	// -----------------------------------------------------------------------
	// find_partner — enter the waiting pool (or pair immediately)
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeFindPartner, func(conn *ws.Connection, msg interface{}) {
		findMsg, ok := msg.(protocol.FindPartnerMsg)
		if !ok {
			return
		}
		sid := conn.ID

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		allowed, rlErr := limiter.Allow(ctx, sid, ratelimit.RuleMatch)
		if rlErr == nil && !allowed {
			retry := limiter.RetryAfter(ctx, sid, ratelimit.RuleMatch)
			cancel()
			dispatcher.SendRateLimited(conn, retry)
			return
		}
		cancel()

		nickname, err := chat.NormalizeNickname(findMsg.Nickname)
		if err != nil {
			dispatcher.SendError(conn, "invalid_nickname", err.Error())
			return
		}

		if coord.RequestMatch(sid, nickname) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := presenceStore.SetNickname(ctx, sid, chat.MaskNickname(nickname)); err != nil {
				log.Printf("[presence] set nickname for session=%s: %v", sid, err)
			}
			cancel()
		}
	})

	// -----------------------------------------------------------------------
	// message — relay a chat message to the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		chatMsg, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		sid := conn.ID

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		allowed, rlErr := limiter.Allow(ctx, sid, ratelimit.RuleMessage)
		if rlErr == nil && !allowed {
			retry := limiter.RetryAfter(ctx, sid, ratelimit.RuleMessage)
			cancel()
			metrics.MessagesTotal.WithLabelValues("rate_limited").Inc()
			dispatcher.SendRateLimited(conn, retry)
			return
		}
		cancel()

		if err := chat.ValidateMessage(chatMsg.Text); err != nil {
			metrics.MessagesTotal.WithLabelValues("rejected").Inc()
			dispatcher.SendError(conn, "invalid_message", err.Error())
			return
		}

		coord.RelayMessage(chatMsg.RoomID, sid, chatMsg.Text)
	})

	// -----------------------------------------------------------------------
	// typing — relay the typing indicator
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeTyping, func(conn *ws.Connection, msg interface{}) {
		typingMsg, ok := msg.(protocol.TypingMsg)
		if !ok {
			return
		}
		coord.RelayTyping(typingMsg.RoomID, conn.ID, typingMsg.IsTyping)
	})

	// -----------------------------------------------------------------------
	// new_chat — leave the current room and look for a different partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeNewChat, func(conn *ws.Connection, msg interface{}) {
		newMsg, ok := msg.(protocol.NewChatMsg)
		if !ok {
			return
		}
		sid := conn.ID

		// A new chat implies a requeue, so it counts against the match rule.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		allowed, rlErr := limiter.Allow(ctx, sid, ratelimit.RuleMatch)
		if rlErr == nil && !allowed {
			retry := limiter.RetryAfter(ctx, sid, ratelimit.RuleMatch)
			cancel()
			dispatcher.SendRateLimited(conn, retry)
			return
		}
		cancel()

		coord.LeaveForNewChat(sid, newMsg.RoomID)
	})

	// Disconnects go straight to the coordinator: it removes the session from
	// the pool or dissolves its room and requeues the surviving partner.
	server.SetOnDisconnect(coord.HandleDisconnect)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		coord.Stop()
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := presenceStore.Close(); err != nil {
			log.Printf("presence store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
