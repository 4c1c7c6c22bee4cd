// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Command gateway is the process entry point: it wires configuration,
// logging, storage, the reminder scheduler, the tool dispatcher's
// server-side backends, the provisioning handshake, and the WebSocket
// session endpoint into one running service.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rapidaai/voicegateway/internal/cache"
	"github.com/rapidaai/voicegateway/internal/config"
	"github.com/rapidaai/voicegateway/internal/directory"
	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/providers"
	"github.com/rapidaai/voicegateway/internal/provisioning"
	"github.com/rapidaai/voicegateway/internal/reminder"
	"github.com/rapidaai/voicegateway/internal/scheduler"
	"github.com/rapidaai/voicegateway/internal/session"
	"github.com/rapidaai/voicegateway/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogPath,
		Console:  true,
	})
	if err != nil {
		panic(err)
	}

	db, err := openDB(cfg)
	if err != nil {
		logger.Errorf("open database: %v", err)
		os.Exit(1)
	}
	if err := directory.Migrate(db); err != nil {
		logger.Errorf("migrate directory: %v", err)
		os.Exit(1)
	}
	if err := reminder.Migrate(db); err != nil {
		logger.Errorf("migrate reminders: %v", err)
		os.Exit(1)
	}

	store := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	dir := directory.New(db, logger)

	// registry starts empty: concrete ASR/LLM/TTS/VAD vendor adapters are
	// a deliberate boundary this CORE doesn't cross (see DESIGN.md's
	// dropped-dependency ledger) — a deployment registers real factories
	// against this same *providers.Registry before serving traffic.
	registry := providers.NewRegistry()

	reminderRepo := reminder.NewGORMRepository(db, logger)
	notifyRegistry := scheduler.NewRegistry()
	publisher := choosePublisher(cfg, logger)

	sched := scheduler.New(reminderRepo, notifyRegistry, publisher, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	serverTools := buildServerTools(reminderRepo)

	handshake := provisioning.NewHandshake(store, dir, cfg.JWTSecret)
	provisioningServer := provisioning.NewServer(handshake, wsURL(cfg), logger)
	schedulerHandler := scheduler.NewHandler(notifyRegistry, publisher, logger)

	gw := &gateway{
		cfg:              cfg,
		logger:           logger,
		dir:              dir,
		providerResolver: registry,
		notifyRegistry:   notifyRegistry,
		serverTools:      serverTools,
		jwtSecret:        cfg.JWTSecret,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	provisioningServer.RegisterRoutes(router)
	router.POST("/agents/:id/webhook", schedulerHandler.Webhook)
	router.GET("/ws", gw.handleWebSocket)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + itoa(cfg.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
		}
	}()
	logger.Infof("voicegateway listening on %s", srv.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Infof("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// openDB connects to Postgres when a DSN is configured, falling back to
// the SQLite path otherwise — the same dual-driver shape already
// required in go.mod for internal/reminder's own tests.
func openDB(cfg *config.AppConfig) (*gorm.DB, error) {
	if cfg.PostgresDSN != "" {
		return gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
}

func choosePublisher(cfg *config.AppConfig, logger logging.Logger) scheduler.Publisher {
	if cfg.MQTTBrokerURL == "" {
		return noopPublisher{logger: logger}
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID("voicegateway-" + uuid.New().String())
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	publisher, client := scheduler.NewMQTTPublisher(opts, 1)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Warnw("mqtt broker connect failed, falling back to no-op publisher", "error", token.Error())
		return noopPublisher{logger: logger}
	}
	return publisher
}

// noopPublisher logs and drops notifications when no MQTT fallback
// broker is configured; a live session connection is still delivered
// directly by scheduler.DeliverAgentNotification before this is ever
// consulted.
type noopPublisher struct {
	logger logging.Logger
}

func (p noopPublisher) Publish(topic string, payload []byte) error {
	p.logger.Warnw("dropping notification: no mqtt broker configured", "topic", topic)
	return nil
}

// buildServerTools wires the one statically-registered tool surface this
// CORE owns directly: reminders.
func buildServerTools(repo reminder.Repository) *tools.ServerPluginExecutor {
	exec := tools.NewServerPluginExecutor()
	reminder.RegisterTools(exec, repo, time.UTC)
	return exec
}

func wsURL(cfg *config.AppConfig) string {
	return "ws://" + cfg.Host + ":" + itoa(cfg.Port) + "/ws"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// gateway holds the per-process dependencies the WebSocket upgrade
// handler closes over.
type gateway struct {
	cfg              *config.AppConfig
	logger           logging.Logger
	dir              *directory.Directory
	providerResolver session.ProviderResolver
	notifyRegistry   *scheduler.Registry
	serverTools      *tools.ServerPluginExecutor
	jwtSecret        string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket authenticates the device's auth token (minted into
// the /ota config response, carried back as a bearer token or ?token=
// query param) and, once validated, upgrades the connection and starts
// a Session bound to that MAC's current agent.
func (g *gateway) handleWebSocket(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	mac, err := g.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing auth token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warnw("websocket upgrade failed", "mac", mac, "error", err)
		return
	}

	agentID, err := g.dir.AgentIDForMAC(c.Request.Context(), mac)
	if err != nil {
		g.logger.Warnw("no agent bound to device", "mac", mac, "error", err)
		_ = conn.Close()
		return
	}

	sender := &connSender{conn: conn}
	dispatcher := tools.NewDispatcher(g.logger)
	dispatcher.RegisterExecutor(providers.BackendServerPlugin, g.serverTools)
	dispatcher.RegisterExecutor(providers.BackendServerMCP, tools.NewServerMCPManager(g.logger))
	dispatcher.RegisterExecutor(providers.BackendDeviceIoT, tools.NewDeviceIoTExecutor(sender))
	dispatcher.RegisterExecutor(providers.BackendDeviceMCP, tools.NewDeviceMCPExecutor(sender))

	sess := session.NewSession(mac, conn, dispatcher, g.dir, g.providerResolver, g.logger)
	g.notifyRegistry.Register(sess.DeviceID().String(), sess)
	defer g.notifyRegistry.Unregister(sess.DeviceID().String(), sess)

	sess.Start(agentID)
	sess.Done()
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// validateToken parses the JWT minted by provisioning.Handshake.mintToken
// and returns its subject, the device MAC the token authenticates.
func (g *gateway) validateToken(rawToken string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(g.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// connSender adapts a raw *websocket.Conn to tools.DeviceSender, used to
// construct the device-iot/device-mcp executors before a Session (which
// also implements DeviceSender over the same conn) exists.
type connSender struct {
	conn *websocket.Conn
}

func (s *connSender) SendMCPEnvelope(ctx context.Context, envelope json.RawMessage) error {
	return s.conn.WriteMessage(websocket.TextMessage, envelope)
}
