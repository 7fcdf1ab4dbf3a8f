package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"panel-bridge/config"
	"panel-bridge/database"
	"panel-bridge/handlers"
	"panel-bridge/logging"
	"panel-bridge/models"
	"panel-bridge/mqtt"
	"panel-bridge/panel"
	"panel-bridge/queue"
	"panel-bridge/redis"
	"panel-bridge/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := logging.NewLogger(cfg.LogLevel)

	// Initialize database
	db, err := database.NewDatabase(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis
	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize MQTT client for the notification hand-off
	mqttClient, err := mqtt.NewClient(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Disconnect()

	// Classification and arm-code tables: loaded once, immutable afterwards.
	codeTable := models.DefaultCodeTable()
	if path := os.Getenv("CODE_TABLE_FILE"); path != "" {
		codeTable, err = models.LoadCodeTable(path)
		if err != nil {
			log.Fatalf("Failed to load code table: %v", err)
		}
		logger.Info("Loaded classification table", "path", path, "codes", codeTable.Len())
	}
	armCodes := models.DefaultArmCodes()

	// Work queue
	dispatcher := queue.NewDispatcher(redisClient, cfg.QueueName, cfg.WorkerCount, logger)

	// Services
	classifier := services.NewClassifier(codeTable, logger)
	panelClient := panel.NewControlService(cfg, db.DeviceRepo, logger)
	ingest := services.NewIngestService(cfg, db.DeviceRepo, db.EventRepo, dispatcher, redisClient, logger)
	processor := services.NewEventProcessor(cfg, db.DeviceRepo, db.EventRepo, db.IncidentRepo, classifier, armCodes, dispatcher, logger)
	notifier := services.NewIncidentNotifier(db.IncidentRepo, mqttClient, logger)
	monitor := services.NewHeartbeatMonitor(cfg, db.DeviceRepo, panelClient, redisClient, logger)

	registerTasks(dispatcher, processor, notifier, monitor, logger)

	ctx, stop := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	// Periodic heartbeat sweep; /devices/refresh-status enqueues the same
	// task on demand.
	go heartbeatScheduler(ctx, cfg, dispatcher, logger)

	// HTTP server
	e := setupRouter(cfg, db, panelClient, ingest, dispatcher, logger)
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.Any("error", err))
	}

	stop()
	dispatcher.Stop()

	logger.Info("Server stopped")
}

// registerTasks binds the pipeline's task types to their handlers and
// retry budgets.
func registerTasks(
	dispatcher *queue.Dispatcher,
	processor *services.EventProcessor,
	notifier *services.IncidentNotifier,
	monitor *services.HeartbeatMonitor,
	logger *slog.Logger,
) {
	dispatcher.Register(services.TaskProcessEvent, queue.Definition{
		Policy: queue.Policy{
			MaxAttempts: 5,
			Backoff: []time.Duration{
				10 * time.Second, 30 * time.Second, 60 * time.Second,
				120 * time.Second, 300 * time.Second,
			},
		},
		Handle: func(ctx context.Context, task *queue.Task) error {
			var payload services.ProcessEventTask
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				logger.Error("Malformed event.process payload", "id", task.ID, slog.Any("error", err))
				return nil
			}
			return processor.Process(ctx, payload.EventUUID)
		},
		OnExhausted: func(ctx context.Context, task *queue.Task, cause error) {
			var payload services.ProcessEventTask
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return
			}
			processor.RecordTerminalFailure(payload.EventUUID, cause)
		},
	})

	dispatcher.Register(services.TaskNotifyIncident, queue.Definition{
		Policy: queue.Policy{
			MaxAttempts: 3,
			Backoff:     []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second},
		},
		Handle: func(ctx context.Context, task *queue.Task) error {
			var payload services.NotifyIncidentTask
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				logger.Error("Malformed incident.notify payload", "id", task.ID, slog.Any("error", err))
				return nil
			}
			return notifier.Notify(ctx, payload.IncidentID)
		},
	})

	dispatcher.Register(services.TaskRefreshDevices, queue.Definition{
		Policy: queue.Policy{MaxAttempts: 1},
		Handle: func(ctx context.Context, task *queue.Task) error {
			return monitor.Run(ctx)
		},
	})
}

// heartbeatScheduler enqueues a stale-device sweep at half the staleness
// threshold so a quiet device is probed soon after it crosses the line.
func heartbeatScheduler(ctx context.Context, cfg *config.Config, dispatcher *queue.Dispatcher, logger *slog.Logger) {
	interval := cfg.StaleThreshold / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			taskID := "sweep-" + now.UTC().Format("20060102T150405")
			if err := dispatcher.Enqueue(services.TaskRefreshDevices, taskID, struct{}{}); err != nil {
				logger.Error("Failed to enqueue heartbeat sweep", slog.Any("error", err))
			}
		}
	}
}

func setupRouter(
	cfg *config.Config,
	db *database.Database,
	panelClient *panel.ControlService,
	ingest *services.IngestService,
	dispatcher *queue.Dispatcher,
	logger *slog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
			)
			return nil
		},
	}))

	webhookHandler := handlers.NewWebhookHandler(ingest)
	deviceHandler := handlers.NewDeviceHandler(cfg, db.DeviceRepo, panelClient, dispatcher)
	eventHandler := handlers.NewEventHandler(db.EventRepo, dispatcher)
	incidentHandler := handlers.NewIncidentHandler(db.IncidentRepo)

	// Webhook ingestion
	e.POST("/webhooks/alarm", webhookHandler.ReceiveAlarm)
	e.POST("/webhooks/heartbeat", webhookHandler.ReceiveHeartbeat)
	e.GET("/webhooks/health", webhookHandler.Health)

	// Device management
	e.POST("/devices", deviceHandler.CreateDevice)
	e.GET("/devices", deviceHandler.ListDevices)
	e.GET("/devices/stats", deviceHandler.GetStats)
	e.POST("/devices/refresh-status", deviceHandler.RefreshStatus)
	e.GET("/devices/:id", deviceHandler.GetDevice)
	e.PUT("/devices/:id", deviceHandler.UpdateDevice)
	e.DELETE("/devices/:id", deviceHandler.DeleteDevice)
	e.POST("/devices/:id/test-connection", deviceHandler.TestConnection)
	e.GET("/devices/:id/info", deviceHandler.GetInfo)
	e.GET("/devices/:id/status", deviceHandler.GetStatus)
	e.POST("/devices/:id/arm", deviceHandler.Arm)
	e.POST("/devices/:id/disarm", deviceHandler.Disarm)
	e.POST("/devices/:id/configure-webhook", deviceHandler.ConfigureWebhook)
	e.GET("/devices/:id/history", deviceHandler.GetHistory)

	// Event store
	e.GET("/events", eventHandler.ListEvents)
	e.GET("/events/stats", eventHandler.GetStats)
	e.GET("/events/critical", eventHandler.GetCritical)
	e.GET("/events/unprocessed", eventHandler.GetUnprocessed)
	e.GET("/events/:uuid", eventHandler.GetEvent)
	e.POST("/events/:uuid/resubmit", eventHandler.Resubmit)

	// Incidents
	e.GET("/incidents", incidentHandler.ListIncidents)
	e.GET("/incidents/:id", incidentHandler.GetIncident)
	e.POST("/incidents/:id/resolve", incidentHandler.Resolve)

	return e
}
