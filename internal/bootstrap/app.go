package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dot-pattern-editor/internal/editor"
	"dot-pattern-editor/internal/export"
	httpHandler "dot-pattern-editor/internal/handler/http"
	wsHandler "dot-pattern-editor/internal/handler/websocket"
	"dot-pattern-editor/internal/hub"
	"dot-pattern-editor/internal/infra/setup"
	"dot-pattern-editor/internal/maze"
	"dot-pattern-editor/internal/middleware"
	"dot-pattern-editor/internal/service"
	"dot-pattern-editor/internal/tasks"
	"dot-pattern-editor/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	RedisClient *redis.Client        // 未配置 Redis 时为 nil
	AsynqClient *asynq.Client        // 同上
	Inspector   *asynq.Inspector     // 同上
	AsynqServer *worker.WorkerServer // 同上
	Scheduler   *asynq.Scheduler     // 同上
	Hub         *hub.Hub
	HttpServer  *http.Server
}

// NewLogger 按配置创建 logger
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// 各包通过 logrus 包级函数记录日志，保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	return log
}

// NewEditorFactory 返回 hub 使用的编辑器工厂
func NewEditorFactory(cfg *Config, log *logrus.Logger) hub.EditorFactory {
	return func(sessionID string) *editor.Editor {
		return editor.New(
			editor.WithMaxSize(cfg.MaxGridSize),
			editor.WithRand(maze.NewRand(cfg.MazeSeed)),
			editor.WithLogger(log.WithFields(logrus.Fields{"component": "editor", "session_id": sessionID})),
		)
	}
}

// RouterDeps 汇总构建路由所需的组件
type RouterDeps struct {
	Config    *Config
	Log       *logrus.Logger
	Tokens    *service.TokenService
	Sessions  *httpHandler.SessionHandler
	WebSocket *wsHandler.WebSocketHandler
	Redis     *redis.Client // 为 nil 时不启用限流
}

// NewRouter 初始化 Gin Engine 和路由
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(d.Log))
	router.Use(CORSMiddleware(d.Config.CORSAllowedOrigin))
	if d.Redis != nil {
		router.Use(middleware.RateLimit(d.Redis, d.Config.KeyPrefix, d.Config.RateLimitMax, d.Config.RateLimitWindow))
	}

	api := router.Group("/api")
	api.POST("/sessions", d.Sessions.CreateSession)
	sessionRoutes := api.Group("/sessions/:sessionId").Use(middleware.Auth(d.Tokens))
	{
		sessionRoutes.GET("", d.Sessions.GetState)
		sessionRoutes.DELETE("", d.Sessions.CloseSession)
		sessionRoutes.POST("/grid", d.Sessions.SubmitGrid)
		sessionRoutes.POST("/color", d.Sessions.SelectColor)
		sessionRoutes.POST("/events", d.Sessions.HandleEvent)
		sessionRoutes.POST("/undo", d.Sessions.Undo)
		sessionRoutes.POST("/maze", d.Sessions.GenerateMaze)
		sessionRoutes.POST("/reset", d.Sessions.Reset)
		sessionRoutes.GET("/export.png", d.Sessions.ExportPNG)
		sessionRoutes.POST("/exports", d.Sessions.EnqueueExport)
		sessionRoutes.GET("/exports/:taskId", d.Sessions.ExportStatus)
	}
	wsRoutes := router.Group("/ws").Use(middleware.Auth(d.Tokens))
	{
		wsRoutes.GET("/sessions/:sessionId", d.WebSocket.HandleConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		// logrus 还未配置，直接写 stderr
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Format: %T)", log.GetLevel().String(), log.Formatter)
	log.Info("Configuration loaded successfully")

	app := &App{Config: cfg, Log: log}

	// 3. 初始化可选的 Redis 基础设施
	var exportQueue service.ExportQueue
	if cfg.Redis.Enabled() {
		log.Info("Initializing Redis-backed infrastructure...")
		redisClient, err := setup.InitRedis(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		app.RedisClient = redisClient

		sink, err := export.NewDirSink(cfg.ExportDir)
		if err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to init export directory: %w", err)
		}
		app.AsynqClient = asynq.NewClient(cfg.Redis.AsynqOpt())
		app.Inspector = asynq.NewInspector(cfg.Redis.AsynqOpt())
		exportQueue = tasks.NewQueue(app.AsynqClient, app.Inspector)
		app.AsynqServer = worker.NewWorkerServer(
			cfg.Redis.AsynqOpt(),
			worker.NewExportHandler(sink),
			worker.NewCleanupHandler(sink, cfg.ExportRetention),
			log,
		)
		app.Scheduler = asynq.NewScheduler(cfg.Redis.AsynqOpt(), &asynq.SchedulerOpts{})
		log.WithField("export_dir", sink.Dir()).Info("Asynq client, worker and scheduler initialized")
	} else {
		log.Warn("REDIS_ADDR not set: rate limiting and background export are disabled")
	}

	// 4. 初始化 Hub 和 Services
	app.Hub = hub.NewHub(NewEditorFactory(cfg, log), hub.WithIdleTimeout(cfg.SessionIdle))
	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create TokenService: %w", err)
	}
	editorService := service.NewEditorService(app.Hub, tokens, exportQueue)
	log.Info("Hub and services initialized")

	// 5. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := NewRouter(RouterDeps{
		Config:    cfg,
		Log:       log,
		Tokens:    tokens,
		Sessions:  httpHandler.NewSessionHandler(editorService),
		WebSocket: wsHandler.NewWebSocketHandler(app.Hub, cfg.CORSAllowedOrigin),
		Redis:     app.RedisClient,
	})
	log.Info("Router setup complete")

	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.Log.Info("Asynq worker server routine started")
		a.registerPeriodicTasks()
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	schedule := "@every 1h"
	entryID, err := a.Scheduler.Register(schedule, tasks.NewExportCleanupTask(), asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register periodic export cleanup task: %v", err)
		return
	}
	a.Log.Infof("Periodic export cleanup task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.Scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新请求
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 关闭所有会话，断开 WebSocket 客户端
	a.Hub.Shutdown()

	// 3. 停止后台任务
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}
	if a.Inspector != nil {
		if err := a.Inspector.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq inspector: %v", err)
		}
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// CORSMiddleware 设置跨域响应头并直接应答预检请求
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		// token 可能出现在查询参数中，不记录查询串
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
