package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"collabEngine/backend/internal/cache"
	"collabEngine/backend/internal/collab"
	"collabEngine/backend/internal/httpapi/handlers"
	"collabEngine/backend/internal/httpapi/middleware"
	"collabEngine/backend/internal/store"
	"collabEngine/backend/internal/ws"
)

type CollabConfig struct {
	Running struct {
		Port int `mapstructure:"Port"`
	} `mapstructure:"Running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"Mysql"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"Redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"Kafka"`
	Auth struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"Auth"`
}

func initConfig() (*CollabConfig, error) {
	cfg := &CollabConfig{}
	v := viper.New()
	v.SetConfigName("collabConfig")
	v.SetConfigType("yaml")
	// 兼容从项目根目录或 backend 目录启动
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	gdb, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	defer sqlDB.Close()

	// === 初始化 Kafka Producer ===
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	kafkaSem := collab.NewSemaphoreControl(100)
	dispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	bus := collab.NewBus()
	engine := collab.NewEngine(bus, dispatcher)

	snapshotStore := store.NewSnapshotStore(sqlDB)
	documentStore, err := store.NewDocumentStore(gdb)
	if err != nil {
		log.Fatalf("Failed to init document store: %v", err)
	}

	// 每次提交落一条快照到 mysql（事件订阅者，异步，不在提交临界区里）
	bus.On(collab.EventOperationApplied, func(evt collab.Event) {
		e := evt.(collab.OperationAppliedEvent)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := snapshotStore.SaveDocumentSnapshot(ctx, e.DocumentID, e.Revision, e.Content); err != nil {
			log.Printf("save snapshot failed doc=%s rev=%d err=%v", e.DocumentID, e.Revision, err)
		}
	})

	presenceCache := cache.NewRedisPresence(rdb)
	hub := ws.NewHub(presenceCache)
	wsSem := collab.NewSemaphoreControl(100)
	manager := ws.NewManager(hub, engine, wsSem)

	sessions := handlers.NewSessionHandler(engine, documentStore, snapshotStore)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	api := r.Group("/collab")
	api.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
	api.GET("/ws", manager.WebSocketConnect)
	api.POST("/sessions", sessions.CreateSession)
	api.GET("/sessions/:sessionID", sessions.GetSession)
	api.POST("/sessions/:sessionID/join", sessions.JoinSession)
	api.POST("/sessions/:sessionID/leave", sessions.LeaveSession)
	api.POST("/sessions/:sessionID/operations", sessions.ApplyOperation)
	api.POST("/sessions/:sessionID/cursor", sessions.TrackCursor)
	api.POST("/sessions/:sessionID/revert", sessions.RevertToRevision)
	api.POST("/sessions/:sessionID/lock", sessions.SetLocked)
	api.GET("/sessions/:sessionID/comments", sessions.ListComments)
	api.POST("/sessions/:sessionID/comments", sessions.AddComment)
	api.POST("/sessions/:sessionID/comments/:commentID/replies", sessions.ReplyToComment)
	api.POST("/sessions/:sessionID/comments/:commentID/resolve", sessions.ResolveComment)
	api.GET("/sessions/:sessionID/annotations", sessions.ListAnnotations)
	api.POST("/sessions/:sessionID/annotations", sessions.AddAnnotation)
	api.DELETE("/sessions/:sessionID/annotations/:annotationID", sessions.RemoveAnnotation)
	api.DELETE("/documents/:documentID", sessions.ArchiveDocument)
	api.GET("/documents/:documentID/history", sessions.GetRevisionHistory)
	api.GET("/documents/:documentID/revisions/:revision", sessions.GetRevision)

	r.GET("/collab/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	_ = r.Run(fmt.Sprintf(":%d", cfg.Running.Port))
}
