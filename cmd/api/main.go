package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"blog.local/gee"
	"blog.local/gee/middleware"
	blogcache "blog.local/internal/app/blog/cache"
	bloghttpapi "blog.local/internal/app/blog/httpapi"
	"blog.local/internal/app/blog/repo"
	"blog.local/internal/app/blog/stats"
	"blog.local/internal/platform/auth"
	"blog.local/internal/platform/blobstore"
	platformcache "blog.local/internal/platform/cache"
	"blog.local/internal/platform/config"
	"blog.local/internal/platform/db"
	"blog.local/internal/platform/httpmiddleware"
	"blog.local/internal/platform/httpserver"
	"blog.local/internal/platform/metrics"
	"blog.local/internal/platform/migrate"
	"blog.local/internal/platform/ratelimit"
	"blog.local/internal/platform/trace"
	"blog.local/migrations"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	slog.SetDefault(slog.New(h).With("service", cfg.ServiceName))

	//DB
	dbCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	dbPool, errDB := db.New(dbCtx, cfg.DBDSN)
	if errDB != nil {
		log.Fatal(errDB)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(dbCtx); err != nil {
		log.Fatal(err)
	}
	slog.Info("数据库连接成功")

	if cfg.MigrateOnStart {
		migCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, err := migrate.Up(migCtx, dbPool, migrate.Options{Dir: cfg.MigrationsDir, FS: migrations.FS})
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		slog.Info("migrations done", "source", res.Source, "applied", res.AppliedFiles, "skipped", len(res.SkippedFiles))
	}

	usersRepo := repo.NewUsersRepo(dbPool)

	//Redis：连不上时降级为只用本地缓存、不限流
	redisClient, errRedis := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if errRedis != nil {
		slog.Warn("redis unavailable, running without L2 cache and rate limit", "err", errRedis)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}
	//限流器
	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled && redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient)
	} else {
		slog.Warn("RateLimit disabled", "RATELIMIT_ENABLED", cfg.RateLimitEnabled, "redis", redisClient != nil)
	}
	//文章缓存
	localCache, errLocal := blogcache.NewLocalCache(100000, 1<<26) // 10万条目，64MB
	if errLocal != nil {
		log.Fatal(errLocal)
	}
	postCache := blogcache.NewPostCache(redisClient, localCache)
	defer postCache.Close()
	//布隆过滤器 预期 100 万篇，1% 误判率
	bloomFilter := blogcache.NewBloomFilter(1_000_000, 0.01)

	postsRepo := repo.NewPostsRepo(dbPool, postCache, bloomFilter)
	warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := postsRepo.WarmBloom(warmCtx); err != nil {
		// 预热失败时高水位为 0，过滤器不参与判断
		slog.Error("bloom warm failed", "err", err)
	} else {
		slog.Info("bloom warmed", "short_ids", n)
	}
	cancel()

	//封面图存储
	var blobs blobstore.Store
	if cfg.BlobEnabled {
		blobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := blobstore.NewMinioStore(blobCtx, blobstore.MinioOptions{
			Endpoint:      cfg.BlobEndpoint,
			AccessKey:     cfg.BlobAccessKey,
			SecretKey:     cfg.BlobSecretKey,
			Bucket:        cfg.BlobBucket,
			UseSSL:        cfg.BlobUseSSL,
			PublicBaseURL: cfg.BlobPublicBaseURL,
		})
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		blobs = store
	} else {
		slog.Warn("Blob store disabled by config, featured image upload is off", "BLOB_ENABLED", false)
	}

	//初始化阅读统计（根据配置选择 Channel 或 Kafka）
	viewWriter := stats.NewPGViewWriter(dbPool)
	var collector stats.Collector
	var kafkaConsumer *stats.KafkaConsumer
	var channelConsumer *stats.Consumer
	if cfg.KafkaEnabled {
		slog.Info("使用 Kafka 收集阅读统计", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector = stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaConsumer = stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, viewWriter)
	} else {
		slog.Info("使用 Channel 收集阅读统计")
		channelCollector := stats.NewChannelCollector(10000)
		collector = channelCollector
		channelConsumer = stats.NewConsumer(viewWriter, channelCollector)
	}

	// JWT
	ts, jwtErr := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if jwtErr != nil {
		log.Fatal(jwtErr)
	}
	if cfg.AuthEnabled && cfg.JWTSecret == "change-me" {
		slog.Warn("JWT_SECRET is the default value, set it in production")
	}

	metrics.Init()

	if cfg.TracingEnabled {
		shutdown, err := trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName, version)
		if err != nil {
			slog.Error("Trace init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	// 对外业务
	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())

	deps := bloghttpapi.Deps{
		Posts:          postsRepo,
		Users:          usersRepo,
		Blobs:          blobs,
		Collector:      collector,
		Limiter:        limiter,
		Tokens:         ts,
		AuthEnabled:    cfg.AuthEnabled,
		SecureCookies:  cfg.SecureCookies,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PageSize:       cfg.PostsPageSize,
	}
	bloghttpapi.RegisterWebRoutes(r)
	bloghttpapi.RegisterPageRoutes(r, deps)
	bloghttpapi.RegisterAPIRoutes(r.Group("/api/v1"), deps)

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)

	// 仅本机/内网
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	// 数据库连接状态检测
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		dbCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := dbPool.Ping(dbCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("DB Ping Err"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("DB ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminSrv := httpserver.NewAdmin(cfg, adminMux)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errch := make(chan error, 2)

	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(publicSrv, cfg.ShutdownTimeout, stopCtx)
	}()
	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(adminSrv, cfg.ShutdownTimeout, stopCtx)
	}()

	// channel 模式一直消费到 collector 关闭，保证 server 退出后写完缓冲里的事件
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		switch {
		case kafkaConsumer != nil:
			kafkaConsumer.Run(stopCtx)
		case channelConsumer != nil:
			channelConsumer.Run(context.Background())
		}
	}()

	err := <-errch
	stop()
	if err == nil {
		err = <-errch
	} else {
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
	}

	collector.Close()
	select {
	case <-consumerDone:
	case <-time.After(5 * time.Second):
		slog.Warn("view stats consumer did not finish in time")
	}
	if kafkaConsumer != nil {
		kafkaConsumer.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
}

