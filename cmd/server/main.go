package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/mediarec/internal/config"
	"github.com/user/mediarec/internal/handler"
	"github.com/user/mediarec/internal/middleware"
	"github.com/user/mediarec/internal/repository"
	"github.com/user/mediarec/internal/router"
	"github.com/user/mediarec/internal/service"
	"github.com/user/mediarec/internal/utils"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	// 初始化仓库
	repos := repository.NewRepositories(db)

	// 选择嵌入服务
	var provider service.EmbeddingProvider
	switch cfg.EmbeddingProvider {
	case "openai":
		provider = utils.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.EmbeddingDim)
	default:
		provider = utils.NewOllamaProvider(cfg.OllamaHost, cfg.OllamaModel, cfg.EmbeddingDim)
	}
	log.Printf("嵌入服务: %s dim=%d", cfg.EmbeddingProvider, cfg.EmbeddingDim)

	// 选择向量索引
	var index service.VectorIndex
	if cfg.ANNEnabled {
		index = service.NewIVFIndex(cfg.EmbeddingDim, cfg.ListCount, cfg.ProbeCount)
	} else {
		index = service.NewBruteForceIndex(cfg.EmbeddingDim)
	}
	log.Printf("向量索引: %s", index.Name())

	// 组装推荐引擎
	catalog := service.NewCatalog()
	embedder := service.NewEmbeddingService(provider, service.NewEmbeddingCache(cfg.EmbeddingCacheSize), cfg.EmbeddingTimeout)
	queryCache := service.NewQueryCache(cfg.QueryCacheSize, cfg.QueryCacheTTL)
	search := service.NewSimilaritySearchEngine(catalog, embedder, index, queryCache)
	prefs := service.NewPreferenceStore(repos.Interaction, repos.Preference, catalog)
	ranker := service.NewPersonalizationRanker(prefs)
	engine := service.NewRecommendService(cfg, catalog, embedder, index, search, prefs, ranker, repos.Media)

	// 恢复持久化状态
	if err := engine.RestoreFromSnapshot(); err != nil {
		log.Printf("媒体快照恢复失败，以空目录启动: %v", err)
	}
	if err := engine.LoadPreferences(); err != nil {
		log.Printf("偏好权重恢复失败: %v", err)
	}

	// 启动查询缓存清理协程
	sweeperStop := make(chan struct{})
	queryCache.StartSweeper(10*time.Minute, sweeperStop)

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 中间件
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 初始化 Handler 并注册路由
	h := handler.NewHandler(engine, cfg)
	router.RegisterRoutes(r, h)

	// 配置 HTTP 服务器
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second, // 大批量摄入可能较慢
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	close(sweeperStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	log.Println("服务器已退出")
}
