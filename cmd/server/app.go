/*
 * @Description: 应用装配与生命周期管理
 * @Author: 青澜
 * @Date: 2025-09-18 09:10:25
 * @LastEditTime: 2026-04-09 10:42:08
 * @LastEditors: 青澜
 */
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qinglan-dev/qinglan-app/internal/app/bootstrap"
	"github.com/qinglan-dev/qinglan-app/internal/app/task"
	"github.com/qinglan-dev/qinglan-app/internal/infra/persistence/database"
	"github.com/qinglan-dev/qinglan-app/internal/infra/persistence/sqldb"
	"github.com/qinglan-dev/qinglan-app/internal/infra/router"
	"github.com/qinglan-dev/qinglan-app/pkg/config"
	delivery_handler "github.com/qinglan-dev/qinglan-app/pkg/handler/delivery"
	media_handler "github.com/qinglan-dev/qinglan-app/pkg/handler/media"
	monitor_handler "github.com/qinglan-dev/qinglan-app/pkg/handler/monitor"
	"github.com/qinglan-dev/qinglan-app/pkg/idgen"
	"github.com/qinglan-dev/qinglan-app/pkg/service/alert"
	"github.com/qinglan-dev/qinglan-app/pkg/service/cdnmonitor"
	"github.com/qinglan-dev/qinglan-app/pkg/service/guard"
	"github.com/qinglan-dev/qinglan-app/pkg/service/hashreg"
	"github.com/qinglan-dev/qinglan-app/pkg/service/ingest"
	"github.com/qinglan-dev/qinglan-app/pkg/service/storagerouter"
	"github.com/qinglan-dev/qinglan-app/pkg/service/utility"
	"github.com/qinglan-dev/qinglan-app/pkg/service/variant"
)

// App 持有装配完成的全部组件。
type App struct {
	cfg       *config.Config
	engine    *gin.Engine
	server    *http.Server
	scheduler *task.Scheduler
}

// NewApp 按固定顺序装配应用：配置 → 基础设施 → 仓库 → 服务 → 接口 → 路由。
// 返回的 cleanup 负责关闭数据库与缓存连接。
func NewApp() (*App, func(), error) {
	// --- Phase 1: 外部配置 ---
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := idgen.InitSqidsEncoder(); err != nil {
		return nil, nil, fmt.Errorf("初始化公共ID编码器失败: %w", err)
	}

	// --- Phase 2: 基础设施 ---
	sqlDB, driverName, err := database.NewSQLDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}

	// Redis 不可用时返回 nil，缓存整体降级，不阻塞启动
	redisClient, err := database.NewRedisClient(context.Background(), cfg)
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("redis 初始化失败: %w", err)
	}

	cleanup := func() {
		log.Println("执行清理操作：关闭数据库连接...")
		sqlDB.Close()
		if redisClient != nil {
			log.Println("关闭 Redis 连接...")
			redisClient.Close()
		}
	}

	// --- Phase 3: 数据库引导 ---
	if err := bootstrap.NewBootstrapper(sqlDB, driverName).InitializeDatabase(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("数据库引导失败: %w", err)
	}

	// --- Phase 4: 仓库层 ---
	blobRepo := sqldb.NewSQLBlobRepository(sqlDB, driverName)
	assetRepo := sqldb.NewSQLMediaAssetRepository(sqlDB, driverName)

	// --- Phase 5: 服务层 ---
	policies, err := storagerouter.LoadPoliciesFromConfig(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("装载存储策略失败: %w", err)
	}

	alertSvc := alert.NewAlertService(nil)
	registrySvc := hashreg.NewHashRegistryService(blobRepo, redisClient)
	processorSvc := variant.NewVariantProcessorService(cfg)
	routerSvc := storagerouter.NewStorageRouterService(cfg, policies)
	colorSvc := utility.NewColorService()
	ingestSvc := ingest.NewIngestionCoordinatorService(cfg, registrySvc, processorSvc, routerSvc, assetRepo, colorSvc)
	monitorSvc := cdnmonitor.NewCDNMonitorService(cfg, alertSvc, nil)
	guardSvc := guard.NewEdgeAccessGuardService(cfg, alertSvc)

	// --- Phase 6: 接口层与路由 ---
	if !cfg.GetBool(config.KeyServerDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.Default()

	router.SetupRouter(
		engine,
		media_handler.NewHandler(ingestSvc),
		monitor_handler.NewHandler(monitorSvc, alertSvc, guardSvc),
		delivery_handler.NewHandler(),
		guardSvc,
	)

	// --- Phase 7: 周期任务 ---
	scheduler := task.NewScheduler(cfg, monitorSvc, guardSvc)
	scheduler.RegisterJobs()

	app := &App{
		cfg:       cfg,
		engine:    engine,
		scheduler: scheduler,
	}
	return app, cleanup, nil
}

// Run 启动调度器与HTTP服务，阻塞直到服务退出。
func (a *App) Run() error {
	a.scheduler.Start()

	port := a.cfg.GetString(config.KeyServerPort)
	if port == "" {
		port = "8091"
	}

	a.server = &http.Server{
		Addr:    ":" + port,
		Handler: a.engine,
	}

	log.Printf("应用程序启动成功，正在监听端口: %s", port)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 优雅停机：先停调度器等在途任务跑完，再给在途请求一个排空窗口。
func (a *App) Stop() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		log.Println("任务调度器已停止。")
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			log.Printf("HTTP服务停机异常: %v", err)
		} else {
			log.Println("HTTP服务已停止。")
		}
	}
}
