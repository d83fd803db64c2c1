package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "item-simulator/server/api/rest"
	"item-simulator/server/audit"
	"item-simulator/server/cache"
	"item-simulator/server/config"
	dbadapter "item-simulator/server/db"
	"item-simulator/server/game/economy"
	mw "item-simulator/server/middleware"
	"item-simulator/server/model"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; tokens are signed with an empty key")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	econ := economy.NewService(db, cfg.Game, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	charH := apirest.NewCharacterHandler(db, cfg.Game)
	itemH := apirest.NewItemHandler(db, econ, auditSvc)
	moneyH := apirest.NewMoneyHandler(econ, auditSvc)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/signup", authH.Signup)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)

		charsG := api.Group("/characters")
		charsG.POST("/create-character", mw.Auth(cfg.Security, c), charH.Create)
		charsG.DELETE("/:id", mw.Auth(cfg.Security, c), charH.Delete)
		charsG.GET("/:id", mw.OptionalAuth(cfg.Security, c), charH.Get)
		charsG.GET("/inventory/:characterId", mw.Auth(cfg.Security, c), charH.ListInventory)
		charsG.GET("/equipped/:characterId", charH.ListEquipped)

		itemsG := api.Group("/items")
		itemsG.GET("/items", itemH.List)
		itemsG.POST("/create-item", mw.Auth(cfg.Security, c), itemH.Create)
		itemsG.PATCH("/update-item/:item_code", mw.Auth(cfg.Security, c), itemH.Update)
		itemsG.POST("/buy-items/:characterId", mw.Auth(cfg.Security, c), itemH.Buy)
		itemsG.POST("/sell-items/:characterId", mw.Auth(cfg.Security, c), itemH.Sell)
		itemsG.POST("/equip-item/:characterId", mw.Auth(cfg.Security, c), itemH.Equip)
		itemsG.POST("/unequip-item/:characterId", mw.Auth(cfg.Security, c), itemH.Unequip)

		api.POST("/money/:characterId", mw.Auth(cfg.Security, c), moneyH.Earn)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
