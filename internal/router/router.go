package router

import (
	"expvar"
	"fmt"

	"github.com/FacundoTogliefoso/transaction-log/internal/config"
	"github.com/FacundoTogliefoso/transaction-log/internal/handler"
	"github.com/FacundoTogliefoso/transaction-log/internal/ledger"
	"github.com/FacundoTogliefoso/transaction-log/internal/middleware"
	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/query"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter wires stores, the ingestion pipeline and every route.
func SetupRouter(cfg *config.Config, db *gorm.DB) (*gin.Engine, error) {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	mode, err := ledger.ParseDepositMode(cfg.Ingest.DepositMode)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	users := store.NewUsers(db)
	txs := store.NewTransactions(db)
	sessions := store.NewSessions(db)
	audit := store.NewAuditLogs(db)
	clients := store.NewClients(db)
	limits := query.Limits{DefaultSize: cfg.App.PageSize, MaxSize: cfg.App.MaxPageSize}

	pipeline := ledger.NewPipeline(users, txs, ledger.NewEngine(nil), ledger.NewLocker(), mode)

	authHandler := handler.NewAuthHandler(users, sessions, cfg.JWT)
	userHandler := handler.NewUserHandler(users, sessions, cfg.Admin)
	txHandler := handler.NewTransactionHandler(pipeline, txs, cfg.Ingest.File, limits)
	exportHandler := handler.NewExportHandler(txs)
	logHandler := handler.NewLogHandler(audit, limits)
	clientHandler := handler.NewClientHandler(clients, limits)

	// no auth
	r.POST("/login", authHandler.Login)
	r.POST("/refresh", authHandler.Refresh)
	r.POST("/logout", authHandler.Logout)
	r.GET("/users/create-superuser", userHandler.CreateSuperuser)
	r.GET("/metrics", gin.WrapH(expvar.Handler()))

	protected := r.Group("")
	protected.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer),
		middleware.AuditMiddleware(audit),
	)

	manage := middleware.RequireCapability(models.ManageUsers)
	protected.POST("/users", userHandler.Create)
	protected.GET("/users", manage, userHandler.List)
	protected.GET("/users/:id", userHandler.Show)
	protected.PUT("/users/:id", manage, userHandler.Update)
	protected.DELETE("/users/:id", manage, userHandler.Delete)

	protected.GET("/me", handler.GetMe(users))
	protected.POST("/me/password", handler.ChangePassword(users, sessions))

	protected.POST("/transactions", txHandler.Create)
	protected.GET("/transactions", txHandler.List)
	protected.GET("/transactions/export", exportHandler.Export)
	protected.GET("/transactions/:id", txHandler.Show)
	protected.DELETE("/transactions/:id", middleware.RequireCapability(models.DeleteTransactions), txHandler.Delete)

	manageClients := middleware.RequireCapability(models.ManageClients)
	protected.POST("/clients", clientHandler.Create)
	protected.GET("/clients", clientHandler.List)
	protected.GET("/clients/:id", clientHandler.Show)
	protected.PUT("/clients/:id", manageClients, clientHandler.Update)
	protected.DELETE("/clients/:id", manageClients, clientHandler.Delete)

	protected.GET("/audit-logs", middleware.RequireCapability(models.ViewAuditLogs), logHandler.ListLogs)

	return r, nil
}
