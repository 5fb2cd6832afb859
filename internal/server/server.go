package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/studioledger/internal/audit"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	"github.com/smallbiznis/studioledger/internal/booking"
	"github.com/smallbiznis/studioledger/internal/campaign"
	campaigndomain "github.com/smallbiznis/studioledger/internal/campaign/domain"
	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/gatewayconfig"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	"github.com/smallbiznis/studioledger/internal/invoice"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/notification"
	"github.com/smallbiznis/studioledger/internal/observability"
	obslogger "github.com/smallbiznis/studioledger/internal/observability/logger"
	obstracing "github.com/smallbiznis/studioledger/internal/observability/tracing"
	"github.com/smallbiznis/studioledger/internal/payment"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/internal/providers"
	"github.com/smallbiznis/studioledger/internal/ratelimit"
	"github.com/smallbiznis/studioledger/internal/scheduler"
	"github.com/smallbiznis/studioledger/internal/studio"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the HTTP API together with every domain service it serves.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	studio.Module,
	booking.Module,
	providers.Module,
	notification.Module,
	gatewayconfig.Module,
	invoice.Module,
	payment.Module,
	campaign.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", HeaderStudioID, HeaderUserID, "X-Request-Id"},
		ExposeHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	genID         *snowflake.Node
	auditSvc      auditdomain.Service
	invoiceSvc    invoicedomain.Service
	paymentSvc    paymentdomain.Service
	webhookSvc    paymentdomain.WebhookService
	gatewaySvc    gatewayconfigdomain.Service
	campaignSvc   campaigndomain.Service
	publicLimiter *ratelimit.PublicLimiter
	scheduler     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	GenID         *snowflake.Node
	AuditSvc      auditdomain.Service
	InvoiceSvc    invoicedomain.Service
	PaymentSvc    paymentdomain.Service
	WebhookSvc    paymentdomain.WebhookService
	GatewaySvc    gatewayconfigdomain.Service
	CampaignSvc   campaigndomain.Service
	PublicLimiter *ratelimit.PublicLimiter `optional:"true"`
	Scheduler     *scheduler.Scheduler     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		genID:         p.GenID,
		auditSvc:      p.AuditSvc,
		invoiceSvc:    p.InvoiceSvc,
		paymentSvc:    p.PaymentSvc,
		webhookSvc:    p.WebhookSvc,
		gatewaySvc:    p.GatewaySvc,
		campaignSvc:   p.CampaignSvc,
		publicLimiter: p.PublicLimiter,
		scheduler:     p.Scheduler,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(StudioContext())

	// -------- Invoices --------
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.POST("/invoices/:id/send", s.SendInvoice)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.GET("/invoices/:id/pdf", s.DownloadInvoicePDF)
	api.GET("/invoices/:id/payments", s.ListInvoicePayments)

	// -------- Payments --------
	api.POST("/payments/intents", s.CreatePaymentIntent)
	api.POST("/payments/process", s.ProcessPayment)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.GET("/payments/:id/receipt", s.DownloadPaymentReceipt)
	api.POST("/payments/:id/refunds", s.RefundPayment)

	// -------- Gateways --------
	api.GET("/gateways", s.ListGatewayConfigs)
	api.PUT("/gateways/:gateway", s.UpsertGatewayConfig)
	api.POST("/gateways/:gateway/activate", s.ActivateGatewayConfig)
	api.POST("/gateways/:gateway/deactivate", s.DeactivateGatewayConfig)

	// -------- Campaigns --------
	api.POST("/campaigns", s.CreateCampaign)
	api.GET("/campaigns", s.ListCampaigns)
	api.GET("/campaigns/:id", s.GetCampaignByID)
	api.POST("/campaigns/:id/send", s.SendCampaign)

	api.GET("/audit-logs", s.ListAuditLogs)
	api.POST("/scheduler/run", s.RunScheduler)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:gateway", s.HandlePaymentWebhook)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public")
	public.Use(s.PublicRateLimit())

	public.GET("/invoices/:token", s.ViewPublicInvoice)
}
