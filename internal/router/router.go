package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"civicpulse/internal/handlers"
	"civicpulse/internal/identity"
	"civicpulse/internal/metrics"
	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/processor"
	"civicpulse/internal/services"
	"civicpulse/internal/store"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Store       store.Store
	Processor   processor.Processor
	Verifier    identity.Verifier
	TitlePolicy services.TitlePolicy
	Checkout    services.CheckoutConfig
	Limiter     *middleware.RateLimiter
	Log         logrus.FieldLogger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Services
	issueService := services.NewIssueService(d.Store, d.TitlePolicy, d.Log)
	upvoteService := services.NewUpvoteService(d.Store, d.Log)
	userService := services.NewUserService(d.Store, d.Log)
	coordinator := services.NewCoordinator(d.Processor, d.Store, d.Log)
	checkoutService := services.NewCheckoutService(d.Processor, d.Store, d.Checkout, d.Log)

	// Handlers
	issueHandler := handlers.NewIssueHandler(issueService, upvoteService, userService.Role)
	paymentHandler := handlers.NewPaymentHandler(checkoutService, coordinator)
	userHandler := handlers.NewUserHandler(userService)

	r.Use(middleware.RequestLogger(d.Log), metrics.Middleware(), middleware.LoadIdentity(d.Verifier))

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if d.Limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{d.Limiter.Handler(), h}
	}
	authed := middleware.AuthRequired()
	adminOnly := middleware.RoleRequired(userService.Role, models.RoleAdmin)

	// 运维 (Ops)
	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 问题 (Issues)
	r.POST("/report-issue", issueHandler.Report)                    // 提交问题
	r.GET("/allIssues", issueHandler.List)                          // 搜索、筛选、分页
	r.GET("/issues/categories", issueHandler.Categories)            // 分类列表
	r.GET("/issues/:id", issueHandler.Get)                          // 问题详情
	r.PUT("/issues/:id", authed, issueHandler.Update)               // 编辑与状态流转
	r.GET("/all-issues/:email", issueHandler.ListByReporter)        // 某用户提交的问题
	r.DELETE("/issues/:id", authed, adminOnly, issueHandler.Delete) // 删除问题
	r.PUT("/issues/upvote/:id", limited(issueHandler.Upvote)...)

	// 支付 (Payments)
	r.POST("/create-checkout-session", paymentHandler.CreateCheckoutSession)
	r.POST("/payment/success", limited(paymentHandler.PaymentSuccess)...)
	r.GET("/payments", authed, adminOnly, paymentHandler.ListPayments)
	r.GET("/payments/:email", paymentHandler.ListByPayer)

	// 用户 (Users)
	r.POST("/users", userHandler.Login)
	r.GET("/users", authed, userHandler.List)
	r.GET("/users/role", authed, userHandler.Role)
	r.GET("/users/:email", userHandler.Get)
	r.PUT("/users/block", authed, adminOnly, userHandler.Block)
}
