package v1

import (
	"github.com/gin-gonic/gin"

	"checkbook/internal/infrastructure/http/v1/handlers"
)

// registerRequestRoutes registers the request store, issuance and balance endpoints.
func registerRequestRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	requestHandler := handlers.NewRequestHandler(base, cfg.Requests, cfg.Ledger, cfg.History)
	issuanceHandler := handlers.NewIssuanceHandler(base, cfg.Issuance)

	rg.GET("/providers/:id/balance", requestHandler.Balance)

	requests := rg.Group("/requests")
	{
		requests.POST("", requestHandler.Create)
		requests.GET("", requestHandler.List)
		requests.GET("/pending", requestHandler.ListPending)
		requests.GET("/generated-unposted", requestHandler.ListGeneratedUnposted)
		requests.GET("/:id", requestHandler.Get)
		requests.PUT("/:id", requestHandler.Update)
		requests.DELETE("/:id", requestHandler.Delete)
		requests.GET("/:id/history", requestHandler.History)

		requests.POST("/:id/issue", issuanceHandler.IssueOne)
		requests.POST("/issue", issuanceHandler.IssueMany)
		requests.POST("/issue-sequential", issuanceHandler.IssueSequential)
		requests.POST("/void", issuanceHandler.Void)
	}
}

// registerPostingRoutes registers ledger posting endpoints.
func registerPostingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	postingHandler := handlers.NewPostingHandler(base, cfg.Posting, cfg.PostingTimeout)
	rg.POST("/postings", postingHandler.PostBatch)
}

// registerReportRoutes registers report and check lookup endpoints.
func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	reportHandler := handlers.NewReportsHandler(base, cfg.Reports)

	reportsGroup := rg.Group("/reports")
	reportsGroup.GET("/postings", reportHandler.Summaries)
	reportsGroup.GET("/postings/detail", reportHandler.Detail)

	checks := rg.Group("/checks")
	checks.GET("", reportHandler.SearchChecks)
	checks.GET("/:id", reportHandler.CheckDetail)
}
