package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/v1")
	api.GET("/healthz", s.healthz)
	api.GET("/plans", s.listPlans)

	authed := api.Group("", s.requireAuth())
	mutating := authed.Group("", s.limiter.Middleware())

	// /plans/active is registered before /plans/:id; gin prefers the static segment.
	authed.GET("/plans/active", s.activePortfolio)
	api.GET("/plans/:id", s.getPlan)
	authed.GET("/plans/:id/preview", s.previewActivation)
	mutating.POST("/plans/activate/:id", s.confirmActivation)
	authed.GET("/portfolios", s.listPortfolios)

	authed.GET("/wallet", s.balance)
	authed.GET("/wallet/presets", s.depositPresets)
	authed.GET("/wallet/transactions", s.listTransactions)
	mutating.POST("/wallet/deposits", s.requestDeposit)
	mutating.POST("/wallet/withdrawals", s.requestWithdrawal)
	mutating.POST("/wallet/transactions/:id/cancel", s.cancelTransaction)

	authed.GET("/referrals/me", s.referralStats)
	mutating.POST("/referrals/attribute", s.attributeReferral)

	admin := authed.Group("/admin", s.requireAdmin())
	admin.GET("/transactions", s.listTransactionsByStatus)
	admin.POST("/transactions/:id/resolve", s.resolveTransaction)
	admin.GET("/wallets/:userId/verify", s.verifyBalance)
}
