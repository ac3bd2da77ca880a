package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/validation"
)

// DepositRequest represents the JSON body of a deposit request
type DepositRequest struct {
	Amount string `json:"amount" binding:"required"`
	// TransactionID is the external payment reference.
	TransactionID string `json:"transactionId" binding:"required"`
}

// WithdrawalRequest represents the JSON body of a withdrawal request
type WithdrawalRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type AttributeRequest struct {
	ReferCode string `json:"referCode" binding:"required"`
}

type ResolveRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// BalanceResponse is returned by GET /wallet
type BalanceResponse struct {
	Balance       decimal.Decimal `json:"balance"`
	WithdrawalCap decimal.Decimal `json:"withdrawalCap"`
}

type VerifyResponse struct {
	UserID   string          `json:"userId"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Match    bool            `json:"match"`
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// fail maps an engine error onto an HTTP status. Internal errors are logged and hidden.
func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		abort(c, status, "internal error")
		return
	}
	s.logger.Debug("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	abort(c, status, err.Error())
}

func (s *HTTPServer) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		abort(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *HTTPServer) amount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := validation.ParseAmount(raw)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return decimal.Zero, false
	}
	return amount, true
}

func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) listPlans(c *gin.Context) {
	plans, err := s.engine.ListPlans(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (s *HTTPServer) getPlan(c *gin.Context) {
	plan, err := s.engine.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// activePortfolio returns the current portfolio, or null when the user has none.
func (s *HTTPServer) activePortfolio(c *gin.Context) {
	portfolio, err := s.engine.GetActivePortfolio(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func (s *HTTPServer) previewActivation(c *gin.Context) {
	preview, err := s.engine.PreviewActivation(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (s *HTTPServer) confirmActivation(c *gin.Context) {
	portfolio, err := s.engine.ConfirmActivation(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, portfolio)
}

func (s *HTTPServer) listPortfolios(c *gin.Context) {
	portfolios, err := s.engine.ListPortfolios(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolios)
}

func (s *HTTPServer) balance(c *gin.Context) {
	balance, err := s.engine.GetBalance(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Balance:       balance,
		WithdrawalCap: s.engine.WithdrawalCap(balance),
	})
}

func (s *HTTPServer) depositPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": s.engine.DepositPresets()})
}

func (s *HTTPServer) listTransactions(c *gin.Context) {
	txs, err := s.engine.ListTransactions(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (s *HTTPServer) requestDeposit(c *gin.Context) {
	var req DepositRequest
	if !s.bind(c, &req) {
		return
	}
	amount, ok := s.amount(c, req.Amount)
	if !ok {
		return
	}
	tx, err := s.engine.RequestDeposit(c.Request.Context(), userID(c), amount, req.TransactionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *HTTPServer) requestWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if !s.bind(c, &req) {
		return
	}
	amount, ok := s.amount(c, req.Amount)
	if !ok {
		return
	}
	tx, err := s.engine.RequestWithdrawal(c.Request.Context(), userID(c), amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *HTTPServer) cancelTransaction(c *gin.Context) {
	tx, err := s.engine.CancelTransaction(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *HTTPServer) referralStats(c *gin.Context) {
	stats, err := s.engine.ReferralStats(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *HTTPServer) attributeReferral(c *gin.Context) {
	var req AttributeRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.engine.Attribute(c.Request.Context(), userID(c), req.ReferCode); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *HTTPServer) listTransactionsByStatus(c *gin.Context) {
	status := models.TransactionStatus(c.DefaultQuery("status", string(models.TransactionPending)))
	txs, err := s.engine.ListTransactionsByStatus(c.Request.Context(), status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (s *HTTPServer) resolveTransaction(c *gin.Context) {
	var req ResolveRequest
	if !s.bind(c, &req) {
		return
	}
	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		s.fail(c, err)
		return
	}
	account, err := s.engine.ResolveTransaction(c.Request.Context(), c.Param("id"), outcome)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("Transaction resolved by admin", "admin", userID(c), "transaction", c.Param("id"), "outcome", outcome)
	c.JSON(http.StatusOK, account)
}

func (s *HTTPServer) verifyBalance(c *gin.Context) {
	user := c.Param("userId")
	stored, computed, err := s.engine.VerifyBalance(c.Request.Context(), user)
	if err != nil && !errors.Is(err, models.ErrBalanceDrift) {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{
		UserID:   user,
		Stored:   stored,
		Computed: computed,
		Match:    err == nil,
	})
}
