package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicpulse/internal/models"
	"civicpulse/internal/services"
)

type PaymentHandler struct {
	checkout *services.CheckoutService
	payments *services.Coordinator
}

func NewPaymentHandler(checkout *services.CheckoutService, payments *services.Coordinator) *PaymentHandler {
	return &PaymentHandler{checkout: checkout, payments: payments}
}

type checkoutRequest struct {
	Type        string `json:"type"`
	SubjectID   flexID `json:"subjectId"`
	ID          flexID `json:"id"`     // issue id, older clients
	UserID      flexID `json:"userId"` // subscriber id, older clients
	Email       string `json:"email"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Tittle      string `json:"tittle"` // older clients misspell it
	Description string `json:"description"`
	Image       string `json:"image"`
	Location    string `json:"location"`
}

func (r checkoutRequest) subject(t models.PaymentType) uint {
	if r.SubjectID != 0 {
		return uint(r.SubjectID)
	}
	if t == models.PaymentSubscribe {
		return uint(r.UserID)
	}
	return uint(r.ID)
}

// CreateCheckoutSession 创建支付会话并返回跳转地址
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid checkout request")
		return
	}
	ptype := models.PaymentType(req.Type)
	if ptype == "" {
		ptype = models.PaymentBoost
	}

	url, err := h.checkout.CreateSession(c.Request.Context(), services.CheckoutRequest{
		Type:        ptype,
		SubjectID:   req.subject(ptype),
		Email:       req.Email,
		Name:        firstNonEmpty(req.Name, req.Title, req.Tittle),
		Description: req.Description,
		Image:       req.Image,
		Location:    req.Location,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// PaymentSuccess confirms a checkout session. Calling it again for the same
// session returns the recorded payment without applying anything twice.
func (h *PaymentHandler) PaymentSuccess(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid confirmation request")
		return
	}
	sessionID := firstNonEmpty(req.SessionID, c.Query("session_id"))

	res, err := h.payments.Confirm(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, err)
		return
	}
	switch {
	case res.Record == nil:
		c.JSON(http.StatusOK, gin.H{"applied": false, "pending": true, "message": "Payment not completed yet"})
	case res.Applied:
		c.JSON(http.StatusOK, gin.H{"applied": true, "paymentInfo": res.Record, "orderId": res.Record.ID})
	default:
		c.JSON(http.StatusOK, gin.H{"applied": false, "existingRecord": res.Record})
	}
}

// ListPayments returns the whole ledger.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	records, err := h.payments.History(c.Request.Context(), "")
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ListByPayer returns the payments made by one email.
func (h *PaymentHandler) ListByPayer(c *gin.Context) {
	records, err := h.payments.History(c.Request.Context(), c.Param("email"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
