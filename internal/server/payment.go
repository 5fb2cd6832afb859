package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
)

// maxWebhookPayload bounds how much of a webhook body is read.
const maxWebhookPayload = 1 << 20

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	var req paymentdomain.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	intent, err := s.paymentSvc.CreatePaymentIntent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": intent})
}

func (s *Server) ProcessPayment(c *gin.Context) {
	var req paymentdomain.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.paymentSvc.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	payment, err := s.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) DownloadPaymentReceipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	filename, content, err := s.paymentSvc.RenderReceipt(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", content)
}

func (s *Server) RefundPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req paymentdomain.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PaymentID = id

	payment, err := s.paymentSvc.ProcessRefund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

// HandlePaymentWebhook acknowledges every verified event. Processing
// failures are logged by the webhook service and never surface here.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	gateway := strings.TrimSpace(c.Param("gateway"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayload))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), gateway, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
