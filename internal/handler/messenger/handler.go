package messenger

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dentalert/dentalert-api/internal/handler"
	"github.com/dentalert/dentalert-api/internal/messenger/whatsapp"
	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/messaging"
)

type Handler struct {
	client *whatsapp.Client
	broker messaging.Broker
	logger *logger.Logger
}

func NewHandler(client *whatsapp.Client, broker messaging.Broker, logger *logger.Logger) *Handler {
	return &Handler{client: client, broker: broker, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	wa := r.Group("/whatsapp")
	{
		wa.GET("/status", h.Status)
		wa.GET("/qr", h.QRCode)
	}
}

// RegisterWebhook mounts the gateway callback outside the authenticated
// group; the gateway authenticates with its own token, not a staff JWT.
func (h *Handler) RegisterWebhook(r *gin.RouterGroup) {
	r.POST("/webhooks/whatsapp", h.Inbound)
}

func (h *Handler) Status(c *gin.Context) {
	status := h.client.ConnectionStatus()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"connected": status.Connected,
		"state":     string(status.State),
	}))
}

func (h *Handler) QRCode(c *gin.Context) {
	img, err := h.client.QRCode(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse("gateway unavailable"))
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

type inboundRequest struct {
	From string `json:"from" binding:"required"`
	Text string `json:"text" binding:"required"`
}

// Inbound receives gateway callbacks for incoming chat messages and hands
// them to the reply consumer through the broker.
func (h *Handler) Inbound(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	msg := messaging.InboundMessage{From: req.From, Text: req.Text}
	if err := h.broker.Publish(c.Request.Context(), messaging.ChannelInbound, msg); err != nil {
		h.logger.Error(err, "failed to publish inbound message")
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to enqueue message"))
		return
	}

	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{"status": "queued"}))
}
