package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
)

func (s *Server) ListGatewayConfigs(c *gin.Context) {
	configs, err := s.gatewaySvc.ListConfigs(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": configs})
}

func (s *Server) UpsertGatewayConfig(c *gin.Context) {
	var req gatewayconfigdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Gateway = strings.TrimSpace(c.Param("gateway"))

	summary, err := s.gatewaySvc.UpsertConfig(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ActivateGatewayConfig(c *gin.Context) {
	s.setGatewayActive(c, true)
}

func (s *Server) DeactivateGatewayConfig(c *gin.Context) {
	s.setGatewayActive(c, false)
}

func (s *Server) setGatewayActive(c *gin.Context, active bool) {
	summary, err := s.gatewaySvc.SetActive(c.Request.Context(), strings.TrimSpace(c.Param("gateway")), active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
