package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	campaigndomain "github.com/smallbiznis/studioledger/internal/campaign/domain"
)

func (s *Server) CreateCampaign(c *gin.Context) {
	var req campaigndomain.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	campaign, err := s.campaignSvc.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": campaign})
}

func (s *Server) ListCampaigns(c *gin.Context) {
	campaigns, err := s.campaignSvc.ListCampaigns(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": campaigns})
}

func (s *Server) GetCampaignByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	campaign, err := s.campaignSvc.GetCampaign(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": campaign})
}

func (s *Server) SendCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	campaign, err := s.campaignSvc.SendCampaign(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": campaign})
}
