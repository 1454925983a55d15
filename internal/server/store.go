package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
)

func (s *Server) CreateStore(c *gin.Context) {
	var req storedomain.CreateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	store, err := s.storeSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": store})
}

func (s *Server) ListStores(c *gin.Context) {
	var query struct {
		Page        int    `form:"page"`
		PageSize    int    `form:"page_size"`
		Status      string `form:"status"`
		Query       string `form:"q"`
		ActiveOnly  bool   `form:"active_only"`
		Provisioned bool   `form:"provisioned_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	filter := storedomain.ListFilter{
		ActiveOnly:      query.ActiveOnly,
		ProvisionedOnly: query.Provisioned,
		Status:          strings.TrimSpace(query.Status),
		Query:           strings.TrimSpace(query.Query),
		Page:            query.Page,
		PageSize:        query.PageSize,
	}

	page, err := s.storeSvc.ListPaginated(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page})
}

func (s *Server) GetMainStore(c *gin.Context) {
	store, err := s.storeSvc.GetMain(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if store == nil {
		AbortWithError(c, storedomain.ErrStoreNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": store})
}

func (s *Server) GetStore(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	store, err := s.storeSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if store == nil {
		AbortWithError(c, storedomain.ErrStoreNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": store})
}

func (s *Server) UpdateStore(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	var req storedomain.UpdateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	store, err := s.storeSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": store})
}

func (s *Server) DeleteStore(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	result, err := s.storeSvc.Delete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) StoreStatistics(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	stats, err := s.storeSvc.Statistics(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) ProvisionStoreDatabase(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	result, err := s.storeSvc.ProvisionDatabase(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) AssignUserToStore(c *gin.Context) {
	id, ok := parseStoreID(c)
	if !ok {
		return
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(c.Param("userId")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.storeSvc.AssignUser(c.Request.Context(), userID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"assigned": true}})
}

func parseStoreID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}
