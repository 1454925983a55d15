package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) AllBranchesDashboard(c *gin.Context) {
	stats, err := s.allBranches.DashboardStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) AllBranchesSales(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	sales, err := s.allBranches.AllSales(c.Request.Context(), start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sales})
}

func (s *Server) AllBranchesTransactions(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	transactions, err := s.allBranches.AllTransactions(c.Request.Context(), start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transactions})
}

// parseDateRange reads optional start_date/end_date query parameters in
// YYYY-MM-DD form. The end bound is inclusive of its whole day.
func parseDateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	start, err := parseOptionalDate(c.Query("start_date"), false)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return nil, nil, false
	}
	end, err := parseOptionalDate(c.Query("end_date"), true)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return nil, nil, false
	}
	return start, end, true
}

func parseOptionalDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
