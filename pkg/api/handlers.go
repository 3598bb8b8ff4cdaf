package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Promptonauts/releasepipe/pkg/analyzer"
	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/observability"
	"github.com/Promptonauts/releasepipe/pkg/plan"
	"github.com/Promptonauts/releasepipe/pkg/publish"
)

func (s *Server) validate(c *gin.Context) {
	d, ok := readDescriptor(c)
	if !ok {
		return
	}
	if err := s.checkDescriptor(&d); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "warnings": descriptor.Lint(&d)})
}

func (s *Server) export(c *gin.Context) {
	format, ok := formatParam(c)
	if !ok {
		return
	}
	d, ok := readDescriptor(c)
	if !ok {
		return
	}
	if err := s.checkDescriptor(&d); err != nil {
		s.writeError(c, err)
		return
	}
	data, err := s.render(&d, format)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (s *Server) listDescriptors(c *gin.Context) {
	recs, err := s.store.ListDescriptors()
	if err != nil {
		s.writeError(c, err)
		return
	}
	if recs == nil {
		recs = []*models.DescriptorRecord{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) putDescriptor(c *gin.Context) {
	d, ok := readDescriptor(c)
	if !ok {
		return
	}
	if err := s.checkDescriptor(&d); err != nil {
		s.writeError(c, err)
		return
	}
	rec := &models.DescriptorRecord{Name: c.Param("name"), Descriptor: d}
	if err := s.store.PutDescriptor(rec); err != nil {
		s.writeError(c, err)
		return
	}
	s.refreshDescriptorGauge()
	status := http.StatusOK
	if rec.Revision == 1 {
		status = http.StatusCreated
	}
	c.JSON(status, rec)
}

func (s *Server) getDescriptor(c *gin.Context) {
	rec, err := s.store.GetDescriptor(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if c.Query("format") == "" {
		c.JSON(http.StatusOK, rec)
		return
	}
	format, ok := formatParam(c)
	if !ok {
		return
	}
	data, err := s.render(&rec.Descriptor, format)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (s *Server) deleteDescriptor(c *gin.Context) {
	if err := s.store.DeleteDescriptor(c.Param("name")); err != nil {
		s.writeError(c, err)
		return
	}
	s.refreshDescriptorGauge()
	c.Status(http.StatusNoContent)
}

func (s *Server) refreshDescriptorGauge() {
	recs, err := s.store.ListDescriptors()
	if err != nil {
		s.logger.Warn("count descriptors", "error", err)
		return
	}
	s.metrics.Gauge(observability.MetricStoredDescriptors).Set(int64(len(recs)))
}

func (s *Server) publishDescriptor(c *gin.Context) {
	if s.publisher == nil {
		s.writeError(c, publish.ErrDisabled)
		return
	}
	format, ok := formatParam(c)
	if !ok {
		return
	}
	rec, err := s.store.GetDescriptor(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	data, err := s.render(&rec.Descriptor, format)
	if err != nil {
		s.writeError(c, err)
		return
	}
	key, err := s.publisher.Publish(c.Request.Context(), rec.Name, format, data)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.metrics.Counter(observability.MetricPublishes).Inc()
	c.JSON(http.StatusOK, gin.H{"key": key, "revision": rec.Revision})
}

type planRequest struct {
	Branch      string   `json:"branch"`
	LastVersion string   `json:"lastVersion"`
	Commits     []string `json:"commits"`
	Date        string   `json:"date"`
}

func (s *Server) createPlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.store.GetDescriptor(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	commits := make([]analyzer.Commit, len(req.Commits))
	for i, raw := range req.Commits {
		commits[i] = analyzer.ParseCommit(raw)
	}
	start := time.Now()
	in := plan.Input{
		Branch:      req.Branch,
		LastVersion: req.LastVersion,
		Commits:     commits,
		Date:        req.Date,
	}
	p, err := plan.Build(&rec.Descriptor, in)
	s.metrics.Histogram(observability.MetricPlanDuration).ObserveSince(start)
	s.metrics.Counter(observability.MetricPlans).Inc()
	if err != nil {
		s.recordFailedPlan(rec, in, err)
		s.writeError(c, err)
		return
	}
	s.metrics.Histogram(observability.MetricPlanCommits).Observe(float64(len(commits)))
	if p.Released() {
		s.metrics.Counter(observability.MetricPlanReleases).Inc()
	}

	record := plan.Record(p, rec.Name, rec.Revision)
	if err := s.store.CreatePlan(record); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": record.ID, "plan": p})
}

func (s *Server) recordFailedPlan(rec *models.DescriptorRecord, in plan.Input, cause error) {
	if _, err := plan.SaveFailure(s.store, rec.Name, rec.Revision, in, cause); err != nil {
		s.logger.Warn("record failed plan", "descriptor", rec.Name, "error", err)
	}
}

func (s *Server) listPlans(c *gin.Context) {
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	plans, err := s.store.ListPlans(c.Param("name"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if plans == nil {
		plans = []*models.PlanRecord{}
	}
	c.JSON(http.StatusOK, plans)
}

func (s *Server) getPlan(c *gin.Context) {
	p, err := s.store.GetPlan(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	logs, err := s.store.GetPlanLogs(p.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	p.Logs = logs
	c.JSON(http.StatusOK, p)
}
