// Package httpserver adapts ArrayService to a REST surface.
package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audhumla/domain/cowarray"
	"audhumla/service"
)

// Server adapts ArrayService to HTTP.
type Server struct {
	log      *slog.Logger
	svc      *service.ArrayService
	gatherer prometheus.Gatherer
}

// NewServer wires the service behind the REST handlers. A nil gatherer
// falls back to the default prometheus registry.
func NewServer(log *slog.Logger, svc *service.ArrayService, gatherer prometheus.Gatherer) *Server {
	if log == nil {
		log = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{log: log, svc: svc, gatherer: gatherer}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	{
		v1.POST("/arrays", s.handleCreate)
		v1.GET("/arrays", s.handleList)
		v1.GET("/arrays/:name", s.handleInfo)
		v1.GET("/arrays/:name/values", s.handleValues)
		v1.GET("/arrays/:name/values/:index", s.handleGet)
		v1.PUT("/arrays/:name/values/:index", s.handlePut)
		v1.POST("/arrays/:name/fill", s.handleFill)
		v1.POST("/snapshot", s.handleSnapshot)
		v1.GET("/stats", s.handleStats)
	}

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return r
}

// -------------------- Requests --------------------

type createRequest struct {
	Name   string `json:"name" binding:"required"`
	Length int    `json:"length"`
}

type putRequest struct {
	Value int64 `json:"value"`
}

type fillRequest struct {
	Value int64 `json:"value"`
}

type seqResponse struct {
	Status string `json:"status"`
	Seq    uint64 `json:"seq"`
}

type valueResponse struct {
	Name  string `json:"name"`
	Index uint64 `json:"index"`
	Value int64  `json:"value"`
}

type valuesResponse struct {
	Name   string  `json:"name"`
	Values []int64 `json:"values"`
	Gen    uint64  `json:"gen"`
}

// -------------------- Commands --------------------

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	info, err := s.svc.Create(req.Name, req.Length)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handlePut(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req putRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	seq, err := s.svc.Put(c.Param("name"), index, req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, seqResponse{Status: "ok", Seq: seq})
}

func (s *Server) handleFill(c *gin.Context) {
	var req fillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	seq, err := s.svc.Fill(c.Param("name"), req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, seqResponse{Status: "ok", Seq: seq})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	if err := s.svc.WriteSnapshot(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// -------------------- Queries --------------------

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.List())
}

func (s *Server) handleInfo(c *gin.Context) {
	info, err := s.svc.Info(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleValues(c *gin.Context) {
	name := c.Param("name")
	vals, gen, err := s.svc.Values(name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, valuesResponse{Name: name, Values: vals, Gen: gen})
}

func (s *Server) handleGet(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	name := c.Param("name")
	v, err := s.svc.Get(name, index)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, valueResponse{Name: name, Index: index, Value: v})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Stats())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// -------------------- Helpers --------------------

func indexParam(c *gin.Context) (uint64, bool) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return 0, false
	}
	return index, true
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalid),
		errors.Is(err, cowarray.ErrIndexRange),
		errors.Is(err, cowarray.ErrStoreLen):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
