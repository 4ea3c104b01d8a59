// Package server exposes the engine over HTTP. The core stays a library;
// this is the thin service wrapped around it.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/apperr"
	"github.com/latticehq/lattice/internal/core"
	"github.com/latticehq/lattice/internal/core/model"
)

type Server struct {
	Lattice *core.Lattice
	log     *zap.Logger
}

func New(l *core.Lattice, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Lattice: l, log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/documents", s.IngestDocument)
	r.GET("/documents", s.ListDocuments)
	r.GET("/entities", s.ListEntities)
	r.GET("/relations", s.ListRelations)
	r.GET("/graph/context", s.GraphContext)
	r.POST("/merge", s.Merge)
	r.POST("/saturate", s.Saturate)

	return r
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	s.log.Error("request failed", zap.String("operation", op), zap.Error(err))
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConstraint):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrAdapterFailure):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error(), "operation": op})
}

type IngestRequest struct {
	Text    string `json:"text" binding:"required"`
	Source  string `json:"source_type"`
	Privacy string `json:"privacy_level"`
}

func (s *Server) IngestDocument(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	source := model.SourceUser
	if strings.EqualFold(req.Source, string(model.SourceSearch)) {
		source = model.SourceSearch
	}
	level := model.PrivacyPrivate
	if strings.EqualFold(req.Privacy, string(model.PrivacyPublic)) {
		level = model.PrivacyPublic
	}

	doc, err := s.Lattice.Ingest(c.Request.Context(), req.Text, source, level)
	if err != nil {
		s.fail(c, "ingest", err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) GraphContext(c *gin.Context) {
	var seedIDs []int64
	for _, part := range strings.Split(c.Query("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id: " + part})
			return
		}
		seedIDs = append(seedIDs, id)
	}
	depth, err := strconv.Atoi(c.DefaultQuery("depth", "1"))
	if err != nil || depth < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid depth"})
		return
	}
	level := model.PrivacyPublic
	if strings.EqualFold(c.Query("privacy"), string(model.PrivacyPrivate)) {
		level = model.PrivacyPrivate
	}

	graph, err := s.Lattice.GraphContext(c.Request.Context(), seedIDs, depth, level)
	if err != nil {
		s.fail(c, "graph context", err)
		return
	}
	c.JSON(http.StatusOK, graph)
}

func (s *Server) Merge(c *gin.Context) {
	result, err := s.Lattice.MergeDuplicates(c.Request.Context())
	if err != nil {
		s.fail(c, "merge", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type SaturateRequest struct {
	MaxIterations int `json:"max_iterations"`
}

func (s *Server) Saturate(c *gin.Context) {
	var req SaturateRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = 3
	}
	result, err := s.Lattice.Saturate(c.Request.Context(), req.MaxIterations)
	if err != nil {
		s.fail(c, "saturate", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListDocuments(c *gin.Context) {
	docs, err := s.Lattice.Store.AllDocuments(c.Request.Context())
	if err != nil {
		s.fail(c, "list documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) ListEntities(c *gin.Context) {
	entities, err := s.Lattice.Store.AllEntities(c.Request.Context())
	if err != nil {
		s.fail(c, "list entities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": entities})
}

func (s *Server) ListRelations(c *gin.Context) {
	relations, err := s.Lattice.Store.AllRelations(c.Request.Context())
	if err != nil {
		s.fail(c, "list relations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relations": relations})
}
