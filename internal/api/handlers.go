package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"markettrend/server/internal/cleaner"
	"markettrend/server/internal/database"
	"markettrend/server/internal/engine"
	"markettrend/server/internal/models"
	"markettrend/server/internal/tabular"
)

type Handler struct {
	engine   *engine.Engine
	db       *database.Database
	defaults models.AnalysisConfig
	logger   *logrus.Logger
}

// NewHandler wires the analysis endpoints. db may be nil, which disables the
// stored-sale endpoints.
func NewHandler(eng *engine.Engine, db *database.Database, defaults models.AnalysisConfig, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{
		engine:   eng,
		db:       db,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": h.db != nil,
	})
}

// Analyze runs an analysis on a table sent as JSON.
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.Config.ToConfig(h.defaults)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.run(c, models.RawTable{Headers: req.Headers, Rows: req.Rows}, cfg)
}

// Upload runs an analysis on an uploaded CSV or XLSX file. The config is a
// JSON document in the "config" form field.
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	var req ConfigRequest
	if err := json.Unmarshal([]byte(c.PostForm("config")), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "config must be a JSON object"})
		return
	}
	cfg, err := req.ToConfig(h.defaults)
	if err != nil {
		h.respondError(c, err)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.WithError(err).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	table, err := tabular.Read(fileHeader.Filename, f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"file": fileHeader.Filename,
		"size": fileHeader.Size,
		"rows": len(table.Rows),
	}).Info("Received upload")
	h.run(c, table, cfg)
}

// AnalyzeStored runs an analysis on sales from the store.
func (h *Handler) AnalyzeStored(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no sale store configured"})
		return
	}

	var req StoredAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := req.Config.ToConfig(h.defaults)
	if err != nil {
		h.respondError(c, err)
		return
	}

	from, err := parseBound(req.From, "from")
	if err != nil {
		h.respondError(c, err)
		return
	}
	to, err := parseBound(req.To, "to")
	if err != nil {
		h.respondError(c, err)
		return
	}

	sales, err := h.db.LoadSales(c.Request.Context(), database.SaleFilter{City: req.City, From: from, To: to})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.run(c, database.ToRawTable(sales), cfg)
}

// Cities lists the cities with stored sales.
func (h *Handler) Cities(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no sale store configured"})
		return
	}
	cities, err := h.db.Cities(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (h *Handler) run(c *gin.Context, table models.RawTable, cfg models.AnalysisConfig) {
	result, err := h.engine.Run(c.Request.Context(), table, cfg)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var structural *cleaner.StructuralError
	var configErrs models.ConfigErrors

	switch {
	case errors.As(err, &structural):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          models.ErrMissingRequiredFields.Error(),
			"missing_fields": structural.Missing,
		})
	case errors.Is(err, engine.ErrInvalidConfig):
		body := gin.H{"error": engine.ErrInvalidConfig.Error()}
		if errors.As(err, &configErrs) {
			body["details"] = configErrs
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, tabular.ErrEmptyTable), errors.Is(err, tabular.ErrMalformedTable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Analysis request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run analysis"})
	}
}
