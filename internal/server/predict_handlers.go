package server

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudsynth/internal/features"
	"fraudsynth/internal/store"
	"fraudsynth/internal/tables"
)

type predictRequest struct {
	Input     map[string]any `json:"input" binding:"required"`
	Threshold *float64       `json:"threshold"`
	UserID    string         `json:"user_id"`
}

// handlePredict scores a single transaction.
func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: input is required"})
		return
	}

	res, err := s.engine.ScoreOne(req.Input, req.Threshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.UserID != "" {
		if err := s.store.LogPrediction(c.Request.Context(), store.PredictionLog{
			UserID:         req.UserID,
			InputRaw:       req.Input,
			InputFilled:    res.Filled,
			TimeAmountOnly: res.TimeAmountOnly,
			ScaledVector:   res.ScaledVector,
			Probability:    res.Probability,
			Decision:       res.Decision,
			Threshold:      res.Threshold,
			CreatedAt:      time.Now(),
		}); err != nil {
			s.log.Warn("prediction log failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"probability": res.Probability,
		"decision":    res.Decision,
		"filled":      res.Filled,
	})
}

// handlePredictCSV scores an uploaded table. Format is sniffed from leading
// bytes, never from the file name.
func (s *Server) handlePredictCSV(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open upload: " + err.Error()})
		return
	}
	defer f.Close()
	blob, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload: " + err.Error()})
		return
	}

	t, err := tables.Decode(blob)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inference error (upload): " + err.Error()})
		return
	}

	var threshold *float64
	if raw := c.PostForm("threshold"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			threshold = &v
		}
	}

	cols, rows, thr, err := s.engine.ScoreTable(t, threshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols, "rows": rows, "threshold": thr})
}

// handleTemplate returns a CSV template: the fixed header, plus one example
// row from medians.csv (or zeros) when example > 0.
func (s *Server) handleTemplate(c *gin.Context) {
	example, _ := strconv.Atoi(c.DefaultQuery("example", "1"))

	lines := []string{strings.Join(features.FeatureOrder, ",")}
	if example > 0 {
		row := templateRow(filepath.Join(s.engine.Bundle.Dir, "medians"))
		cells := make([]string, 0, len(features.FeatureOrder))
		for _, k := range features.FeatureOrder {
			cells = append(cells, strconv.FormatFloat(row[k], 'g', -1, 64))
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(strings.Join(lines, "\n")))
}

// templateRow builds the example row from a medians table: either long form
// (feature, median columns) or wide form (first row keyed by feature names).
// Missing file or features come back as zeros.
func templateRow(base string) map[string]float64 {
	out := map[string]float64{}
	t := tables.ReadAnyOptional(base)
	if t.Empty() {
		return out
	}
	lower := t.LowerColumns()
	featCol, fOK := lower["feature"]
	medCol, mOK := lower["median"]
	if fOK && mOK {
		for _, rec := range t.Records {
			if v, ok := t.Float(rec, medCol); ok {
				out[rec[featCol]] = v
			}
		}
		return out
	}
	first := t.Records[0]
	for _, col := range t.Columns {
		if v, ok := t.Float(first, col); ok {
			out[col] = v
		}
	}
	return out
}
