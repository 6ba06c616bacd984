package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"availability-proxy/availability"
)

// Fetcher é o que os handlers precisam do cliente Peek.
type Fetcher interface {
	FetchDay(ctx context.Context, date, bookingRefID string) (availability.Document, error)
	FetchRange(ctx context.Context, q availability.RangeQuery) (availability.Document, error)
}

type handlers struct {
	fetcher     Fetcher
	cacheMaxAge time.Duration
	logger      zerolog.Logger
}

type dayResponse struct {
	Date  string              `json:"date"`
	Count int                 `json:"count"`
	Times []availability.Slot `json:"times"`
}

type rangeResponse struct {
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Count     int                 `json:"count"`
	Times     []availability.Slot `json:"times"`
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Peek Availability API",
		"endpoints": gin.H{
			"/availability/{date}": "Get availability for a specific date",
			"/availability-range":  "Get availability for a date range",
		},
	})
}

func (h *handlers) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *handlers) day(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		badRequest(c, "date must be in YYYY-MM-DD format")
		return
	}

	doc, err := h.fetcher.FetchDay(c.Request.Context(), date, c.Query("booking_refid"))
	if err != nil {
		h.upstreamError(c, err)
		return
	}

	slots := availability.Parse(doc)
	h.setCacheHeader(c)
	if callerIsUser(c) {
		c.String(http.StatusOK, availability.FormatDayText(date, slots))
		return
	}
	c.JSON(http.StatusOK, dayResponse{Date: date, Count: len(slots), Times: slots})
}

func (h *handlers) dateRange(c *gin.Context) {
	start := c.Query("start_date")
	end := c.Query("end_date")
	if start == "" || end == "" {
		badRequest(c, "start_date and end_date are required")
		return
	}
	if !validDate(start) || !validDate(end) {
		badRequest(c, "start_date and end_date must be in YYYY-MM-DD format")
		return
	}
	// datas ISO válidas comparam em ordem lexicográfica
	if start > end {
		badRequest(c, "start_date must not be after end_date")
		return
	}

	doc, err := h.fetcher.FetchRange(c.Request.Context(), availability.RangeQuery{
		StartDate:    start,
		EndDate:      end,
		BookingRefID: c.Query("booking_refid"),
		Namespace:    c.Query("namespace"),
		PCID:         c.Query("pc_id"),
	})
	if err != nil {
		h.upstreamError(c, err)
		return
	}

	slots := availability.Parse(doc)
	h.setCacheHeader(c)
	if callerIsUser(c) {
		c.String(http.StatusOK, availability.FormatRangeText(slots))
		return
	}
	c.JSON(http.StatusOK, rangeResponse{StartDate: start, EndDate: end, Count: len(slots), Times: slots})
}

// upstreamError traduz a falha de busca: guard segurando a saída vira 503,
// o resto vira 500 genérico. O corpo nunca vaza detalhe do upstream.
func (h *handlers) upstreamError(c *gin.Context, err error) {
	c.Header("Cache-Control", "no-store")
	if errors.Is(err, availability.ErrBusy) || errors.Is(err, availability.ErrThrottled) {
		h.logger.Info().Err(err).Str("path", c.Request.URL.Path).Msg("upstream guard rejected the call")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Upstream temporarily unavailable"})
		return
	}
	h.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("availability fetch failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch availability data"})
}

func (h *handlers) setCacheHeader(c *gin.Context) {
	if h.cacheMaxAge > 0 {
		c.Header("Cache-Control", "public, max-age="+strconv.Itoa(int(h.cacheMaxAge/time.Second)))
	}
}

func badRequest(c *gin.Context, msg string) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// callerIsUser identifica chamadores humanos (caller_type=USER), que
// recebem texto puro em vez de JSON.
func callerIsUser(c *gin.Context) bool {
	return strings.EqualFold(c.Query("caller_type"), "USER")
}

// validDate aceita exatamente YYYY-MM-DD. time.Parse sozinho deixaria
// passar dígito sem zero à esquerda.
func validDate(s string) bool {
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
