// Package api provides the REST API server for pitch2midi
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/james-see/pitch2midi/pkg/config"
	"github.com/james-see/pitch2midi/pkg/converter"
	"github.com/james-see/pitch2midi/pkg/melody"
	"github.com/james-see/pitch2midi/pkg/pitchtrack"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Pitch2MIDI API
// @version 1.0
// @description API for transcribing frame-wise pitch tracks into MIDI notes
// @host localhost:8080
// @BasePath /api/v1

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// notesResponse is the body of output=notes
type notesResponse struct {
	Notes         []melody.Note  `json:"notes"`
	Summary       melody.Summary `json:"summary"`
	Window        int            `json:"window"`
	Frames        int            `json:"frames"`
	SampleRate    int            `json:"sample_rate"`
	HopSize       int            `json:"hop_size"`
	FrameDuration float64        `json:"frame_duration"`
}

// Server holds the settings shared by all handlers
type Server struct {
	cfg *config.Config
	log logrus.FieldLogger
}

// NewRouter builds the gin engine without starting it
func NewRouter(cfg *config.Config, log logrus.FieldLogger) *gin.Engine {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	if log == nil {
		log = logrus.New()
	}
	s := &Server{cfg: cfg, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(log))

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.GET("/defaults", s.defaults)
		v1.POST("/transcribe", s.transcribe)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the configured port
func StartServer(cfg *config.Config, log logrus.FieldLogger) error {
	r := NewRouter(cfg, log)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if log != nil {
		log.WithField("addr", addr).Info("starting api server")
	}
	return r.Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader+", Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestID reuses a caller supplied id or mints a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pitch2midi",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the accepted pitch track formats and the output formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	var inputs []gin.H
	for _, codec := range pitchtrack.Codecs() {
		inputs = append(inputs, gin.H{"name": codec.Name(), "extensions": codec.Extensions()})
	}
	c.JSON(http.StatusOK, gin.H{
		"inputs":      inputs,
		"outputs":     []string{"midi", "jams", "notes"},
		"conversions": converter.GetSupportedConversions(),
	})
}

// defaults godoc
// @Summary Show engine defaults
// @Description Returns the engine and MIDI settings applied when a request does not override them
// @Tags info
// @Produce json
// @Success 200 {object} config.Config
// @Router /api/v1/defaults [get]
func (s *Server) defaults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engine": s.cfg.Engine,
		"midi":   s.cfg.MIDI,
	})
}

// transcribe godoc
// @Summary Transcribe a pitch track
// @Description Upload a CSV or JSON pitch track and receive MIDI, JAMS or the note list
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "pitch track to transcribe"
// @Param bpm query number false "MIDI tempo (default from config)"
// @Param smooth query number false "median filter duration in seconds, 0 disables"
// @Param minduration query number false "minimum note duration in seconds"
// @Param output query string false "midi, jams or notes (default: midi)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Router /api/v1/transcribe [post]
func (s *Server) transcribe(c *gin.Context) {
	log := s.log.WithField("request_id", c.GetString(requestIDKey))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Server.MaxUploadMB<<20)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	output := strings.ToLower(c.DefaultQuery("output", "midi"))
	if output != "midi" && output != "jams" && output != "notes" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown output %q", output)})
		return
	}

	mcfg, bpm, err := s.requestConfig(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := converter.DetectFormat(header.Filename)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}
	if !format.IsTrack() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload must be a CSV or JSON pitch track"})
		return
	}

	conv := converter.New(mcfg)
	conv.SetLogger(log)
	conv.MIDI().SetTrackName(s.cfg.MIDI.TrackName)
	conv.MIDI().SetVelocity(uint8(s.cfg.MIDI.Velocity))

	base := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	if base == "" {
		base = "transcribed"
	}

	switch output {
	case "notes":
		t, err := conv.TranscribeData(data, format)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		out, err := json.Marshal(notesResponse{
			Notes:         t.Notes,
			Summary:       t.Summary(),
			Window:        t.Window,
			Frames:        len(t.Track.Frequencies),
			SampleRate:    t.Config.SampleRate,
			HopSize:       t.Config.HopSize,
			FrameDuration: t.FrameDuration(),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", out)
	case "jams":
		out, _, err := conv.TrackToJAMS(data, format, converter.Metadata{Title: header.Filename})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.jams", base))
		c.Data(http.StatusOK, "application/json", out)
	default:
		out, _, err := conv.TrackToMIDI(data, format, bpm)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mid", base))
		c.Data(http.StatusOK, "audio/midi", out)
	}
}

// requestConfig applies the query overrides on top of the server config
func (s *Server) requestConfig(c *gin.Context) (melody.Config, float64, error) {
	mcfg, err := s.cfg.Melody()
	if err != nil {
		return melody.Config{}, 0, err
	}
	bpm := s.cfg.MIDI.BPM

	floatParam := func(name string, dst *float64) error {
		raw, ok := c.GetQuery(name)
		if !ok {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q", name, raw)
		}
		*dst = v
		return nil
	}
	if err := floatParam("bpm", &bpm); err != nil {
		return melody.Config{}, 0, err
	}
	if err := floatParam("smooth", &mcfg.SmoothDuration); err != nil {
		return melody.Config{}, 0, err
	}
	if err := floatParam("minduration", &mcfg.MinDuration); err != nil {
		return melody.Config{}, 0, err
	}

	if err := mcfg.Validate(); err != nil {
		return melody.Config{}, 0, err
	}
	if !(bpm > 0) {
		return melody.Config{}, 0, fmt.Errorf("%w: bpm must be positive", converter.ErrInvalidTempo)
	}
	return mcfg, bpm, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, melody.ErrInvalidConfig),
		errors.Is(err, melody.ErrNonFiniteFrequency),
		errors.Is(err, pitchtrack.ErrInvalidTrack),
		errors.Is(err, converter.ErrInvalidTempo),
		errors.Is(err, converter.ErrPitchOutOfRange),
		errors.Is(err, converter.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
