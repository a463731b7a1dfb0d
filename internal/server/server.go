package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/invoice-pricer/internal/currency"
	"github.com/rezonia/invoice-pricer/internal/document"
	"github.com/rezonia/invoice-pricer/internal/model"
)

const refreshTimeout = 30 * time.Second

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
	Logger       zerolog.Logger
}

// Server represents the HTTP API server
type Server struct {
	config    *Config
	router    *gin.Engine
	session   *document.Session
	catalog   *currency.Catalog
	refresher *currency.Refresher
	log       zerolog.Logger
}

// NewServer creates a new API server over session and catalog.
// refresher may be nil, in which case refreshes always go to the
// requested or central bank source.
func NewServer(config *Config, session *document.Session, catalog *currency.Catalog, refresher *currency.Refresher) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:    config,
		router:    router,
		session:   session,
		catalog:   catalog,
		refresher: refresher,
		log:       config.Logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Rate catalog
		v1.GET("/rates", s.handleRates)
		v1.POST("/rates/refresh", s.handleRefreshRates)

		// Stateless pricing
		v1.POST("/price", s.handlePrice)

		// Editable document
		v1.GET("/document", s.handleDocument)
		v1.POST("/document/actions", s.handleAction)
		v1.POST("/document/stage", s.handleStage)
		v1.POST("/document/submit", s.handleSubmit)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRates(c *gin.Context) {
	c.JSON(http.StatusOK, newRatesResponse(s.catalog.Table()))
}

func (s *Server) handleRefreshRates(c *gin.Context) {
	var req RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	source := model.SourceCentralBank
	if s.refresher != nil {
		source = s.refresher.Source()
	}
	if req.Source != "" {
		parsed, err := model.ParseRateSource(req.Source)
		if err != nil {
			s.writeError(c, err)
			return
		}
		source = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	table, err := s.catalog.Refresh(ctx, source)
	if errors.Is(err, model.ErrStaleRefresh) {
		c.JSON(http.StatusAccepted, gin.H{"status": "superseded by a newer refresh"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	// Scheduled refreshes follow the last explicitly requested source
	if s.refresher != nil {
		s.refresher.SetSource(source)
	}
	c.JSON(http.StatusOK, newRatesResponse(table))
}

func (s *Server) handlePrice(c *gin.Context) {
	var req document.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	state, err := document.Build(s.catalog.HomeCurrency(), req, s.catalog.Table())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(state.Document))
}

func (s *Server) handleDocument(c *gin.Context) {
	c.JSON(http.StatusOK, newDocumentResponse(s.session.Document()))
}

func (s *Server) handleAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	action, err := req.Action()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := s.session.Dispatch(action)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(doc))
}

func (s *Server) handleStage(c *gin.Context) {
	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	doc, err := s.session.StageItem(c.Request.Context(), req.ItemCode, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(doc))
}

func (s *Server) handleSubmit(c *gin.Context) {
	submission, err := s.session.Submit()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validationErr *model.ValidationError
		rateErr       *model.RateUnavailableError
		providerErr   *model.ProviderError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			LineID:  validationErr.LineID,
			Field:   validationErr.Field,
			Details: validationErr.Message,
		})
	case errors.As(err, &rateErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:    err.Error(),
			Currency: string(rateErr.Currency),
		})
	case errors.Is(err, model.ErrModeUnchanged), errors.Is(err, model.ErrDuplicateLine):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrLineNotFound), errors.Is(err, document.ErrProductNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrNoLines):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrUnknownSource), errors.Is(err, model.ErrUnknownMode):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "rate provider failed",
			Details: err.Error(),
		})
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
