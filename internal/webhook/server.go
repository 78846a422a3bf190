// Package webhook serves the inbound HTTP surface: the Bitrix24 bot event
// endpoint that feeds the relay, a health check, and read-only JSON status
// endpoints for conversations and pending buffers.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/relay"
	"gorm.io/gorm"
)

// CRM is the slice of the Bitrix client the webhook layer uses for side
// effects around takeovers: identity enrichment and the lead handoff flag.
type CRM interface {
	GetContact(ctx context.Context, contactID string) (Contact, error)
	SetLeadField(ctx context.Context, leadID, field string, value any) error
}

// Contact mirrors bitrix.Contact without importing the client package, so
// tests can stub the CRM with a plain struct.
type Contact struct {
	LeadID string
	Name   string
	Phone  string
	Email  string
}

// StartOpts holds configuration for the webhook server.
type StartOpts struct {
	DB     *gorm.DB
	Router *relay.Router
	Port   int
	Out    io.Writer

	// Optional CRM side effects. LeadFlagField is the UF_CRM_* custom
	// field toggled on the lead when a takeover starts or ends; empty
	// disables flag updates.
	CRM           CRM
	LeadFlagField string
}

// Start launches the webhook HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	engine, err := buildEngine(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Webhook server listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// buildEngine assembles the gin engine with all routes registered.
func buildEngine(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("webhook: db is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("webhook: relay router is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := &handler{
		db:            opts.DB,
		router:        opts.Router,
		crm:           opts.CRM,
		leadFlagField: opts.LeadFlagField,
		out:           opts.Out,
	}
	if h.out == nil {
		h.out = io.Discard
	}

	engine.POST("/bitrix/events", h.handleBitrixEvent)
	engine.GET("/healthz", handleHealthz)
	engine.GET("/api/conversations", h.handleConversations)
	engine.GET("/api/buffers", h.handleBuffers)

	return engine, nil
}

// handler carries the shared dependencies of all routes.
type handler struct {
	db            *gorm.DB
	router        *relay.Router
	crm           CRM
	leadFlagField string
	out           io.Writer
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// jsonString tolerates Bitrix fields that arrive as either a JSON string
// or a number.
type jsonString string

func (s *jsonString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = jsonString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = jsonString(n.String())
	return nil
}
