// Package gateway serves the table functions over HTTP, along with health,
// Prometheus metrics and admin endpoints for the configuration store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tabllm/internal/core"
	"github.com/flemzord/tabllm/internal/functions"
	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/security"
	"github.com/flemzord/tabllm/internal/store"
	"github.com/flemzord/tabllm/internal/telemetry"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It exposes the table functions,
// health, metrics and the admin endpoints for models, prompts and secrets.
type Gateway struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger
	server *http.Server
	audit  io.Closer
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	return node.Decode(&g.config)
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.config.defaults()
	return nil
}

// Validate implements core.Validator. Binding beyond loopback requires auth.
func (g *Gateway) Validate() error {
	addr, err := net.ResolveTCPAddr("tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if !g.config.Auth.IsConfigured() && (addr.IP == nil || !addr.IP.IsLoopback()) {
		return errors.New("gateway: auth is required when binding to " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. Dependencies are resolved from the
// service registry here, after every module has provisioned.
func (g *Gateway) Start() error {
	caller, ok := core.ServiceAs[Caller](g.appCtx, functions.ServiceName)
	if !ok {
		return errors.New("gateway: functions engine not available")
	}

	deps := Deps{
		Functions:    caller,
		Logger:       g.logger,
		Auth:         g.config.Auth,
		MaxBodyBytes: g.config.MaxBodyBytes,
	}
	if reg, ok := core.ServiceAs[*provider.Registry](g.appCtx, provider.ServiceName); ok {
		deps.Health = reg
	}
	if w, ok := core.ServiceAs[store.Writer](g.appCtx, store.ServiceName); ok {
		deps.Store = w
	}
	if reg, ok := core.ServiceAs[*prometheus.Registry](g.appCtx, telemetry.RegistryService); ok {
		deps.Registerer = reg
		deps.Gatherer = reg
	}
	redactor, _ := core.ServiceAs[*security.Redactor](g.appCtx, security.RedactorService)
	deps.Redactor = redactor

	if rl := g.config.RateLimits; rl.CallsPerMin > 0 || rl.RowsPerMin > 0 {
		deps.Limiter = security.NewRateLimiter(rl)
	}

	auditCfg := security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent: func(e security.AuditEvent) {
			g.logger.Debug("audit", "type", string(e.Type), "client", e.Client, "function", e.Function, "outcome", e.Outcome)
		},
	}
	if g.config.AuditLog != "" {
		f, err := openAuditLog(g.config.AuditLog)
		if err != nil {
			return err
		}
		g.audit = f
		auditCfg.Writer = f
	}
	deps.Audit = security.NewAuditLogger(auditCfg)

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      NewHandler(deps),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		g.closeAudit()
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	defer g.closeAudit()
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

func (g *Gateway) closeAudit() {
	if g.audit != nil {
		_ = g.audit.Close()
		g.audit = nil
	}
}

func openAuditLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("gateway: audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("gateway: audit log: %w", err)
	}
	return f, nil
}
