// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/selftrack/internal/adapters/render"
	"github.com/evanschultz/selftrack/internal/adapters/server/common"
	"github.com/evanschultz/selftrack/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the report tools.
func NewHandler(cfg Config, reports common.ReportService) (*Handler, error) {
	if reports == nil {
		return nil, fmt.Errorf("report service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerAggregateTool(mcpSrv, reports)
	registerBatchTools(mcpSrv, reports)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "selftrack"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerAggregateTool registers the `selftrack.aggregate_periods` tool.
func registerAggregateTool(srv *mcpserver.MCPServer, reports common.ReportService) {
	srv.AddTool(
		mcp.NewTool(
			"selftrack.aggregate_periods",
			mcp.WithDescription("Aggregate an ordered, non-overlapping batch of activity periods into a program/project report."),
			mcp.WithArray(
				"periods",
				mcp.Required(),
				mcp.Description("Periods with start/end epoch milliseconds and details {title, executable, interactive}"),
				mcp.Items(map[string]any{"type": "object"}),
			),
			mcp.WithString("format", mcp.Description("json or markdown"), mcp.Enum("json", "markdown")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Periods []domain.ActivityPeriod `json:"periods"`
			}
			if err := req.BindArguments(&args); err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			report, err := reports.AggregatePeriods(ctx, common.AggregateRequest{Periods: args.Periods})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return reportResult(report, req.GetString("format", "json"))
		},
	)
}

// registerBatchTools registers stored-batch listing and report tools.
func registerBatchTools(srv *mcpserver.MCPServer, reports common.ReportService) {
	srv.AddTool(
		mcp.NewTool(
			"selftrack.list_batches",
			mcp.WithDescription("List stored tracking batches in start order."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			items, err := reports.ListBatches(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"batches": items,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_batches result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"selftrack.batch_report",
			mcp.WithDescription("Aggregate every stored period of one batch."),
			mcp.WithString("batch_id", mcp.Required(), mcp.Description("Batch identifier")),
			mcp.WithString("format", mcp.Description("json or markdown"), mcp.Enum("json", "markdown")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			batchID, err := req.RequireString("batch_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			report, err := reports.BatchReport(ctx, batchID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return reportResult(report, req.GetString("format", "json"))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"selftrack.range_report",
			mcp.WithDescription("Aggregate stored periods fully contained in one RFC3339 time range."),
			mcp.WithString("from", mcp.Required(), mcp.Description("Range start (RFC3339)")),
			mcp.WithString("to", mcp.Required(), mcp.Description("Range end (RFC3339)")),
			mcp.WithString("format", mcp.Description("json or markdown"), mcp.Enum("json", "markdown")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			from, err := req.RequireString("from")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			to, err := req.RequireString("to")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			report, err := reports.RangeReport(ctx, common.RangeRequest{From: from, To: to})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return reportResult(report, req.GetString("format", "json"))
		},
	)
}

// reportResult encodes one report as structured JSON or markdown text.
func reportResult(report domain.FinalReport, format string) (*mcp.CallToolResult, error) {
	if strings.EqualFold(strings.TrimSpace(format), string(render.FormatMarkdown)) {
		return mcp.NewToolResultText(render.Markdown(report)), nil
	}
	result, err := mcp.NewToolResultJSON(report)
	if err != nil {
		return nil, fmt.Errorf("encode report result: %w", err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrRulesUnavailable):
		return mcp.NewToolResultError("configuration_error: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
