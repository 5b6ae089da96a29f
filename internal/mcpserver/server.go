// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Nightingale tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/alerts"
	"github.com/starford/nightingale/internal/caseservice"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/noteservice"
)

const csvContractURI = "nightingale://alert-csv-format"

// Services are the domain services the tools call.
type Services struct {
	Cases    *caseservice.Service
	Notes    *noteservice.Service
	Alerts   *alerts.Service
	Activity *activity.Service
}

// Server wraps the MCP server with Nightingale tools.
type Server struct {
	mcp *server.MCPServer
	svc Services
	now func() time.Time
}

// New creates a new MCP server with all Nightingale tools registered.
func New(svc Services, version string) *Server {
	s := &Server{svc: svc, now: time.Now}

	s.mcp = server.NewMCPServer(
		"Nightingale",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_cases",
		mcp.WithDescription("List cases with id, name, MCN, status and priority. "+
			"Optionally filter by a case-insensitive substring of the name or MCN."),
		mcp.WithString("query", mcp.Description("Optional name or MCN filter")),
	), s.listCases)

	s.mcp.AddTool(mcp.NewTool("get_case",
		mcp.WithDescription("Read one case with its notes and alerts."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Case id")),
	), s.getCase)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Add a note to a case. The note is recorded in the activity log."),
		mcp.WithString("case_id", mcp.Required(), mcp.Description("Case id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("category", mcp.Description("Note category, default General")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("daily_report",
		mcp.WithDescription("Render the activity report of one UTC day."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD, default today (UTC)")),
		mcp.WithString("format", mcp.Description("json, csv or txt, default txt"),
			mcp.Enum("json", "csv", "txt")),
	), s.dailyReport)

	s.mcp.AddTool(mcp.NewTool("import_alerts",
		mcp.WithDescription("Import alerts from CSV text. Read the format first via the "+
			"nightingale://alert-csv-format resource."),
		mcp.WithString("csv", mcp.Required(), mcp.Description("CSV text including the header line")),
	), s.importAlerts)

	s.mcp.AddResource(
		mcp.NewResource(csvContractURI, "Alert CSV Format",
			mcp.WithResourceDescription("Columns and re-import rules for alert CSV files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCSVContract,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type caseSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MCN      string `json:"mcn"`
	Status   string `json:"status"`
	Priority bool   `json:"priority"`
}

func (s *Server) listCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.ToLower(strings.TrimSpace(req.GetString("query", "")))
	cases, err := s.svc.Cases.ListCases(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := []caseSummary{}
	for _, c := range cases {
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) &&
			!strings.Contains(strings.ToLower(c.MCN), query) {
			continue
		}
		out = append(out, caseSummary{ID: c.ID, Name: c.Name, MCN: c.MCN, Status: c.Status, Priority: c.Priority})
	}
	return jsonResult(out)
}

func (s *Server) getCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Cases.GetCase(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.Notes.ListNotes(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	caseAlerts, err := s.svc.Alerts.AlertsForCase(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		models.Case
		Notes  []models.Note            `json:"notes"`
		Alerts []models.AlertWithMatch `json:"alerts"`
	}{c, notes, caseAlerts})
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Notes.AddNote(ctx, caseID, noteservice.NoteInput{
		Category: req.GetString("category", ""),
		Content:  content,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added note %s to case %s", n.ID, caseID)), nil
}

func (s *Server) dailyReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := s.now().UTC()
	if raw := req.GetString("date", ""); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("date %q: want YYYY-MM-DD", raw)), nil
		}
		date = d
	}
	format, err := activity.ParseFormat(req.GetString("format", string(activity.FormatTXT)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Activity.ExportDailyReport(ctx, date, format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) importAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("csv")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Alerts.ImportAlertsCSV(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("alerts: %d added, %d updated, %d total; %d cases created",
		res.Added, res.Updated, res.Total, res.CasesCreated)), nil
}

func (s *Server) readCSVContract(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      csvContractURI,
			MIMEType: "text/markdown",
			Text:     AlertCSVContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
