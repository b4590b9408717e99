package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/freevibes/internal/dashboard"
	"github.com/kalambet/freevibes/internal/rss"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *dashboard.Service
	Feeds   *rss.Fetcher
}

// NewMCPServer creates an MCP server exposing the dashboard to assistants:
// read the document, add or edit notes, subscribe feeds, inspect tabs.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"freevibes",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("freevibes — personal dashboard with notes, RSS feeds, and tabs."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("get_dashboard",
			mcp.WithDescription("Return the full dashboard document: settings, tabs, and widgets."),
		),
		mcpGetDashboard(deps),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Add a sticky note widget to the dashboard."),
			mcp.WithString("content", mcp.Description("Note text"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Note title")),
			mcp.WithString("color", mcp.Description("Note color: yellow, green, blue, or red (default yellow)")),
			mcp.WithString("tab_id", mcp.Description("Target tab id (default: current tab)")),
		),
		mcpAddNote(deps),
	)

	s.AddTool(
		mcp.NewTool("update_note",
			mcp.WithDescription("Replace the content of an existing note widget."),
			mcp.WithString("id", mcp.Description("Widget id"), mcp.Required()),
			mcp.WithString("content", mcp.Description("New note text"), mcp.Required()),
		),
		mcpUpdateNote(deps),
	)

	s.AddTool(
		mcp.NewTool("add_feed",
			mcp.WithDescription("Add an RSS feed widget to the dashboard."),
			mcp.WithString("url", mcp.Description("Feed url"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Widget title (default: feed title)")),
			mcp.WithString("tab_id", mcp.Description("Target tab id (default: current tab)")),
		),
		mcpAddFeed(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tabs",
			mcp.WithDescription("List dashboard tabs in display order with widget counts."),
		),
		mcpListTabs(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"freevibes://data",
			"Dashboard Document",
			mcp.WithResourceDescription("Current dashboard document as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceData(deps),
	)

	return s
}

func mcpGetDashboard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, ok := deps.Service.Data()
		if !ok {
			doc = deps.Service.LoadData(ctx)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal document: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		widget := dashboard.Widget{
			Type:    dashboard.WidgetNote,
			Title:   req.GetString("title", ""),
			Content: content,
			Color:   dashboard.NoteColor(req.GetString("color", "")),
			TabID:   req.GetString("tab_id", ""),
		}

		added, err := deps.Service.AddWidget(ctx, widget)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add note: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added note widget %s", added.ID)), nil
	}
}

func mcpUpdateNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		doc, ok := deps.Service.Data()
		if !ok {
			doc = deps.Service.LoadData(ctx)
		}
		widget, ok := doc.FindWidget(id)
		if !ok {
			return mcpError(fmt.Sprintf("no widget with id %s", id)), nil
		}
		if widget.Type != dashboard.WidgetNote {
			return mcpError(fmt.Sprintf("widget %s is not a note", id)), nil
		}

		widget.Content = content
		if err := deps.Service.UpdateWidget(ctx, widget); err != nil {
			return mcpError(fmt.Sprintf("failed to update note: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Updated note %s", id)), nil
	}
}

func mcpAddFeed(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feedURL, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		title := req.GetString("title", "")
		if title == "" {
			// Resolve the feed title eagerly so the widget renders with a
			// name instead of a bare url.
			if res := deps.Feeds.Fetch(ctx, feedURL); res.Feed.Title != "" {
				title = res.Feed.Title
			} else {
				title = feedURL
			}
		}

		widget := dashboard.Widget{
			Type:    dashboard.WidgetRSS,
			Title:   title,
			FeedURL: feedURL,
			TabID:   req.GetString("tab_id", ""),
		}

		added, err := deps.Service.AddWidget(ctx, widget)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add feed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added feed widget %s for %s", added.ID, feedURL)), nil
	}
}

func mcpListTabs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, ok := deps.Service.Data()
		if !ok {
			doc = deps.Service.LoadData(ctx)
		}

		counts := make(map[string]int, len(doc.Tabs))
		for _, w := range doc.Widgets {
			counts[w.TabID]++
		}

		type tabSummary struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Widgets int    `json:"widgets"`
			Current bool   `json:"current,omitempty"`
		}

		tabs := doc.TabsInOrder()
		summaries := make([]tabSummary, len(tabs))
		for i, t := range tabs {
			summaries[i] = tabSummary{
				ID:      t.ID,
				Name:    t.Name,
				Widgets: counts[t.ID],
				Current: t.ID == doc.Settings.CurrentTabID,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal tabs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceData(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		doc, ok := deps.Service.Data()
		if !ok {
			doc = deps.Service.LoadData(ctx)
		}

		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
