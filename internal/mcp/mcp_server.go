// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shipmetrics/prism/internal/contract"
)

// NewMCPServer initializes and configures the Prism MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, cache contract.ResultCache, sprints contract.SprintMappingStore) *server.MCPServer {
	s := server.NewMCPServer(
		"Prism Analytics Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		cache:   cache,
		sprints: sprints,
	}

	// --- 1. Tool: aggregate_records ---
	s.AddTool(mcp.NewTool("aggregate_records",
		mcp.WithDescription("Group a snapshot's records along a dimension and compute a metric per group."),
		mcp.WithString("snapshot_path", mcp.Description("Base path of the snapshot files (defaults to the server's configured snapshot).")),
		mcp.WithString("kind", mcp.Description("Record kind to query (issue, pull_request, commit, build, case). Defaults to the server's configured kind.")),
		mcp.WithString("across", mcp.Description("Grouping dimension: a stored field (status, assignee, project), a time field bucketed by interval (created_at, closed_at), or sprint_mapping. Defaults to a single collapsed group.")),
		mcp.WithString("calculation", mcp.Description("Metric to compute per group. Defaults to 'count'."), mcp.Enum("count", "none", "resolution_time", "first_review_time", "author_response_time", "first_response_time", "build_time", "story_point_report", "effort_report", "assignees")),
		mcp.WithString("stack", mcp.Description("Comma-separated secondary dimensions to nest under each group.")),
		mcp.WithString("interval", mcp.Description("Bucket size for temporal dimensions."), mcp.Enum("day", "week", "month", "quarter", "year")),
		mcp.WithString("equals", mcp.Description("Field constraints as field=value[,value...] pairs separated by ';'.")),
		mcp.WithString("excludes", mcp.Description("Field exclusions as field=value[,value...] pairs separated by ';'.")),
		mcp.WithString("from", mcp.Description("Only include records created at or after this RFC 3339 timestamp.")),
		mcp.WithString("to", mcp.Description("Only include records created before this RFC 3339 timestamp.")),
		mcp.WithString("group_label", mcp.Description("Label for the collapsed group when no dimension is given.")),
	), h.handleAggregateRecords)

	// --- 2. Tool: list_records ---
	s.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List a snapshot's raw records matching a filter, paginated."),
		mcp.WithString("snapshot_path", mcp.Description("Base path of the snapshot files.")),
		mcp.WithString("kind", mcp.Description("Record kind to query (issue, pull_request, commit, build, case).")),
		mcp.WithString("equals", mcp.Description("Field constraints as field=value[,value...] pairs separated by ';'.")),
		mcp.WithString("excludes", mcp.Description("Field exclusions as field=value[,value...] pairs separated by ';'.")),
		mcp.WithString("from", mcp.Description("Only include records created at or after this RFC 3339 timestamp.")),
		mcp.WithString("to", mcp.Description("Only include records created before this RFC 3339 timestamp.")),
		mcp.WithNumber("page", mcp.Description("Zero-based page number.")),
		mcp.WithNumber("page_size", mcp.Description("Records per page (max 1000).")),
	), h.handleListRecords)

	// --- 3. Tool: reclassify_sprints ---
	s.AddTool(mcp.NewTool("reclassify_sprints",
		mcp.WithDescription("Recompute the sprint classification of one record against a set of milestones and persist the mappings."),
		mcp.WithString("record_id", mcp.Description("The record to classify."), mcp.Required()),
		mcp.WithString("milestone_ids", mcp.Description("Comma-separated milestone ids to classify against."), mcp.Required()),
		mcp.WithString("snapshot_path", mcp.Description("Base path of the snapshot files.")),
		mcp.WithString("kind", mcp.Description("Record kind (defaults to issue).")),
	), h.handleReclassifySprints)

	// --- 4. Tool: get_store_status ---
	s.AddTool(mcp.NewTool("get_store_status",
		mcp.WithDescription("Report row counts and sizes of the result cache and sprint mapping stores."),
	), h.handleGetStoreStatus)

	return s
}

// StartMCPServer starts the Prism MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, cache contract.ResultCache, sprints contract.SprintMappingStore) error {
	s := NewMCPServer(baseCfg, cache, sprints)
	return server.ServeStdio(s)
}
