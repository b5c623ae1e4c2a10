package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shipmetrics/prism/core"
	"github.com/shipmetrics/prism/core/timeline"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/internal/snapshot"
	"github.com/shipmetrics/prism/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	cache   contract.ResultCache
	sprints contract.SprintMappingStore
}

// configFrom builds a validated query config from the request parameters,
// falling back to the server's base config for snapshot path and kind.
func (h *toolHandler) configFrom(request mcp.CallToolRequest) (*contract.Config, error) {
	input := &contract.ConfigRawInput{
		SnapshotPathStr: request.GetString("snapshot_path", h.baseCfg.SnapshotPath),
		Kind:            request.GetString("kind", string(h.baseCfg.Kind)),
		Across:          request.GetString("across", ""),
		Calculation:     request.GetString("calculation", ""),
		Stack:           splitCommaList(request.GetString("stack", "")),
		Interval:        request.GetString("interval", ""),
		GroupLabel:      request.GetString("group_label", ""),
		Equals:          splitList(request.GetString("equals", "")),
		Excludes:        splitList(request.GetString("excludes", "")),
		From:            request.GetString("from", ""),
		To:              request.GetString("to", ""),
		Page:            request.GetInt("page", 0),
		PageSize:        request.GetInt("page_size", 0),
	}

	cfg := &contract.Config{}
	if err := contract.ProcessConfigInput(cfg, input); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine loads the snapshot and wires the engine with the handler's
// persistent stores. The in-memory store covers the sprint mapping dimension
// only when no persistent sprint store is configured.
func (h *toolHandler) buildEngine(cfg *contract.Config) (*core.Engine, error) {
	store, err := snapshot.Load(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %q: %w", cfg.SnapshotPath, err)
	}

	opts := []core.Option{
		core.WithTeamResolver(store),
		core.WithTimelineReader(store),
		core.WithMilestoneReader(store),
	}
	if h.sprints != nil {
		opts = append(opts, core.WithSprintMappingStore(h.sprints))
	} else {
		opts = append(opts, core.WithSprintMappingStore(store))
	}
	if h.cache != nil {
		opts = append(opts, core.WithResultCache(h.cache))
	}
	return core.NewEngine(store, opts...), nil
}

func (h *toolHandler) handleAggregateRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.configFrom(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query parameters: %v", err)), nil
	}

	eng, err := h.buildEngine(cfg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result schema.AggregateResult
	if len(cfg.StackAcross) > 0 {
		result, err = eng.StackedGroupBy(ctx, cfg.FilterSpec(), cfg.StackAcross)
	} else {
		result, err = eng.GroupByAndCalculate(ctx, cfg.FilterSpec())
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("aggregation failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.configFrom(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query parameters: %v", err)), nil
	}

	eng, err := h.buildEngine(cfg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := eng.List(ctx, cfg.FilterSpec())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleReclassifySprints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordID := request.GetString("record_id", "")
	milestoneIDs := splitCommaList(request.GetString("milestone_ids", ""))
	if recordID == "" || len(milestoneIDs) == 0 {
		return mcp.NewToolResultError("record_id and milestone_ids are required"), nil
	}

	cfg, err := h.configFrom(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query parameters: %v", err)), nil
	}

	eng, err := h.buildEngine(cfg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rows, err := eng.ReclassifySprints(ctx, recordID, milestoneIDs, timeline.DefaultSprintFields, timeline.DefaultTerminalStatuses)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reclassification failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetStoreStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type namedStatus struct {
		Store  string             `json:"store"`
		Status schema.StoreStatus `json:"status"`
	}
	var statuses []namedStatus

	if h.cache != nil {
		status, err := h.cache.GetStatus()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache status failed: %v", err)), nil
		}
		statuses = append(statuses, namedStatus{Store: "result_cache", Status: status})
	}
	if reporter, ok := h.sprints.(interface {
		GetStatus() (schema.StoreStatus, error)
	}); ok {
		status, err := reporter.GetStatus()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sprint store status failed: %v", err)), nil
		}
		statuses = append(statuses, namedStatus{Store: "sprint_mappings", Status: status})
	}
	if len(statuses) == 0 {
		return mcp.NewToolResultError("no persistent stores are configured"), nil
	}

	jsonData, _ := json.MarshalIndent(statuses, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

// splitList splits a ';'-separated parameter into its entries.
func splitList(s string) []string {
	return splitOn(s, ";")
}

// splitCommaList splits a ','-separated parameter into its entries.
func splitCommaList(s string) []string {
	return splitOn(s, ",")
}

func splitOn(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
