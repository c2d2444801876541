package mcp

import (
	"context"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultSessionLimit    = 20
	defaultBodyWeightLimit = 30
)

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Get the workout session currently in progress with its exercises and sets. Returns null when no session is open."),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get one workout session with its exercises, sets, duration, and total volume."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List workout sessions, newest first. Completed sessions carry duration_minutes and total_volume_lbs."),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 20."), mcp.Min(1)),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("List the user's personal records: the best weight (then reps) ever completed per exercise."),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercise catalog: built-in exercises plus the user's custom ones."),
	mcp.WithString("category", mcp.Description("Restrict to one muscle group."),
		mcp.Enum("legs", "chest", "back", "shoulders", "arms", "core", "full_body")),
)

var toolGetBodyWeight = mcp.NewTool("get_body_weight",
	mcp.WithDescription("Get recent body-weight entries, the latest entry, and the change between the oldest and newest returned entry."),
	mcp.WithNumber("limit", mcp.Description("Maximum entries to return. Defaults to 30."), mcp.Min(1)),
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := h.ds.ActiveSession(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(d)
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("invalid session_id: " + err.Error()), nil
	}

	d, err := h.ds.Session(ctx, UserIDFromContext(ctx), id)
	if err != nil {
		h.log.Error("mcp get_session", "session_id", id, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if d == nil {
		return mcp.NewToolResultError("session not found"), nil
	}
	return jsonResult(d)
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultSessionLimit)
	if limit < 1 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	list, err := h.ds.Sessions(ctx, UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if list == nil {
		list = []models.Session{}
	}
	return jsonResult(list)
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.Records(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if list == nil {
		list = []models.PersonalRecord{}
	}
	return jsonResult(list)
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var category *models.Category
	if raw := req.GetString("category", ""); raw != "" {
		c, err := models.ParseCategory(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		category = &c
	}
	list, err := h.ds.Exercises(ctx, UserIDFromContext(ctx), category)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(list)
}

func (h *handlers) getBodyWeight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultBodyWeightLimit)
	if limit < 1 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	sum, err := h.ds.BodyWeight(ctx, UserIDFromContext(ctx), limit)
	if err != nil {
		h.log.Error("mcp get_body_weight", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sum.Entries == nil {
		sum.Entries = []models.BodyWeightEntry{}
	}
	return jsonResult(sum)
}
