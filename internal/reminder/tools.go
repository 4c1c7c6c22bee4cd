// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/providers"
	"github.com/rapidaai/voicegateway/internal/tools"
)

// sessionAgentID is implemented by whatever concrete session type the
// caller's interface{} holds. Kept minimal and local to this package so
// internal/reminder never imports internal/session.
type sessionAgentID interface {
	AgentID() uuid.UUID
}

const (
	createReminderSchema = `{"type":"object","properties":{` +
		`"remind_at":{"type":"string","description":"ISO-8601 timestamp with UTC offset, e.g. 2024-05-01T18:00:00+07:00"},` +
		`"content":{"type":"string","description":"What to remind the user of"},` +
		`"title":{"type":"string","description":"Optional short title"},` +
		`"metadata":{"type":"object","description":"Optional auxiliary data to store alongside the reminder"}` +
		`},"required":["remind_at","content"]}`

	listReminderSchema = `{"type":"object","properties":{` +
		`"period":{"type":"string","enum":["today","week"],"description":"Window to list within, default today"},` +
		`"status":{"type":"string","enum":["pending","completed"],"description":"Filter by delivery status"}` +
		`}}`

	deleteReminderSchema = `{"type":"object","properties":{` +
		`"ids":{"type":"array","items":{"type":"string"},"minItems":1,"description":"Reminder record UUIDs to delete"}` +
		`},"required":["ids"]}`

	updateStatusReminderSchema = `{"type":"object","properties":{` +
		`"id":{"type":"string","description":"Reminder record UUID"},` +
		`"status":{"type":"string","enum":["pending","delivered","received","failed"],"description":"New status"}` +
		`},"required":["id","status"]}`
)

// RegisterTools installs the reminder tool surface into a server-plugin
// executor. Called once at startup after the repository is wired up.
func RegisterTools(exec *tools.ServerPluginExecutor, repo Repository, loc *time.Location) {
	exec.Register(providers.ToolDefinition{
		Name:        "create_reminder",
		Description: "Create a reminder for the user at a specific point in time.",
		JSONSchema:  createReminderSchema,
	}, createReminderFunc(repo, loc))

	exec.Register(providers.ToolDefinition{
		Name:        "get_list_reminder",
		Description: "List reminders for the current agent, optionally filtered by period and status.",
		JSONSchema:  listReminderSchema,
	}, listReminderFunc(repo, loc))

	exec.Register(providers.ToolDefinition{
		Name:        "delete_reminder",
		Description: "Delete one or more reminders by record UUID.",
		JSONSchema:  deleteReminderSchema,
	}, deleteReminderFunc(repo))

	exec.Register(providers.ToolDefinition{
		Name:        "update_status_reminder",
		Description: "Update the delivery status of one reminder.",
		JSONSchema:  updateStatusReminderSchema,
	}, updateStatusReminderFunc(repo))
}

func resolveAgentID(session interface{}) (uuid.UUID, error) {
	holder, ok := session.(sessionAgentID)
	if !ok {
		return uuid.UUID{}, fmt.Errorf("reminder: session does not expose an agent id")
	}
	return holder.AgentID(), nil
}

func reqLLMJSON(payload map[string]interface{}) tools.ActionResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"message":"internal_error"}`)
	}
	return tools.ActionResponse{Action: tools.ActionReqLLM, Response: string(body)}
}

func createReminderFunc(repo Repository, loc *time.Location) tools.PluginFunc {
	return func(ctx context.Context, session interface{}, args map[string]interface{}) (tools.ActionResponse, error) {
		agentID, err := resolveAgentID(session)
		if err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "creation_failed", "reason": err.Error()}), nil
		}

		remindAtRaw, _ := args["remind_at"].(string)
		content, _ := args["content"].(string)
		if remindAtRaw == "" || content == "" {
			return reqLLMJSON(map[string]interface{}{
				"message": "creation_failed",
				"reason":  "remind_at and content are required",
			}), nil
		}

		remindAtUTC, err := time.Parse(time.RFC3339, remindAtRaw)
		if err != nil {
			return reqLLMJSON(map[string]interface{}{
				"message": "creation_failed",
				"reason":  "remind_at must be ISO-8601 with a UTC offset, e.g. 2024-05-01T18:00:00+07:00",
			}), nil
		}
		remindAtUTC = remindAtUTC.UTC()
		if !remindAtUTC.After(time.Now().UTC()) {
			return reqLLMJSON(map[string]interface{}{
				"message": "creation_failed",
				"reason":  "remind_at must be in the future",
			}), nil
		}

		var titlePtr *string
		if t, ok := args["title"].(string); ok && t != "" {
			titlePtr = &t
		}

		metadataJSON := ""
		if meta, ok := args["metadata"]; ok && meta != nil {
			if encoded, err := json.Marshal(meta); err == nil {
				metadataJSON = string(encoded)
			}
		}

		remindAtLocal := remindAtUTC
		if loc != nil {
			remindAtLocal = remindAtUTC.In(loc)
		}

		rem := NewReminder(agentID, content, titlePtr, remindAtUTC, remindAtLocal, metadataJSON)
		if err := repo.Create(ctx, rem); err != nil {
			return reqLLMJSON(map[string]interface{}{
				"message": "creation_failed",
				"reason":  "internal_error",
			}), nil
		}

		return reqLLMJSON(reminderPayload("created", rem)), nil
	}
}

func listReminderFunc(repo Repository, loc *time.Location) tools.PluginFunc {
	return func(ctx context.Context, session interface{}, args map[string]interface{}) (tools.ActionResponse, error) {
		agentID, err := resolveAgentID(session)
		if err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "list_failed", "reason": err.Error()}), nil
		}

		period, _ := args["period"].(string)
		if period == "" {
			period = "today"
		}

		now := time.Now().UTC()
		from := now
		var to time.Time
		switch period {
		case "today":
			to = from.Add(24 * time.Hour)
		case "week":
			to = from.Add(7 * 24 * time.Hour)
		default:
			return reqLLMJSON(map[string]interface{}{
				"message": "list_failed",
				"reason":  "period must be 'today' or 'week'",
			}), nil
		}

		var statusFilter *Status
		if raw, ok := args["status"].(string); ok && raw != "" {
			mapped, ok := listStatusMapping(raw)
			if !ok {
				return reqLLMJSON(map[string]interface{}{
					"message": "list_failed",
					"reason":  "status must be 'pending' or 'completed'",
				}), nil
			}
			statusFilter = mapped
		}

		reminders, err := repo.ListByAgent(ctx, agentID, from, to, statusFilter)
		if err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "list_failed", "reason": "internal_error"}), nil
		}

		items := make([]map[string]interface{}, 0, len(reminders))
		for _, r := range reminders {
			items = append(items, reminderPayload("", r))
		}

		message := "no_reminders"
		if len(items) > 0 {
			message = "listed"
		}
		return reqLLMJSON(map[string]interface{}{"message": message, "reminders": items}), nil
	}
}

// listStatusMapping translates the tool surface's two-valued status filter
// ("pending"/"completed") onto the entity's four-valued Status:
// "pending" selects StatusPending and "completed" selects StatusReceived
// only, so delivered and failed reminders match neither filter.
func listStatusMapping(raw string) (*Status, bool) {
	switch raw {
	case "pending":
		s := StatusPending
		return &s, true
	case "completed":
		s := StatusReceived
		return &s, true
	default:
		return nil, false
	}
}

func deleteReminderFunc(repo Repository) tools.PluginFunc {
	return func(ctx context.Context, session interface{}, args map[string]interface{}) (tools.ActionResponse, error) {
		if _, err := resolveAgentID(session); err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "deletion_failed", "reason": err.Error()}), nil
		}

		raw, ok := args["ids"].([]interface{})
		if !ok || len(raw) == 0 {
			return reqLLMJSON(map[string]interface{}{"message": "deletion_failed", "reason": "ids must be a non-empty list"}), nil
		}

		ids := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if ok && s != "" {
				ids = append(ids, s)
			}
		}
		if len(ids) == 0 {
			return reqLLMJSON(map[string]interface{}{"message": "deletion_failed", "reason": "ids must be a non-empty list"}), nil
		}

		if err := repo.SoftDelete(ctx, ids); err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "deletion_failed", "reason": "internal_error"}), nil
		}
		return reqLLMJSON(map[string]interface{}{"message": "deleted", "ids": ids}), nil
	}
}

func updateStatusReminderFunc(repo Repository) tools.PluginFunc {
	return func(ctx context.Context, session interface{}, args map[string]interface{}) (tools.ActionResponse, error) {
		if _, err := resolveAgentID(session); err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "update_failed", "reason": err.Error()}), nil
		}

		id, _ := args["id"].(string)
		rawStatus, _ := args["status"].(string)
		next, ok := statusMapping(rawStatus)
		if id == "" || !ok {
			return reqLLMJSON(map[string]interface{}{
				"message": "update_failed",
				"reason":  "status must be one of pending, delivered, received, failed",
			}), nil
		}

		ok, err := repo.UpdateStatus(ctx, id, next)
		if err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "update_failed", "reason": "internal_error"}), nil
		}
		if !ok {
			return reqLLMJSON(map[string]interface{}{"message": "update_failed", "reason": "invalid_transition_or_not_found"}), nil
		}

		rem, err := repo.Get(ctx, id)
		if err != nil {
			return reqLLMJSON(map[string]interface{}{"message": "updated", "id": id, "status": string(next)}), nil
		}
		return reqLLMJSON(reminderPayload("updated", *rem)), nil
	}
}

func statusMapping(raw string) (Status, bool) {
	switch raw {
	case string(StatusPending):
		return StatusPending, true
	case string(StatusDelivered):
		return StatusDelivered, true
	case string(StatusReceived):
		return StatusReceived, true
	case string(StatusFailed):
		return StatusFailed, true
	default:
		return "", false
	}
}

func reminderPayload(message string, r Reminder) map[string]interface{} {
	title := ""
	if r.Title != nil {
		title = *r.Title
	}
	payload := map[string]interface{}{
		"id":              r.PublicID,
		"title":           title,
		"content":         r.Content,
		"remind_at":       r.RemindAtUTC.Format(time.RFC3339),
		"remind_at_local": r.RemindAtLocal.Format(time.RFC3339),
		"status":          string(r.Status),
	}
	if message != "" {
		payload["message"] = message
	}
	return payload
}
