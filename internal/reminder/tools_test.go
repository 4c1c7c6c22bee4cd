// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

package reminder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicegateway/internal/tools"
)

func contextBG() context.Context { return context.Background() }

type fakeSession struct {
	agentID uuid.UUID
}

func (f fakeSession) AgentID() uuid.UUID { return f.agentID }

func decodeResponse(t *testing.T, resp tools.ActionResponse) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Response), &out))
	return out
}

func newRegisteredExecutor(t *testing.T) (*tools.ServerPluginExecutor, Repository) {
	repo := newTestRepository(t)
	exec := tools.NewServerPluginExecutor()
	RegisterTools(exec, repo, time.UTC)
	return exec, repo
}

func TestCreateReminderRejectsPastTime(t *testing.T) {
	exec, _ := newRegisteredExecutor(t)
	session := fakeSession{agentID: uuid.New()}

	resp, err := exec.Execute(contextBG(), session, "create_reminder", map[string]interface{}{
		"remind_at": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		"content":   "too late",
	})
	require.NoError(t, err)
	require.Equal(t, tools.ActionReqLLM, resp.Action)
	payload := decodeResponse(t, resp)
	require.Equal(t, "creation_failed", payload["message"])
}

func TestCreateReminderRejectsMalformedTime(t *testing.T) {
	exec, _ := newRegisteredExecutor(t)
	session := fakeSession{agentID: uuid.New()}

	resp, err := exec.Execute(contextBG(), session, "create_reminder", map[string]interface{}{
		"remind_at": "not-a-time",
		"content":   "whatever",
	})
	require.NoError(t, err)
	payload := decodeResponse(t, resp)
	require.Equal(t, "creation_failed", payload["message"])
}

func TestCreateReminderThenListThenUpdateThenDelete(t *testing.T) {
	exec, _ := newRegisteredExecutor(t)
	session := fakeSession{agentID: uuid.New()}

	createResp, err := exec.Execute(contextBG(), session, "create_reminder", map[string]interface{}{
		"remind_at": time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339),
		"content":   "drink water",
		"title":     "hydrate",
	})
	require.NoError(t, err)
	created := decodeResponse(t, createResp)
	require.Equal(t, "created", created["message"])
	id, ok := created["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	listResp, err := exec.Execute(contextBG(), session, "get_list_reminder", map[string]interface{}{
		"period": "today",
	})
	require.NoError(t, err)
	listed := decodeResponse(t, listResp)
	require.Equal(t, "listed", listed["message"])
	items, ok := listed["reminders"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)

	updateResp, err := exec.Execute(contextBG(), session, "update_status_reminder", map[string]interface{}{
		"id":     id,
		"status": "delivered",
	})
	require.NoError(t, err)
	updated := decodeResponse(t, updateResp)
	require.Equal(t, "updated", updated["message"])
	require.Equal(t, "delivered", updated["status"])

	deleteResp, err := exec.Execute(contextBG(), session, "delete_reminder", map[string]interface{}{
		"ids": []interface{}{id},
	})
	require.NoError(t, err)
	deleted := decodeResponse(t, deleteResp)
	require.Equal(t, "deleted", deleted["message"])
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	exec, _ := newRegisteredExecutor(t)
	session := fakeSession{agentID: uuid.New()}

	resp, err := exec.Execute(contextBG(), session, "update_status_reminder", map[string]interface{}{
		"id":     uuid.New().String(),
		"status": "bogus",
	})
	require.NoError(t, err)
	payload := decodeResponse(t, resp)
	require.Equal(t, "update_failed", payload["message"])
}

func TestDeleteReminderRejectsEmptyIDs(t *testing.T) {
	exec, _ := newRegisteredExecutor(t)
	session := fakeSession{agentID: uuid.New()}

	resp, err := exec.Execute(contextBG(), session, "delete_reminder", map[string]interface{}{
		"ids": []interface{}{},
	})
	require.NoError(t, err)
	payload := decodeResponse(t, resp)
	require.Equal(t, "deletion_failed", payload["message"])
}
