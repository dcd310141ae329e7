package task

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/model"
)

func newTestServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()

	manager := NewManager(runner, nil)
	server := NewServer(manager, nil, nil, nil)

	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)

	return ts
}

func rpcCall(t *testing.T, ts *httptest.Server, body string) map[string]any {
	t.Helper()

	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)

	defer resp.Body.Close()

	var decoded map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return decoded
}

func rpcErrorCode(t *testing.T, decoded map[string]any) float64 {
	t.Helper()

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok, "expected error in %v", decoded)

	code, ok := errObj["code"].(float64)
	require.True(t, ok)

	return code
}

func sendBody(text string) string {
	params := map[string]any{
		"message": map[string]any{
			"parts": []map[string]any{{"kind": "text", "text": text}},
		},
	}

	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "message/send",
		"params":  params,
	})

	return string(body)
}

func TestRPCMessageSendAndTasksGet(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		events:   []model.MetricEvent{{Source: "FRED", Metric: "VIX", Value: 17.0}},
		artifact: &model.ResearchArtifact{Ticker: "TSLA"},
	}
	ts := newTestServer(t, runner)

	decoded := rpcCall(t, ts, sendBody("Research Tesla"))

	result, ok := decoded["result"].(map[string]any)
	require.True(t, ok, "expected result in %v", decoded)

	taskObj := result["task"].(map[string]any)
	taskID := taskObj["id"].(string)
	require.NotEmpty(t, taskID)
	assert.Equal(t, string(model.StatusSubmitted), taskObj["status"])

	getBody, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tasks/get",
		"params":  map[string]any{"taskId": taskID},
	})

	require.Eventually(t, func() bool {
		decoded := rpcCall(t, ts, string(getBody))

		result, ok := decoded["result"].(map[string]any)
		if !ok {
			return false
		}

		status := result["task"].(map[string]any)["status"]

		return status == string(model.StatusCompleted)
	}, 2*time.Second, 20*time.Millisecond)

	decoded = rpcCall(t, ts, string(getBody))
	taskObj = decoded["result"].(map[string]any)["task"].(map[string]any)

	artifacts, ok := taskObj["artifacts"].([]any)
	require.True(t, ok)
	require.Len(t, artifacts, 1)

	metrics, ok := taskObj["partial_metrics"].([]any)
	require.True(t, ok)
	require.Len(t, metrics, 1)
	assert.Equal(t, "VIX", metrics[0].(map[string]any)["metric"])
}

func TestRPCTasksCancel(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	ts := newTestServer(t, runner)

	decoded := rpcCall(t, ts, sendBody("Research Tesla"))
	taskID := decoded["result"].(map[string]any)["task"].(map[string]any)["id"].(string)

	<-runner.started

	cancelBody, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      3,
		"method":  "tasks/cancel",
		"params":  map[string]any{"taskId": taskID},
	})

	decoded = rpcCall(t, ts, string(cancelBody))
	taskObj := decoded["result"].(map[string]any)["task"].(map[string]any)
	assert.Equal(t, string(model.StatusCanceled), taskObj["status"])
}

func TestRPCErrorCodes(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &stubRunner{})

	tests := []struct {
		name string
		body string
		code float64
	}{
		{"parse error", "{not json", -32700},
		{"invalid request", `{"jsonrpc":"1.0","id":1,"method":"tasks/get"}`, -32600},
		{"method not found", `{"jsonrpc":"2.0","id":1,"method":"tasks/list"}`, -32601},
		{"missing task id", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{}}`, -32602},
		{"unknown task", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"taskId":"nope"}}`, -32001},
		{"unknown cancel", `{"jsonrpc":"2.0","id":1,"method":"tasks/cancel","params":{"taskId":"nope"}}`, -32001},
		{"unparseable message", sendBody("completely unresolvable gibberish input"), -32602},
	}

	for _, tt := range tests {
		decoded := rpcCall(t, ts, tt.body)
		assert.Equal(t, tt.code, rpcErrorCode(t, decoded), tt.name)
	}
}

func TestAgentCardAndHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &stubRunner{})

	resp, err := http.Get(ts.URL + "/.well-known/agent.json")
	require.NoError(t, err)

	defer resp.Body.Close()

	var card map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, agentName, card["name"])

	caps := card["capabilities"].(map[string]any)
	assert.Equal(t, true, caps["partialResults"])
	assert.NotEmpty(t, card["dataSources"])

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)

	defer health.Body.Close()

	var status map[string]any

	require.NoError(t, json.NewDecoder(health.Body).Decode(&status))
	assert.Equal(t, "healthy", status["status"])
	assert.Contains(t, status, "tasks_in_memory")
}
