package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

// LokiClient ships structured log lines to Grafana Loki. When Loki is not
// configured the client stays disabled and every log goes to stderr only.
// Stdout is reserved for the MCP protocol stream and is never written here.
type LokiClient struct {
	url        string
	username   string
	apiKey     string
	httpClient *http.Client
	enabled    bool
	appName    string
	instance   string
}

// Loki Push API format
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

var defaultClient *LokiClient

func Init() {
	url := os.Getenv("GRAFANA_LOKI_URL")
	username := os.Getenv("GRAFANA_LOKI_USER")
	apiKey := os.Getenv("GRAFANA_LOKI_API_KEY")

	appName := os.Getenv("APP_ENV")
	if appName == "" {
		appName = "zentao-mcp-dev"
	}

	instance := os.Getenv("INSTANCE_ID")
	if instance == "" {
		if host, err := os.Hostname(); err == nil {
			instance = host
		} else {
			instance = "local"
		}
	}

	if url == "" || username == "" || apiKey == "" {
		log.Println("Loki not configured, remote logging disabled")
		defaultClient = &LokiClient{enabled: false, appName: appName, instance: instance}
		return
	}

	defaultClient = &LokiClient{
		url:        url + "/loki/api/v1/push",
		username:   username,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		enabled:    true,
		appName:    appName,
		instance:   instance,
	}
	log.Println("Loki client initialized")
}

func Push(labels map[string]string, data map[string]any) {
	if defaultClient == nil || !defaultClient.enabled {
		return
	}

	go defaultClient.push(labels, data)
}

func (c *LokiClient) push(labels map[string]string, data map[string]any) {
	if labels == nil {
		labels = make(map[string]string)
	}
	labels["app"] = c.appName
	labels["instance"] = c.instance

	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Printf("Loki: failed to marshal data: %v", err)
		return
	}

	timestamp := strconv.FormatInt(time.Now().UnixNano(), 10)

	req := lokiPushRequest{
		Streams: []lokiStream{
			{
				Stream: labels,
				Values: [][]string{
					{timestamp, string(dataJSON)},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		log.Printf("Loki: failed to marshal request: %v", err)
		return
	}

	httpReq, err := http.NewRequest("POST", c.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("Loki: failed to create request: %v", err)
		return
	}

	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("Loki: failed to send: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Loki: unexpected status code: %d", resp.StatusCode)
		return
	}
}

// LogToolCall logs a tool execution to stderr and Loki.
func LogToolCall(module, tool string, durationMs int64, status string, errMsg string) {
	level := "info"
	if status == "error" {
		level = "error"
	}

	if errMsg != "" {
		log.Printf("tool=%s/%s status=%s duration_ms=%d error=%q", module, tool, status, durationMs, errMsg)
	} else {
		log.Printf("tool=%s/%s status=%s duration_ms=%d", module, tool, status, durationMs)
	}

	labels := map[string]string{
		"module": module,
		"status": status,
		"level":  level,
	}
	data := map[string]any{
		"module":      module,
		"tool":        tool,
		"duration_ms": durationMs,
		"status":      status,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}

	Push(labels, data)
}

// LogRequest logs a handled JSON-RPC method.
func LogRequest(method string, durationMs int64) {
	Push(map[string]string{
		"type":   "request",
		"method": method,
		"level":  "info",
	}, map[string]any{
		"method":      method,
		"duration_ms": durationMs,
	})
}

// LogError logs an error to stderr and Loki.
func LogError(context string, err error) {
	log.Printf("%s: %v", context, err)

	Push(map[string]string{
		"type":  "error",
		"level": "error",
	}, map[string]any{
		"context": context,
		"error":   fmt.Sprintf("%v", err),
	})
}
