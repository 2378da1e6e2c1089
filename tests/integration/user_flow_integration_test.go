//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/soaringjerry/cracks/internal/middleware"
)

func baseURL() string {
	if v := os.Getenv("CRACKS_TEST_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func visitorToken(t *testing.T, signature string) string {
	t.Helper()
	tok, err := middleware.NewAuthenticator(os.Getenv("CRACKS_TEST_JWT_SECRET")).SignToken(signature, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestVisitorJourneyIntegration(t *testing.T) {
	base := baseURL()
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(base + "/health")
	if err != nil {
		t.Skipf("server not reachable at %s: %v", base, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	signature := fmt.Sprintf("it%02d-7f3e-44d0-%d", time.Now().Second(), time.Now().UnixNano())
	token := visitorToken(t, signature)

	var first struct {
		Outcome     string `json:"outcome"`
		PriorExists bool   `json:"prior_exists"`
	}
	doRequest(t, client, http.MethodPost, base+"/api/responses/social-contract", token, map[string]any{
		"payload": map[string]any{"remote": "yes", "score": 3},
	}, &first)
	if first.Outcome != "ok" || first.PriorExists {
		t.Fatalf("first submit: %+v", first)
	}

	var second struct {
		PriorExists bool           `json:"prior_exists"`
		Payload     map[string]any `json:"payload"`
	}
	doRequest(t, client, http.MethodPost, base+"/api/responses/social-contract", token, map[string]any{
		"payload": map[string]any{"score": 5},
	}, &second)
	if !second.PriorExists || second.Payload["remote"] != "yes" || second.Payload["score"] != float64(5) {
		t.Fatalf("second submit did not merge: %+v", second)
	}

	var own struct {
		Payload map[string]any `json:"payload"`
	}
	doRequest(t, client, http.MethodGet, base+"/api/responses/social-contract/me", token, nil, &own)
	if own.Payload["remote"] != "yes" {
		t.Fatalf("own record: %+v", own)
	}

	var sess struct {
		ID string `json:"id"`
	}
	doRequest(t, client, http.MethodPost, base+"/api/sessions", "", map[string]any{}, &sess)
	if sess.ID == "" {
		t.Fatalf("expected session id")
	}
	sessURL := base + "/api/sessions/" + sess.ID
	doRequest(t, client, http.MethodPut, sessURL+"/answers", "", map[string]any{
		"answers": map[string]any{"q1": "glacier"},
	}, nil)
	doRequest(t, client, http.MethodPost, sessURL+"/auth", token, map[string]any{}, nil)

	var fromSession struct {
		Outcome string         `json:"outcome"`
		Payload map[string]any `json:"payload"`
	}
	doRequest(t, client, http.MethodPost, sessURL+"/submit/ice", "", map[string]any{}, &fromSession)
	if fromSession.Outcome != "ok" || fromSession.Payload["q1"] != "glacier" {
		t.Fatalf("session submit: %+v", fromSession)
	}

	var points struct {
		Points []json.RawMessage `json:"points"`
	}
	doRequest(t, client, http.MethodGet, base+"/api/cracks/points", "", nil, &points)
	if len(points.Points) == 0 {
		t.Fatalf("expected crack points")
	}
}

func doRequest(t *testing.T, client *http.Client, method, url, token string, body any, out any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}
