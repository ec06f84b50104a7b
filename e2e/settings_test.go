package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestSettings_GetDefaults(t *testing.T) {
	ta := setupApp(t, &stubRemote{}, false)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/settings", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["apiKeySet"] != false {
		t.Error("expected apiKeySet false with no stored key")
	}
	if body["mode"] != "create_layer" {
		t.Errorf("expected default mode create_layer, got %v", body["mode"])
	}
	if body["model"] != "851-labs" {
		t.Errorf("expected default model 851-labs, got %v", body["model"])
	}
}

func TestSettings_UpdateAndReadBack(t *testing.T) {
	ta := setupApp(t, &stubRemote{}, false)

	resp, err := doRequest(ta.app, http.MethodPut, "/api/settings",
		`{"apiKey":"r8_brand_new_key","mode":"create_file","model":"bria"}`)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["persisted"] != true {
		t.Error("expected settings to persist to disk")
	}

	resp, err = doRequest(ta.app, http.MethodGet, "/api/settings", "")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	body = parseJSON(t, resp)
	if body["apiKeySet"] != true {
		t.Error("expected apiKeySet true after update")
	}
	hint, _ := body["apiKeyHint"].(string)
	if !strings.HasPrefix(hint, "r8_b") || strings.Contains(hint, "brand_new_key") {
		t.Errorf("expected a short key hint, got %q", hint)
	}
	if body["mode"] != "create_file" {
		t.Errorf("expected mode create_file, got %v", body["mode"])
	}
	if body["model"] != "bria" {
		t.Errorf("expected model bria, got %v", body["model"])
	}
}

func TestSettings_PartialUpdateKeepsOtherFields(t *testing.T) {
	ta := setupApp(t, &stubRemote{}, true)

	resp, err := doRequest(ta.app, http.MethodPut, "/api/settings", `{"mode":"create_file"}`)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doRequest(ta.app, http.MethodGet, "/api/settings", "")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	body := parseJSON(t, resp)
	if body["apiKeySet"] != true {
		t.Error("expected stored key to survive a mode-only update")
	}
	if body["mode"] != "create_file" {
		t.Errorf("expected mode create_file, got %v", body["mode"])
	}
}

func TestSettings_RejectsInvalidValues(t *testing.T) {
	ta := setupApp(t, &stubRemote{}, true)

	resp, err := doRequest(ta.app, http.MethodPut, "/api/settings", `{"mode":"create_hologram"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	resp, err = doRequest(ta.app, http.MethodPut, "/api/settings", `{"model":"dall-e"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSettings_RawKeyNeverReturned(t *testing.T) {
	ta := setupApp(t, &stubRemote{}, true)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/settings", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := readBody(t, resp)
	if strings.Contains(body, testAPIKey) {
		t.Error("settings response must not contain the raw API key")
	}
}
