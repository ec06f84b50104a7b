package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreamtools/dream-background-remover/pkg/response"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// doJSON calls the daemon and decodes the response, surfacing the
// daemon's error envelope as a readable error.
func doJSON(method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	url := strings.TrimRight(serverAddress, "/") + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", serverAddress, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope response.ErrorResponse
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}

	if result == nil {
		return nil
	}
	return json.Unmarshal(respBody, result)
}
