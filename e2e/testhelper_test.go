package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dreamtools/dream-background-remover/internal/client"
	"github.com/dreamtools/dream-background-remover/internal/controller"
	"github.com/dreamtools/dream-background-remover/internal/dispatch"
	"github.com/dreamtools/dream-background-remover/internal/handler"
	"github.com/dreamtools/dream-background-remover/internal/history"
	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/integrator"
	"github.com/dreamtools/dream-background-remover/internal/settings"
	ws "github.com/dreamtools/dream-background-remover/internal/websocket"
)

const testAPIKey = "r8_test_key_for_e2e"

// stubRemote stands in for the Replicate API. It reports "running" for
// pollsUntilDone polls, then finishes with result bytes (or failReason).
type stubRemote struct {
	mu             sync.Mutex
	pollsUntilDone int
	result         []byte
	failReason     string
	neverFinish    bool

	submits int
	aborts  int
}

func (s *stubRemote) Submit(ctx context.Context, image []byte, modelVersion, credential string) (*client.RemoteRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	return &client.RemoteRef{ID: "pred-e2e"}, nil
}

func (s *stubRemote) Poll(ctx context.Context, ref *client.RemoteRef, credential string) (*client.RemoteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.neverFinish {
		return &client.RemoteStatus{Phase: client.PhaseRunning}, nil
	}
	if s.pollsUntilDone > 0 {
		s.pollsUntilDone--
		return &client.RemoteStatus{Phase: client.PhaseRunning}, nil
	}
	if s.failReason != "" {
		return &client.RemoteStatus{Phase: client.PhaseFailed, Reason: s.failReason}, nil
	}
	return &client.RemoteStatus{Phase: client.PhaseDone, Output: s.result}, nil
}

func (s *stubRemote) Abort(ctx context.Context, ref *client.RemoteRef, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
	return nil
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	remote   *stubRemote
	settings *settings.Store
	srcDir   string
}

// setupApp creates a Fiber app wired like main.go but with a stub remote,
// temp stores and fast polling. withKey seeds a stored API key.
func setupApp(t *testing.T, remote *stubRemote, withKey bool) *testApp {
	t.Helper()

	dir := t.TempDir()

	settingsStore := settings.NewStore(filepath.Join(dir, "config.json"))
	if withKey {
		if err := settingsStore.Save(settings.Settings{
			APIKey: testAPIKey,
			Mode:   "layer",
			Model:  settings.DefaultModelKey,
		}); err != nil {
			t.Fatalf("failed to seed settings: %v", err)
		}
	}

	historyStore, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("failed to open history store: %v", err)
	}
	t.Cleanup(func() { historyStore.Close() })

	validate := validator.New()
	lang := i18n.LanguageEN

	hub := ws.NewHub()
	go hub.Run()

	loop := dispatch.NewLoop(64)
	go loop.Run()
	t.Cleanup(loop.Close)

	fileIntegrator := integrator.NewFileIntegrator(dir)

	sink := controller.MultiSink{
		ws.NewSink(hub, lang),
		history.NewSink(historyStore, lang),
	}
	ctrl := controller.New(controller.Config{
		PollInitial:    5 * time.Millisecond,
		PollMax:        10 * time.Millisecond,
		PollMultiplier: 2,
		Timeout:        5 * time.Second,
		AbortTimeout:   100 * time.Millisecond,
	}, remote, fileIntegrator, sink, loop)

	jobsHandler := handler.NewJobsHandler(ctrl, settingsStore, historyStore, validate, lang, "")
	settingsHandler := handler.NewSettingsHandler(settingsStore)

	app := fiber.New(fiber.Config{
		BodyLimit: 100 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		st := settingsStore.Load()
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"replicate": st.APIKey != "",
				"history":   true,
			},
		})
	})

	api := app.Group("/api")
	api.Post("/jobs", jobsHandler.Start)
	api.Get("/jobs/history", jobsHandler.History)
	api.Get("/jobs/:jobId", jobsHandler.Status)
	api.Post("/jobs/:jobId/cancel", jobsHandler.Cancel)
	api.Get("/settings", settingsHandler.Get)
	api.Put("/settings", settingsHandler.Update)

	return &testApp{
		app:      app,
		remote:   remote,
		settings: settingsStore,
		srcDir:   dir,
	}
}

// pngBytes encodes a small valid PNG, usable both as upload payload and
// as the stubbed model output.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// writeSourceImage drops a source PNG into the app's temp dir and returns
// its path, which doubles as the job target.
func writeSourceImage(t *testing.T, ta *testApp) string {
	t.Helper()
	path := filepath.Join(ta.srcDir, "photo.png")
	if err := os.WriteFile(path, pngBytes(t, 4, 4), 0o644); err != nil {
		t.Fatalf("failed to write source image: %v", err)
	}
	return path
}

func startJobBody(t *testing.T, target, mode string, imageData []byte) string {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"target": target,
		"mode":   mode,
		"image":  base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return string(body)
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

// waitForTerminalState polls the status endpoint until the job reports a
// terminal state. A transient 404 can appear between the controller
// releasing a job and the history record landing; keep polling through it.
func waitForTerminalState(t *testing.T, ta *testApp, jobID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			body := parseJSON(t, resp)
			state, _ := body["state"].(string)
			switch state {
			case "succeeded", "failed", "cancelled":
				return body
			}
		} else {
			readBody(t, resp)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}

func startJob(t *testing.T, ta *testApp, target, mode string) string {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodPost, "/api/jobs",
		startJobBody(t, target, mode, pngBytes(t, 4, 4)))
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	body := parseJSON(t, resp)
	jobID, _ := body["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected jobId in response, got %v", body)
	}
	return jobID
}
