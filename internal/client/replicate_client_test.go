package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamtools/dream-background-remover/internal/config"
	"github.com/dreamtools/dream-background-remover/internal/model"
)

func newTestClient(srv *httptest.Server) *ReplicateClient {
	return NewReplicateClient(&config.ReplicateConfig{BaseURL: srv.URL})
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestSubmitPinnedModelUsesVersionHash(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody predictionRequest
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"id":     "pred-123",
			"status": "starting",
			"urls": map[string]string{
				"get":    srv.URL + "/v1/predictions/pred-123",
				"cancel": srv.URL + "/v1/predictions/pred-123/cancel",
			},
		})
	}))
	defer srv.Close()

	ref, err := newTestClient(srv).Submit(context.Background(),
		[]byte("png-bytes"), "851-labs/background-remover:a029dff38972b5fd", "r8_secret")
	require.NoError(t, err)

	assert.Equal(t, "/v1/predictions", gotPath)
	assert.Equal(t, "Bearer r8_secret", gotAuth)
	assert.Equal(t, "a029dff38972b5fd", gotBody.Version)
	image, _ := gotBody.Input["image"].(string)
	assert.True(t, strings.HasPrefix(image, "data:image/png;base64,"))

	assert.Equal(t, "pred-123", ref.ID)
	assert.NotEmpty(t, ref.GetURL)
	assert.NotEmpty(t, ref.CancelURL)
}

func TestSubmitUnpinnedModelUsesModelEndpoint(t *testing.T) {
	var gotPath string
	var gotBody predictionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, http.StatusCreated, map[string]any{"id": "pred-9"})
	}))
	defer srv.Close()

	ref, err := newTestClient(srv).Submit(context.Background(),
		[]byte("png-bytes"), "bria/remove-background", "r8_secret")
	require.NoError(t, err)

	assert.Equal(t, "/v1/models/bria/remove-background/predictions", gotPath)
	assert.Empty(t, gotBody.Version)
	assert.Equal(t, "pred-9", ref.ID)
}

func TestSubmitErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   any
		kind   model.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"detail": "invalid token"}, model.ErrKindAuth},
		{"payment required", http.StatusPaymentRequired, nil, model.ErrKindAuth},
		{"unprocessable", http.StatusUnprocessableEntity, map[string]string{"detail": "input too large"}, model.ErrKindPayload},
		{"server error", http.StatusBadGateway, nil, model.ErrKindNetwork},
		{"other client error", http.StatusTooManyRequests, map[string]string{"detail": "rate limited"}, model.ErrKindRemote},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tc.status, tc.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Submit(context.Background(),
				[]byte("png"), "owner/model:v1", "r8_secret")
			require.Error(t, err)

			var je *model.JobError
			require.ErrorAs(t, err, &je)
			assert.Equal(t, tc.kind, je.Kind)
		})
	}
}

func TestSubmitRejectsEmptyImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty image")
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Submit(context.Background(), nil, "owner/model:v1", "r8_secret")
	var je *model.JobError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, model.ErrKindPayload, je.Kind)
}

func TestPollRunningStatuses(t *testing.T) {
	for _, status := range []string{"starting", "processing", "queued"} {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]string{"id": "pred-1", "status": status})
			}))
			defer srv.Close()

			st, err := newTestClient(srv).Poll(context.Background(), &RemoteRef{ID: "pred-1"}, "r8_secret")
			require.NoError(t, err)
			assert.Equal(t, PhaseRunning, st.Phase)
		})
	}
}

func TestPollSucceededDownloadsSingleOutput(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/files/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-data"))
	})
	mux.HandleFunc("/v1/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":     "pred-1",
			"status": "succeeded",
			"output": srv.URL + "/files/out.png",
		})
	})

	st, err := newTestClient(srv).Poll(context.Background(), &RemoteRef{ID: "pred-1"}, "r8_secret")
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, st.Phase)
	assert.Equal(t, []byte("image-data"), st.Output)
}

func TestPollSucceededConcatenatesOutputList(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/files/part1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first-"))
	})
	mux.HandleFunc("/files/part2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("second"))
	})
	mux.HandleFunc("/v1/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":     "pred-1",
			"status": "succeeded",
			"output": []string{srv.URL + "/files/part1", srv.URL + "/files/part2"},
		})
	})

	st, err := newTestClient(srv).Poll(context.Background(), &RemoteRef{ID: "pred-1"}, "r8_secret")
	require.NoError(t, err)
	assert.Equal(t, []byte("first-second"), st.Output)
}

func TestPollSucceededWithoutOutputIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"id": "pred-1", "status": "succeeded"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Poll(context.Background(), &RemoteRef{ID: "pred-1"}, "r8_secret")
	var je *model.JobError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, model.ErrKindRemote, je.Kind)
}

func TestPollFailedCarriesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{
			"id":     "pred-1",
			"status": "failed",
			"error":  "prediction crashed",
		})
	}))
	defer srv.Close()

	st, err := newTestClient(srv).Poll(context.Background(), &RemoteRef{ID: "pred-1"}, "r8_secret")
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "prediction crashed", st.Reason)
}

func TestPollPrefersStoredGetURL(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var hit string
	mux.HandleFunc("/custom/get", func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Path
		writeJSON(t, w, http.StatusOK, map[string]string{"id": "pred-1", "status": "processing"})
	})

	_, err := newTestClient(srv).Poll(context.Background(),
		&RemoteRef{ID: "pred-1", GetURL: srv.URL + "/custom/get"}, "r8_secret")
	require.NoError(t, err)
	assert.Equal(t, "/custom/get", hit)
}

func TestAbortPostsToCancelEndpoint(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		writeJSON(t, w, http.StatusOK, map[string]string{"id": "pred-1", "status": "canceled"})
	}))
	defer srv.Close()

	err := newTestClient(srv).Abort(context.Background(), &RemoteRef{ID: "pred-1"}, "r8_secret")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/predictions/pred-1/cancel", gotPath)
}
