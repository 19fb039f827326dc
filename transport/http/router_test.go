package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/authrelay/adapters/tokenizer"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/internal/metrics"
	"github.com/layer-3/authrelay/service"
)

const testIss = "did:pkh:eip155:1:0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type fakeClient struct {
	pending   map[uint64]core.PendingRequest
	cacaos    map[uint64]core.Cacao
	responded []core.RespondParams
	lastOpts  *service.RequestOptions
}

func (f *fakeClient) Request(ctx context.Context, params core.RequestParams, opts *service.RequestOptions) (core.RequestResult, error) {
	if err := service.IsValidRequest(params, core.DefaultExpiryBounds); err != nil {
		return core.RequestResult{}, err
	}
	f.lastOpts = opts
	return core.RequestResult{ID: 7, URI: "wc:topic@2?relay-protocol=irn&symKey=00"}, nil
}

func (f *fakeClient) Pair(ctx context.Context, uri string) (core.Pairing, error) {
	if !core.IsValidPairURI(uri) {
		return core.Pairing{}, core.ErrMissingOrInvalid
	}
	return core.Pairing{Topic: "topic"}, nil
}

func (f *fakeClient) GetPendingRequests(ctx context.Context) (map[uint64]core.PendingRequest, error) {
	return f.pending, nil
}

func (f *fakeClient) FormatMessage(payload core.CacaoRequestPayload, iss string) (string, error) {
	return core.FormatMessage(payload, iss)
}

func (f *fakeClient) Respond(ctx context.Context, params core.RespondParams, iss string) error {
	if _, ok := f.pending[params.ID]; !ok {
		return core.ErrInvalidRespond
	}
	f.responded = append(f.responded, params)
	return nil
}

func (f *fakeClient) GetResponse(ctx context.Context, id uint64) (core.Cacao, error) {
	c, ok := f.cacaos[id]
	if !ok {
		return core.Cacao{}, core.ErrNotFound
	}
	return c, nil
}

func (f *fakeClient) VerifyCacao(ctx context.Context, cacao core.Cacao) (bool, error) {
	return true, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *fakeClient) {
	gin.SetMode(gin.TestMode)

	client := &fakeClient{
		pending: map[uint64]core.PendingRequest{
			2: {ID: 2, PairingTopic: "topic"},
			1: {ID: 1, PairingTopic: "topic"},
		},
		cacaos: map[uint64]core.Cacao{
			7: {P: core.CacaoPayload{Iss: testIss}},
		},
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	authService := service.NewAuthService(client, tokenizer.NewJWTTokenizer(key, "test"), time.Minute)

	registry := metrics.NewComponentRegistry("authrelay", "test")
	registry.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "Probe"}).Inc()

	return SetupRouter(client, authService, registry.Handler(), log.Nop()), client
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRequestEndpoint(t *testing.T) {
	router, client := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/request", map[string]any{
		"aud":     "http://localhost:3000/login",
		"domain":  "localhost:3000",
		"chainId": "eip155:1",
		"nonce":   "abc",
		"topic":   "known",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result core.RequestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, uint64(7), result.ID)
	assert.NotEmpty(t, result.URI)
	assert.Equal(t, "known", client.lastOpts.Topic)

	w = doJSON(t, router, http.MethodPost, "/auth/request", map[string]any{
		"aud":    "bad url",
		"domain": "localhost:3000",
		"nonce":  "abc",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPairEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/pair", map[string]any{"uri": "wc:topic@2?relay-protocol=irn&symKey=00"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/pair", map[string]any{"uri": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/auth/pair", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/auth/pending", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Requests []core.PendingRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Requests, 2)
	assert.Equal(t, uint64(1), body.Requests[0].ID)
	assert.Equal(t, uint64(2), body.Requests[1].ID)
}

func TestMessageEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := core.CacaoRequestPayload{
		Domain:  "localhost:3000",
		Aud:     "http://localhost:3000/login",
		Version: "1",
		Nonce:   "abc",
		Iat:     "2024-01-01T00:00:00Z",
	}
	w := doJSON(t, router, http.MethodPost, "/auth/message", map[string]any{"payload": payload, "iss": testIss}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	want, err := core.FormatMessage(payload, testIss)
	require.NoError(t, err)
	assert.Equal(t, want, decode(t, w)["message"])

	w = doJSON(t, router, http.MethodPost, "/auth/message", map[string]any{"payload": payload, "iss": "0xabc"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondEndpoint(t *testing.T) {
	router, client := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/respond", map[string]any{
		"id":        1,
		"iss":       testIss,
		"signature": map[string]any{"t": "eip191", "s": "0x01"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, client.responded, 1)
	assert.Equal(t, core.SignatureEIP191, client.responded[0].Signature.T)

	w = doJSON(t, router, http.MethodPost, "/auth/respond", map[string]any{
		"id":    99,
		"error": map[string]any{"code": 14001, "message": "Can not login"},
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionAndMe(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/session", map[string]any{"id": 7}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(60), body["expires_in"])

	w = doJSON(t, router, http.MethodGet, "/api/me", nil, http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", me["address"])
	assert.Equal(t, "eip155:1", me["chain_id"])

	w = doJSON(t, router, http.MethodPost, "/auth/session", map[string]any{"id": 8}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMeRequiresToken(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/me", nil, http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", decode(t, w)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "authrelay_test_probe_total 1")
}
