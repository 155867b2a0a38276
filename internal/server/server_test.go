package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudsynth/internal/artifacts"
	"fraudsynth/internal/auth"
	"fraudsynth/internal/config"
	"fraudsynth/internal/features"
	"fraudsynth/internal/inference"
	"fraudsynth/internal/store"
	"fraudsynth/internal/tables"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeModel scores every row with a fixed probability.
type fakeModel struct{ p float64 }

func (m fakeModel) Predict(X [][]float64) []int { return make([]int, len(X)) }
func (m fakeModel) Name() string                { return "fake" }
func (m fakeModel) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = m.p
	}
	return out
}

// fakeVerifier maps tokens to claims without any cryptography.
type fakeVerifier struct {
	claims map[string]*auth.Claims
}

func (v *fakeVerifier) Verify(_ context.Context, idToken string) (*auth.Claims, error) {
	if c, ok := v.claims[idToken]; ok {
		return c, nil
	}
	return nil, errors.New("signature check failed")
}

// memStore is an in-memory Store with upsert semantics.
type memStore struct {
	users map[string]*store.User
	logs  []store.PredictionLog
}

func newMemStore() *memStore { return &memStore{users: map[string]*store.User{}} }

func (s *memStore) FindUser(_ context.Context, id string) (*store.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) SignupUser(_ context.Context, u store.User) (*store.User, error) {
	if existing, ok := s.users[u.ID]; ok {
		existing.LastLoginAt = u.LastLoginAt
		cp := *existing
		return &cp, nil
	}
	cp := u
	s.users[u.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.LastLoginAt = at
	return nil
}

func (s *memStore) LogPrediction(_ context.Context, p store.PredictionLog) error {
	s.logs = append(s.logs, p)
	return nil
}

// newTestServer wires a server over a temp artifact dir, an identity scaler
// and a fixed-probability model.
func newTestServer(t *testing.T, prob float64, st store.Store, v auth.Verifier) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	n := len(features.FeatureOrder)
	scaler := &artifacts.StandardScaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range scaler.Scale {
		scaler.Scale[i] = 1
	}
	medians := map[string]float64{}
	for _, name := range features.FeatureOrder {
		medians[name] = 0
	}
	bundle := &artifacts.Bundle{Dir: dir, Scaler: scaler, Medians: medians}

	engine := inference.NewEngine(bundle, fakeModel{p: prob}, zap.NewNop())
	cfg := &config.Config{Port: "0", AllowedOrigins: []string{"http://localhost:3000"}, ArtifactDir: dir}
	return New(cfg, zap.NewNop(), engine, st, v), dir
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if decodeBody(t, w)["message"] == "" {
		t.Fatal("health message missing")
	}
}

func TestPredict(t *testing.T) {
	st := newMemStore()
	s, _ := newTestServer(t, 0.9, st, &fakeVerifier{})

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/predict", gin.H{
		"input":   gin.H{"Time": 0, "Amount": 120.5},
		"user_id": "user-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["probability"] != 0.9 {
		t.Fatalf("probability %v", body["probability"])
	}
	if body["decision"] != float64(1) {
		t.Fatalf("decision %v", body["decision"])
	}
	filled, ok := body["filled"].(map[string]any)
	if !ok || len(filled) != len(features.FeatureOrder) {
		t.Fatalf("filled mapping wrong: %v", body["filled"])
	}
	if len(st.logs) != 1 || st.logs[0].UserID != "user-1" {
		t.Fatalf("prediction log %v", st.logs)
	}
}

func TestPredictValidation(t *testing.T) {
	s, _ := newTestServer(t, 0.9, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/api/predict", gin.H{"threshold": 0.5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400 without input", w.Code)
	}
}

func TestPredictThresholdOverride(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/api/predict", gin.H{
		"input":     gin.H{"Time": 0},
		"threshold": 0.6,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if decodeBody(t, w)["decision"] != float64(0) {
		t.Fatal("request threshold should override the default")
	}
}

func TestPredictCSV(t *testing.T) {
	s, _ := newTestServer(t, 0.8, newMemStore(), &fakeVerifier{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	part.Write([]byte("Time,Amount\n0,10\n1,20\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/predict-csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows %v", body["rows"])
	}
	first := rows[0].(map[string]any)
	if first["fraud_probability"] != 0.8 || first["model_decision"] != float64(1) {
		t.Fatalf("scored row %v", first)
	}
	if body["threshold"] != inference.DefaultThreshold {
		t.Fatalf("threshold %v", body["threshold"])
	}
}

func TestPredictCSVRequiresFile(t *testing.T) {
	s, _ := newTestServer(t, 0.8, newMemStore(), &fakeVerifier{})
	req := httptest.NewRequest(http.MethodPost, "/api/predict-csv", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestTemplate(t *testing.T) {
	s, dir := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	medians := tables.FromRows([][]string{
		{"feature", "median"},
		{"Time", "7"},
		{"Amount", "42"},
	})
	if err := tables.WriteCSV(filepath.Join(dir, "medians.csv"), medians); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/template", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("template has %d lines, want header + example", len(lines))
	}
	if lines[0] != strings.Join(features.FeatureOrder, ",") {
		t.Fatalf("header %q", lines[0])
	}
	cells := strings.Split(lines[1], ",")
	if cells[0] != "7" || cells[len(cells)-1] != "42" {
		t.Fatalf("example row %v should carry the medians", cells)
	}

	// example=0 gives the bare header
	req = httptest.NewRequest(http.MethodGet, "/api/template?example=0", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if strings.Contains(strings.TrimSpace(w.Body.String()), "\n") {
		t.Fatal("example=0 should return the header only")
	}
}

func TestMetricsEmptyState(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decodeBody(t, w)
	for _, key := range []string{"quality", "threshold", "samples"} {
		arr, ok := body[key].([]any)
		if !ok || len(arr) != 0 {
			t.Fatalf("%s should be an empty array, got %v", key, body[key])
		}
	}
}

func TestMetricsServesArtifacts(t *testing.T) {
	s, dir := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	sweep := tables.FromRows([][]string{
		{"threshold", "precision", "recall", "f1"},
		{"0.5", "0.9", "0.8", "0.85"},
	})
	if err := tables.WriteCSV(filepath.Join(dir, "threshold_sweep.csv"), sweep); err != nil {
		t.Fatalf("seed: %v", err)
	}
	scored := tables.FromRows([][]string{
		{"Time", "Amount", "true_label", "fraud_probability", "model_decision"},
		{"0", "10", "1", "0.9", "1"},
	})
	if err := tables.WriteCSV(filepath.Join(dir, "test_scored.csv"), scored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := decodeBody(t, doJSON(t, s.Handler(), http.MethodGet, "/api/metrics", nil))
	if len(body["threshold"].([]any)) != 1 {
		t.Fatalf("threshold %v", body["threshold"])
	}
	samples := body["samples"].([]any)
	if len(samples) != 1 {
		t.Fatalf("samples %v", samples)
	}
	row := samples[0].(map[string]any)
	if _, ok := row["Time"]; ok {
		t.Fatal("samples should project to the dashboard columns only")
	}
	if row["Amount"] != float64(10) {
		t.Fatalf("sample row %v", row)
	}
}

func TestTopRisksMissingArtifact(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/top-risks", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestTopRisksSortedAndLimited(t *testing.T) {
	s, dir := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	risks := tables.FromRows([][]string{
		{"Time", "Amount", "fraud_probability"},
		{"0", "10", "0.2"},
		{"1", "20", "0.9"},
		{"2", "30", "0.5"},
	})
	if err := tables.WriteCSV(filepath.Join(dir, "top_risks.csv"), risks); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := decodeBody(t, doJSON(t, s.Handler(), http.MethodGet, "/api/top-risks?limit=2", nil))
	rows := body["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("limit ignored: %v", rows)
	}
	first := rows[0].(map[string]any)
	if first["fraud_probability"] != 0.9 {
		t.Fatalf("rows not sorted by probability: %v", rows)
	}
}

func TestCurvesEmptyState(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/curves", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["roc"] != nil || body["pr"] != nil {
		t.Fatalf("empty state should serve nulls, got roc=%v pr=%v", body["roc"], body["pr"])
	}
	fi, ok := body["feature_importance"].([]any)
	if !ok || len(fi) != 0 {
		t.Fatalf("feature_importance should be an empty array, got %v", body["feature_importance"])
	}
}

func TestCurvesFallsBackToScoredTable(t *testing.T) {
	s, dir := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	scored := tables.FromRows([][]string{
		{"true_label", "fraud_probability"},
		{"1", "0.9"},
		{"1", "0.8"},
		{"0", "0.2"},
		{"0", "0.1"},
	})
	if err := tables.WriteCSV(filepath.Join(dir, "test_scored.csv"), scored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := decodeBody(t, doJSON(t, s.Handler(), http.MethodGet, "/api/curves", nil))
	roc, ok := body["roc"].(map[string]any)
	if !ok {
		t.Fatalf("roc missing: %v", body)
	}
	if roc["auc"] != float64(1) {
		t.Fatalf("auc %v, want 1 for separated scores", roc["auc"])
	}
	if _, ok := body["pr"].(map[string]any); !ok {
		t.Fatalf("pr missing: %v", body)
	}
}

func TestAuthVerifySignupIdempotent(t *testing.T) {
	st := newMemStore()
	v := &fakeVerifier{claims: map[string]*auth.Claims{
		"tok-1": {Subject: "sub-1", Email: "a@example.com", Name: "A"},
	}}
	s, _ := newTestServer(t, 0.5, st, v)

	w := doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "tok-1", "mode": "signup"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	created := st.users["sub-1"].CreatedAt

	// second signup keeps the record, only advances last_login
	w = doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "tok-1", "mode": "signup"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if len(st.users) != 1 {
		t.Fatalf("%d users after repeat signup", len(st.users))
	}
	if !st.users["sub-1"].CreatedAt.Equal(created) {
		t.Fatal("created_at must not move on repeat signup")
	}
	user := decodeBody(t, w)["user"].(map[string]any)
	if user["id"] != "sub-1" || user["email"] != "a@example.com" {
		t.Fatalf("user payload %v", user)
	}
}

func TestAuthVerifyLoginRequiresAccount(t *testing.T) {
	v := &fakeVerifier{claims: map[string]*auth.Claims{
		"tok-1": {Subject: "sub-1", Email: "a@example.com"},
	}}
	st := newMemStore()
	s, _ := newTestServer(t, 0.5, st, v)

	w := doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "tok-1", "mode": "login"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409 before signup", w.Code)
	}

	// after signup, login succeeds and advances last_login
	doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "tok-1", "mode": "signup"})
	before := st.users["sub-1"].LastLoginAt
	time.Sleep(5 * time.Millisecond)
	w = doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "tok-1", "mode": "login"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !st.users["sub-1"].LastLoginAt.After(before) {
		t.Fatal("login should advance last_login")
	}
}

func TestAuthVerifyRejectsBadToken(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestAuthVerifyRejectsMissingSubject(t *testing.T) {
	v := &fakeVerifier{claims: map[string]*auth.Claims{
		"tok-empty": {Email: "a@example.com"},
	}}
	s, _ := newTestServer(t, 0.5, newMemStore(), v)
	w := doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"id_token": "tok-empty"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestAuthVerifyRequiresToken(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})
	w := doJSON(t, s.Handler(), http.MethodPost, "/auth/verify", gin.H{"mode": "login"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400 without id_token", w.Code)
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, 0.5, newMemStore(), &fakeVerifier{})

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("allow-origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	// unknown origins get no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin must not be allowed")
	}
}
