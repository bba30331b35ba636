package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fishm995/greenhouse-project/automation"
	"github.com/fishm995/greenhouse-project/config"
	"github.com/fishm995/greenhouse-project/hardware"
	"github.com/fishm995/greenhouse-project/telemetry"
	"github.com/fishm995/greenhouse-project/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testSecret = []byte("controllers-test-secret")

type fakeStream struct {
	mu     sync.Mutex
	starts int
	stops  int
	ready  bool
}

func (s *fakeStream) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.ready = true
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.ready = false
	return nil
}

func (s *fakeStream) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeStream) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	stream *fakeStream
	hub    *Hub
}

// setupTestEnv builds a router over a seeded in-memory database.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := config.Connect("sqlite://:memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, MigrateModels(db))
	require.NoError(t, config.Seed(db))

	log := zap.NewNop().Sugar()
	stream := &fakeStream{}
	h := NewHub(stream, time.Minute, nil, log)
	r := NewRouter(Options{
		SecretKey: testSecret,
		TokenTTL:  time.Hour,
		Location:  time.UTC,
		Switcher: &automation.Switcher{
			DB:     db,
			Driver: hardware.NewGPIODriver(false, log),
			Sink:   telemetry.Nop{},
		},
		Hub: h,
	})
	return &testEnv{router: r, db: db, stream: stream, hub: h}
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(testSecret, role, role, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as role (no token when role is empty) and returns the
// recorder.
func (e *testEnv) do(t *testing.T, method, url, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, role))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
