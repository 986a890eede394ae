package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	apth "github.com/jwalitptl/triage-api/internal/handler/appointment"
	authh "github.com/jwalitptl/triage-api/internal/handler/auth"
	dashh "github.com/jwalitptl/triage-api/internal/handler/dashboard"
	"github.com/jwalitptl/triage-api/internal/handler/health"
	"github.com/jwalitptl/triage-api/internal/handler/intake"
	queueh "github.com/jwalitptl/triage-api/internal/handler/queue"
	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository/memory"
	"github.com/jwalitptl/triage-api/internal/service/appointment"
	authsvc "github.com/jwalitptl/triage-api/internal/service/auth"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/service/dashboard"
	"github.com/jwalitptl/triage-api/internal/service/queue"
	"github.com/jwalitptl/triage-api/pkg/auth"
	"github.com/jwalitptl/triage-api/pkg/httputil"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/security"
)

const staffPassword = "senha123"

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	httputil.Response
	Data json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	ctx := context.Background()
	m := metrics.NewTest()
	now := func() time.Time { return time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC) }

	repo := memory.NewAppointmentRepository()
	configs := memory.NewShiftConfigRepository(&model.ShiftConfig{
		CurrentShift:            model.ShiftMorning,
		ShiftDate:               "2024-03-10",
		MaxAppointmentsPerShift: 16,
	})
	tracker := capacity.NewTracker(configs, repo, time.UTC, m, capacity.WithClock(now))
	engine := queue.NewEngine(repo, m, time.Minute)

	jwtSvc, err := auth.NewJWTService("0123456789abcdef-test", time.Hour)
	require.NoError(t, err)
	authService := authsvc.NewService(memory.NewStaffRepository(), jwtSvc, security.NewBcryptHasher(bcrypt.MinCost), zerolog.Nop())
	_, err = authService.SeedDefaultStaff(ctx, staffPassword)
	require.NoError(t, err)

	apts := appointment.NewService(appointment.Dependencies{
		Appointments: repo,
		Patients:     memory.NewPatientRepository(),
		Capacity:     tracker,
		Queue:        engine,
		Metrics:      m,
		Logger:       zerolog.Nop(),
	})

	r := NewRouter(middleware.NewAuthMiddleware(authService), Handlers{
		Health:      health.NewHandler(nil, nil),
		Auth:        authh.NewHandler(authService),
		Intake:      intake.NewHandler(apts, tracker),
		Queue:       queueh.NewHandler(engine),
		Appointment: apth.NewHandler(apts),
		Dashboard:   dashh.NewHandler(dashboard.NewService(repo, tracker, 0)),
	}, m, RouterConfig{
		RateLimit:  middleware.RateLimiterConfig{Rate: rate.Limit(100), Burst: 100},
		CORSConfig: middleware.DefaultCORSConfig(nil),
	})
	r.Setup()
	return r.Engine()
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func login(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	w, env := do(t, h, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Username: username, Password: staffPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok model.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	return tok.AccessToken
}

func checkup(card string) model.IntakeRequest {
	return model.IntakeRequest{
		SusCard:     card,
		PatientName: "Maria",
		ServiceType: model.CategoryCheckup,
		Answers: model.Answers{
			"urgent_symptoms":   false,
			"chronic_condition": false,
			"medication_issue":  false,
		},
	}
}

func TestRouter_PublicRoutes(t *testing.T) {
	h := newTestRouter(t)

	w, _ := do(t, h, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, h, http.MethodGet, "/api/v1/intake/categories", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, h, http.MethodGet, "/api/v1/intake/slots", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status model.ShiftStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, 16, status.AvailableSlots)
	assert.True(t, status.CanAdmit)

	w, env = do(t, h, http.MethodPost, "/api/v1/intake", "", checkup("123456789"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt intake.Receipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, model.StatusWaitingTriage, receipt.Appointment.Status)
	assert.Equal(t, 1, receipt.Appointment.QueuePosition)
	assert.NotEmpty(t, receipt.PriorityLabel)

	w, _ = do(t, h, http.MethodGet, "/api/v1/queues/display", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=5", w.Header().Get("Cache-Control"))
}

func TestRouter_ScreensAreGzipped(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/api/v1/queues/display", "/api/v1/intake/categories"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("Accept-Encoding", "gzip")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")

			zr, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			raw, err := io.ReadAll(zr)
			require.NoError(t, err)
			var env envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			assert.Equal(t, "success", env.Status)
			assert.NotEmpty(t, env.Data)
		})
	}

	// Plain clients and health probes get identity encoding.
	w, env := do(t, h, http.MethodGet, "/api/v1/queues/display", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "success", env.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestRouter_CurrentWhenFree(t *testing.T) {
	h := newTestRouter(t)
	nurseToken := login(t, h, "enfermeiro")

	w, _ := do(t, h, http.MethodGet, "/api/v1/triage/current", nurseToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"]
	require.True(t, ok, w.Body.String())
	assert.Equal(t, "null", string(data))
}

func TestRouter_IntakeErrors(t *testing.T) {
	h := newTestRouter(t)

	w, env := do(t, h, http.MethodPost, "/api/v1/intake", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", env.Kind)

	bad := checkup("12ab")
	w, env = do(t, h, http.MethodPost, "/api/v1/intake", "", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation", env.Kind)
}

func TestRouter_Authorization(t *testing.T) {
	h := newTestRouter(t)

	w, env := do(t, h, http.MethodGet, "/api/v1/queues/triage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", env.Kind)

	w, _ = do(t, h, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Username: "enfermeiro", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	nurseToken := login(t, h, "enfermeiro")

	w, env = do(t, h, http.MethodGet, "/api/v1/auth/me", nurseToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me model.Actor
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, model.RoleNurse, me.Role)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w, env = do(t, h, http.MethodGet, "/api/v1/dashboard/stats", nurseToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Kind)

	w, _ = do(t, h, http.MethodPost, "/api/v1/consultation/next", nurseToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_TriageFlow(t *testing.T) {
	h := newTestRouter(t)
	nurseToken := login(t, h, "enfermeiro")
	doctorToken := login(t, h, "medico")
	managerToken := login(t, h, "gestor")

	w, env := do(t, h, http.MethodPost, "/api/v1/triage/next", nurseToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Kind)

	w, _ = do(t, h, http.MethodPost, "/api/v1/intake", "", checkup("123456789"))
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(t, h, http.MethodPost, "/api/v1/intake", "", checkup("987654321"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = do(t, h, http.MethodPost, "/api/v1/triage/next", nurseToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var called model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &called))
	assert.Equal(t, model.StatusInTriage, called.Status)
	assert.Equal(t, "123456789", called.SusCard)

	w, env = do(t, h, http.MethodPost, "/api/v1/triage/next", nurseToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "precondition", env.Kind)

	w, env = do(t, h, http.MethodGet, "/api/v1/triage/current", nurseToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var current model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, called.ID, current.ID)

	path := "/api/v1/appointments/" + called.ID.String()

	w, env = do(t, h, http.MethodPost, path+"/triage/complete", nurseToken, model.TriageInput{
		BloodPressure: "120/80",
		Temperature:   "36.5",
		HeartRate:     "72",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Fields, "consultation_room")

	w, env = do(t, h, http.MethodPost, path+"/triage/complete", nurseToken, model.TriageInput{
		BloodPressure:    "120/80",
		Temperature:      "36.5",
		HeartRate:        "72",
		ConsultationRoom: "Consultório 2",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var triaged model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &triaged))
	assert.Equal(t, model.StatusWaitingDoctor, triaged.Status)

	w, _ = do(t, h, http.MethodGet, "/api/v1/queues/doctor", doctorToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, h, http.MethodPost, path+"/consultation/start", doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = do(t, h, http.MethodPost, path+"/consultation/abort", managerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = do(t, h, http.MethodGet, "/api/v1/appointments?status=waiting_doctor,waiting_triage", managerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	w, env = do(t, h, http.MethodGet, "/api/v1/appointments?shift=night", managerToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Fields, "shift")

	w, _ = do(t, h, http.MethodGet, "/api/v1/appointments/not-a-uuid", nurseToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, h, http.MethodGet, "/api/v1/dashboard/stats", managerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, h, http.MethodGet, "/api/v1/dashboard/stale", managerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
