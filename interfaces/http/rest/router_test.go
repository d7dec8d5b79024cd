package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relmap/application/notify"
	"relmap/application/ports"
	"relmap/application/session"
	"relmap/application/transfer"
	"relmap/domain/core/valueobjects"
	"relmap/infrastructure/persistence/memory"
	"relmap/infrastructure/tabular/excel"
	"relmap/pkg/auth"
	pkgerrors "relmap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "valid-token"

type staticIdentity struct{}

func (staticIdentity) Authenticate(ctx context.Context, token string) (*ports.Principal, error) {
	if token != testToken {
		return nil, pkgerrors.NewAuthRequiredError("invalid token")
	}
	return &ports.Principal{UserID: "user123", Email: "marie@example.com"}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type testServer struct {
	handler  http.Handler
	inbox    *notify.Inbox
	sessions *session.Manager
}

func newTestServer(t *testing.T, perMinute int) *testServer {
	t.Helper()
	logger := zap.NewNop()
	inbox := notify.NewInbox(10)
	tables := memory.NewTableService()

	manager := session.NewManager(session.Dependencies{
		Tables:   tables,
		Notifier: inbox,
		Transfer: transfer.NewService(excel.NewCodec(), valueobjects.NewUUIDGenerator(), nil, logger),
		IDs:      valueobjects.NewUUIDGenerator(),
		Logger:   logger,
	}, time.Minute, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Stop(ctx)
	})

	router := NewRouter(
		manager,
		inbox,
		tables,
		staticIdentity{},
		auth.NewRateLimiter(perMinute),
		nil,
		nil,
		pkgerrors.NewErrorHandler(logger, false),
		Options{RateLimitPerMinute: perMinute},
		logger,
	)
	return &testServer{handler: router.Setup(), inbox: inbox, sessions: manager}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type node struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Proximity  string   `json:"proximity"`
	Categories []string `json:"categories"`
}

type edge struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Proximity string `json:"proximity"`
}

type view struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
	Stats struct {
		TotalPersons   int `json:"totalPersons"`
		VisiblePersons int `json:"visiblePersons"`
	} `json:"stats"`
}

func (s *testServer) createPerson(t *testing.T, first, last, proximity string, categories ...string) node {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v2/persons", map[string]interface{}{
		"firstName":  first,
		"lastName":   last,
		"proximity":  proximity,
		"categories": categories,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var n node
	decodeData(t, rec, &n)
	return n
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, 600)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "v2", rec.Header().Get("X-API-Version"))
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, 600)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing token", header: ""},
		{name: "invalid token", header: "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v2/graph", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, string(pkgerrors.ErrorTypeAuthRequired), decodeError(t, rec).Type)
		})
	}
}

func TestLegacyRedirect(t *testing.T) {
	s := newTestServer(t, 600)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/graph", nil))

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/api/v2/graph", rec.Header().Get("Location"))
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
}

func TestPersonAndRelationLifecycle(t *testing.T) {
	s := newTestServer(t, 600)

	marie := s.createPerson(t, "Marie", "Curie", "fort", "Advisor")
	pierre := s.createPerson(t, "Pierre", "Curie", "")
	assert.Equal(t, "Marie Curie", marie.Label)
	assert.Equal(t, []string{"Advisor"}, marie.Categories)
	assert.Equal(t, "moyen", pierre.Proximity)

	rec := s.do(t, http.MethodPost, "/api/v2/relations", map[string]string{
		"sourceId": marie.ID, "targetId": pierre.ID, "proximity": "faible",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rel edge
	decodeData(t, rec, &rel)
	assert.Equal(t, marie.ID, rel.Source)

	rec = s.do(t, http.MethodPatch, "/api/v2/relations/"+rel.ID, map[string]string{"proximity": "fort"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &rel)
	assert.Equal(t, "fort", rel.Proximity)

	rec = s.do(t, http.MethodPut, "/api/v2/persons/"+pierre.ID, map[string]interface{}{
		"firstName": "Pierre", "lastName": "Curie", "company": "Sorbonne", "proximity": "fort",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/v2/persons/"+pierre.ID+"/position", map[string]float64{"x": 10, "y": -4.5})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v2/graph?proximity=fort&search=curie", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v view
	decodeData(t, rec, &v)
	assert.Len(t, v.Nodes, 2)
	assert.Len(t, v.Edges, 1)

	rec = s.do(t, http.MethodGet, "/api/v2/graph?category=Investisseur", nil)
	decodeData(t, rec, &v)
	assert.Empty(t, v.Nodes)
	assert.Equal(t, 2, v.Stats.TotalPersons)

	rec = s.do(t, http.MethodDelete, "/api/v2/persons/"+marie.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted struct {
		RemovedRelationIDs []string `json:"removedRelationIds"`
	}
	decodeData(t, rec, &deleted)
	assert.Equal(t, []string{rel.ID}, deleted.RemovedRelationIDs)

	rec = s.do(t, http.MethodGet, "/api/v2/relations/"+rel.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v2/persons/"+marie.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestErrors(t *testing.T) {
	s := newTestServer(t, 600)
	marie := s.createPerson(t, "Marie", "Curie", "fort")

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		status  int
		errType pkgerrors.ErrorType
	}{
		{
			name: "missing last name", method: http.MethodPost, path: "/api/v2/persons",
			body: map[string]string{"firstName": "Jean"}, status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation,
		},
		{
			name: "blank names", method: http.MethodPost, path: "/api/v2/persons",
			body: map[string]string{"firstName": "  ", "lastName": " "}, status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation,
		},
		{
			name: "unknown category", method: http.MethodPost, path: "/api/v2/persons",
			body:   map[string]interface{}{"firstName": "Jean", "lastName": "Moulin", "categories": []string{"Client"}},
			status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation,
		},
		{
			name: "unknown field", method: http.MethodPost, path: "/api/v2/persons",
			body: map[string]string{"firstName": "Jean", "lastName": "Moulin", "age": "40"}, status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation,
		},
		{
			name: "bad proximity", method: http.MethodPost, path: "/api/v2/relations",
			body: map[string]string{"sourceId": marie.ID, "targetId": marie.ID, "proximity": "proche"}, status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation,
		},
		{
			name: "unknown endpoint", method: http.MethodPost, path: "/api/v2/relations",
			body: map[string]string{"sourceId": marie.ID, "targetId": "ghost", "proximity": "fort"}, status: http.StatusUnprocessableEntity, errType: pkgerrors.ErrorTypeReferential,
		},
		{
			name: "unknown person", method: http.MethodGet, path: "/api/v2/persons/ghost",
			status: http.StatusNotFound, errType: pkgerrors.ErrorTypeNotFound,
		},
		{
			name: "bad filter", method: http.MethodGet, path: "/api/v2/graph?proximity=close",
			status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeValidation,
		},
		{
			name: "empty import", method: http.MethodPost, path: "/api/v2/import",
			status: http.StatusBadRequest, errType: pkgerrors.ErrorTypeDocumentFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, string(tt.errType), decodeError(t, rec).Type)
		})
	}
}

type interactionState struct {
	State   string `json:"state"`
	Pending *struct {
		SourceID string `json:"sourceId"`
	} `json:"pending"`
}

// readState decodes into a fresh value so an omitted pending slot reads as nil
func readState(t *testing.T, rec *httptest.ResponseRecorder) interactionState {
	t.Helper()
	var state interactionState
	decodeData(t, rec, &state)
	return state
}

func TestInteractionFlow(t *testing.T) {
	s := newTestServer(t, 600)
	a := s.createPerson(t, "Ada", "Lovelace", "fort")
	b := s.createPerson(t, "Charles", "Babbage", "moyen")

	var state interactionState

	rec := s.do(t, http.MethodPost, "/api/v2/interaction/proximity", map[string]string{"proximity": "fort"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v2/interaction/connect", map[string]string{"sourceId": a.ID, "targetId": b.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state = readState(t, rec)
	assert.Equal(t, "awaiting_connection_proximity", state.State)
	require.NotNil(t, state.Pending)
	assert.Equal(t, a.ID, state.Pending.SourceID)

	rec = s.do(t, http.MethodPost, "/api/v2/interaction/proximity", map[string]string{"proximity": "proche"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v2/interaction", nil)
	state = readState(t, rec)
	assert.Equal(t, "awaiting_connection_proximity", state.State)

	rec = s.do(t, http.MethodPost, "/api/v2/interaction/proximity", map[string]string{"proximity": "faible"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rel edge
	decodeData(t, rec, &rel)
	assert.Equal(t, b.ID, rel.Target)

	rec = s.do(t, http.MethodGet, "/api/v2/interaction", nil)
	state = readState(t, rec)
	assert.Equal(t, "idle", state.State)
	assert.Nil(t, state.Pending)

	rec = s.do(t, http.MethodPost, "/api/v2/interaction/edges/"+rel.ID+"/click", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v2/interaction/nodes/"+a.ID+"/click", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v2/interaction/nodes/"+a.ID+"/drag", map[string]float64{"x": 1, "y": 2})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v2/interaction/nodes/ghost/drag", map[string]float64{"x": 1, "y": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.do(t, http.MethodPost, "/api/v2/interaction/connect", map[string]string{"sourceId": a.ID, "targetId": b.ID})
	rec = s.do(t, http.MethodPost, "/api/v2/interaction/cancel", nil)
	state = readState(t, rec)
	assert.Equal(t, "idle", state.State)
}

func TestExportResetImport(t *testing.T) {
	s := newTestServer(t, 600)
	a := s.createPerson(t, "Ada", "Lovelace", "fort", "Partenaire")
	b := s.createPerson(t, "Charles", "Babbage", "moyen")
	rec := s.do(t, http.MethodPost, "/api/v2/relations", map[string]string{"sourceId": a.ID, "targetId": b.ID, "proximity": "fort"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v2/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	document := rec.Body.Bytes()
	require.NotEmpty(t, document)

	rec = s.do(t, http.MethodPost, "/api/v2/reset", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	var v view
	decodeData(t, s.do(t, http.MethodGet, "/api/v2/graph", nil), &v)
	assert.Empty(t, v.Nodes)

	// multipart upload
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "map.xlsx")
	require.NoError(t, err)
	_, err = part.Write(document)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/import", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report transfer.ImportReport
	decodeData(t, rec, &report)
	assert.Equal(t, 2, report.Persons)
	assert.Equal(t, 1, report.Relations)
	assert.Empty(t, report.DroppedRelations)

	decodeData(t, s.do(t, http.MethodGet, "/api/v2/graph", nil), &v)
	assert.Len(t, v.Nodes, 2)
	assert.Len(t, v.Edges, 1)

	// raw body
	req = httptest.NewRequest(http.MethodPost, "/api/v2/import", bytes.NewReader([]byte("not a workbook")))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/octet-stream")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	decodeData(t, s.do(t, http.MethodGet, "/api/v2/graph", nil), &v)
	assert.Len(t, v.Nodes, 2, "a rejected document leaves the map untouched")
}

func TestReloadReturnsStoredMap(t *testing.T) {
	s := newTestServer(t, 600)
	s.createPerson(t, "Ada", "Lovelace", "fort")

	sess, err := s.sessions.Get(context.Background(), "user123")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	rec := s.do(t, http.MethodPost, "/api/v2/graph/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v view
	decodeData(t, rec, &v)
	assert.Len(t, v.Nodes, 1)
}

func TestNotificationsAreDrained(t *testing.T) {
	s := newTestServer(t, 600)
	require.NoError(t, s.inbox.Notify(context.Background(), ports.Notification{
		ID: "n1", UserID: "user123", Level: ports.LevelError, Operation: "add_person", Message: "could not save person",
	}))

	var list []ports.Notification
	decodeData(t, s.do(t, http.MethodGet, "/api/v2/notifications", nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "could not save person", list[0].Message)

	decodeData(t, s.do(t, http.MethodGet, "/api/v2/notifications", nil), &list)
	assert.Empty(t, list)
}

func TestRateLimit(t *testing.T) {
	// 10 per minute gives a burst of one request
	s := newTestServer(t, 10)

	first := s.do(t, http.MethodGet, "/api/v2/interaction", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := s.do(t, http.MethodGet, "/api/v2/interaction", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, string(pkgerrors.ErrorTypeRateLimit), decodeError(t, second).Type)
}
