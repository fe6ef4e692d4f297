package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meal-voucher-backend/internal/metrics"
	"meal-voucher-backend/internal/models"
	"meal-voucher-backend/internal/qr"
	"meal-voucher-backend/internal/services"
	"meal-voucher-backend/internal/testing/memstore"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLimit = 2

type testServer struct {
	router  http.Handler
	hub     *services.MealHub
	archive *memstore.Archive
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memstore.New()
	archive := memstore.NewArchive()
	hub := services.NewMealHub()
	m := metrics.New()

	userService := services.NewUserService(store.Users())
	ticketService := services.NewTicketService(store.Tickets())
	codeService := services.NewCodeService(ticketService, qr.NewRenderer(qr.DefaultModuleSize))
	mealService := services.NewMealService(store.Meals(), ticketService, archive, services.Notifiers{hub, m}, testLimit)

	router := NewRouter(Handlers{
		Users:    NewUserHandler(userService),
		Tickets:  NewTicketHandler(ticketService, mealService),
		Codes:    NewCodeHandler(codeService),
		Meals:    NewMealHandler(mealService),
		MealFeed: NewMealFeedHandler(hub),
		Metrics:  m,
	}, 1<<20)

	return &testServer{router: router, hub: hub, archive: archive}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return s.do(t, method, path, "application/json", &buf)
}

func (s *testServer) createUser(t *testing.T, name string) models.User {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/api/v1/users", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user
}

func (s *testServer) issueTicket(t *testing.T, userID string) models.Ticket {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/api/v1/tickets", map[string]string{"user_id": userID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	return ticket
}

func (s *testServer) renderCode(t *testing.T, ticketID string) []byte {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/api/v1/qr", map[string]string{"ticket_id": ticketID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	return rec.Body.Bytes()
}

func (s *testServer) uploadScan(t *testing.T, img []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	_, err = part.Write(img)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return s.do(t, http.MethodPost, "/api/v1/meals", mw.FormDataContentType(), &buf)
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

// ============================================================================
// Users
// ============================================================================

func TestCreateUser(t *testing.T) {
	s := newTestServer(t)

	user := s.createUser(t, "A")
	assert.Equal(t, "A", user.Name)
	assert.NotEmpty(t, user.ID)
}

func TestCreateUser_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.doJSON(t, http.MethodPost, "/api/v1/users", map[string]string{"name": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/users", "application/json", strings.NewReader("{"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid request body", errorMessage(t, rec))
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "A")

	rec := s.doJSON(t, http.MethodDelete, "/api/v1/users", map[string]string{"id": user.ID})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.doJSON(t, http.MethodDelete, "/api/v1/users/"+user.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodDelete, "/api/v1/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Tickets
// ============================================================================

func TestIssueTicket(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser(t, "A")

	ticket := s.issueTicket(t, user.ID)
	assert.Equal(t, user.ID, ticket.UserID)
	assert.WithinDuration(t, time.Now(), ticket.Created, time.Minute)

	rec := s.doJSON(t, http.MethodPost, "/api/v1/tickets", map[string]string{"user_id": user.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, services.ErrTicketExists.Error(), errorMessage(t, rec))

	rec = s.doJSON(t, http.MethodPost, "/api/v1/tickets", map[string]string{"user_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/tickets", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListGetRevokeTickets(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)
	s.issueTicket(t, s.createUser(t, "B").ID)

	rec := s.doJSON(t, http.MethodGet, "/api/v1/tickets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets []models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	assert.Len(t, tickets, 2)

	rec = s.doJSON(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.doJSON(t, http.MethodDelete, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.doJSON(t, http.MethodDelete, "/api/v1/tickets", map[string]string{"id": ticket.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTickets_EmptyIsArray(t *testing.T) {
	s := newTestServer(t)

	rec := s.doJSON(t, http.MethodGet, "/api/v1/tickets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

// ============================================================================
// QR codes
// ============================================================================

func TestRenderCode(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)

	img := s.renderCode(t, ticket.ID)
	text, err := qr.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, text)
}

func TestRenderCode_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.doJSON(t, http.MethodPost, "/api/v1/qr", map[string]string{"ticket_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/qr", map[string]string{"ticket_id": "bogus"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/qr", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ============================================================================
// Meals
// ============================================================================

func TestRedeemMeal_ScanUpToLimit(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)
	img := s.renderCode(t, ticket.ID)

	for i := 1; i <= testLimit; i++ {
		rec := s.uploadScan(t, img)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var redemption models.Redemption
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redemption))
		assert.Equal(t, ticket.ID, redemption.TicketID)
		assert.Equal(t, i, redemption.Used)
		assert.Equal(t, testLimit-i, redemption.Remaining)
	}

	rec := s.uploadScan(t, img)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, testLimit, s.archive.Len())

	rec = s.doJSON(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID+"/meals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var meals []models.Meal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meals))
	assert.Len(t, meals, testLimit)
}

func TestRedeemMeal_RawImageBody(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)

	rec := s.do(t, http.MethodPost, "/api/v1/meals", "image/png", bytes.NewReader(s.renderCode(t, ticket.ID)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedeemMeal_ManualEntry(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)

	rec := s.doJSON(t, http.MethodPost, "/api/v1/meals", map[string]string{"ticket_id": ticket.ID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/meals", map[string]string{"ticket_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/meals", map[string]string{"ticket_id": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRedeemMeal_Undecodable(t *testing.T) {
	s := newTestServer(t)

	blank := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, blank))

	rec := s.uploadScan(t, buf.Bytes())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no readable QR code in image", errorMessage(t, rec))

	rec = s.uploadScan(t, []byte("not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRedeemMeal_NotATicket(t *testing.T) {
	s := newTestServer(t)

	img, err := qr.NewRenderer(qr.DefaultModuleSize).Render("hello")
	require.NoError(t, err)

	rec := s.uploadScan(t, img)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, services.ErrInvalidTicketID.Error(), errorMessage(t, rec))
}

func TestRedeemMeal_UnknownTicket(t *testing.T) {
	s := newTestServer(t)

	img, err := qr.NewRenderer(qr.DefaultModuleSize).Render(uuid.NewString())
	require.NoError(t, err)

	rec := s.uploadScan(t, img)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedeemMeal_MissingFile(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file"))
	require.NoError(t, mw.Close())

	rec := s.do(t, http.MethodPost, "/api/v1/meals", mw.FormDataContentType(), &buf)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/meals", "text/plain", strings.NewReader("hi"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestDeleteMealAndScan(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)

	rec := s.uploadScan(t, s.renderCode(t, ticket.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var redemption models.Redemption
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redemption))
	mealPath := "/api/v1/meals/" + jsonNumber(redemption.ID)

	rec = s.doJSON(t, http.MethodGet, mealPath+"/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var link services.ScanLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	assert.True(t, strings.HasPrefix(link.URL, "memory://scans/"+ticket.ID+"/"))

	rec = s.doJSON(t, http.MethodDelete, "/api/v1/meals", map[string]int64{"id": redemption.ID})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.doJSON(t, http.MethodDelete, mealPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodDelete, "/api/v1/meals/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodGet, mealPath+"/scan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// ============================================================================
// Meal feed
// ============================================================================

func TestMealFeed(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/meals"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	ticket := s.issueTicket(t, s.createUser(t, "A").ID)
	rec := s.doJSON(t, http.MethodPost, "/api/v1/meals", map[string]string{"ticket_id": ticket.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event services.MealEvent
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, services.EventMealRedeemed, event.Type)
	assert.Equal(t, ticket.ID, event.TicketID)
	require.NotNil(t, event.Remaining)
	assert.Equal(t, testLimit-1, *event.Remaining)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/meals", map[string]string{"ticket_id": uuid.NewString()})
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventMealRejected, event.Type)
	assert.Equal(t, services.ErrTicketNotFound.Error(), event.Message)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	ticket := s.issueTicket(t, s.createUser(t, "A").ID)

	for i := 0; i <= testLimit; i++ {
		s.doJSON(t, http.MethodPost, "/api/v1/meals", map[string]string{"ticket_id": ticket.ID})
	}

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "meal_voucher_meals_redeemed_total 2")
	assert.Contains(t, body, `meal_voucher_meals_rejected_total{reason="`+services.ErrMealLimitReached.Error()+`"} 1`)
	assert.Contains(t, body, `route="/api/v1/meals"`)
}

func TestBodySizeLimits(t *testing.T) {
	s := newTestServer(t)

	padding := strings.Repeat("a", MaxJSONBodyBytes+1)
	rec := s.do(t, http.MethodPost, "/api/v1/users", "application/json",
		strings.NewReader(`{"name":"`+padding+`"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/tickets", "application/json",
		strings.NewReader(`{"id":"`+padding+`"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// scans only answer to the upload limit
	rec = s.do(t, http.MethodPost, "/api/v1/meals", "image/png",
		bytes.NewReader(make([]byte, 2*MaxJSONBodyBytes)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/meals", "image/png",
		bytes.NewReader(make([]byte, 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
