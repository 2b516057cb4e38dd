package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/app/handlers"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/food-orders/internal/service"
	"github.com/stretchr/testify/assert"
)

// fakeAuthService реализует service.AuthServiceInterface для тестов хендлеров.
type fakeAuthService struct {
	token string
	err   error
}

var _ service.AuthServiceInterface = (*fakeAuthService)(nil)

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, error) {
	return f.token, f.err
}

func (f *fakeAuthService) RestaurantLogin(ctx context.Context, email, password string) (string, error) {
	return f.token, f.err
}

type fakeOrderService struct {
	details *service.OrderDetails
	orders  []*models.Order
	err     error
}

var _ service.OrderService = (*fakeOrderService)(nil)

func (f *fakeOrderService) CreateOrder(ctx context.Context, userID, restaurantID uuid.UUID, lines []service.NewOrderLine) (*service.OrderDetails, error) {
	return f.details, f.err
}

func (f *fakeOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderDetails, error) {
	return f.details, f.err
}

func (f *fakeOrderService) ActiveOrders(ctx context.Context, restaurantID uuid.UUID) ([]*models.Order, error) {
	return f.orders, f.err
}

func (f *fakeOrderService) OrderHistory(ctx context.Context, userID uuid.UUID, days int) ([]*models.Order, error) {
	return f.orders, f.err
}

type fakeLifecycleService struct {
	order *models.Order
	err   error
	event models.OrderEvent
}

var _ service.LifecycleService = (*fakeLifecycleService)(nil)

func (f *fakeLifecycleService) Transition(ctx context.Context, orderID uuid.UUID, event models.OrderEvent, actorRestaurantID uuid.UUID) (*models.Order, error) {
	f.event = event
	return f.order, f.err
}

func (f *fakeLifecycleService) TransitionTx(ctx context.Context, tx *sql.Tx, order *models.Order, event models.OrderEvent) (*models.LifecycleEvent, error) {
	return nil, f.err
}

func (f *fakeLifecycleService) Emit(event *models.LifecycleEvent) {}

type fakePaymentService struct {
	sessionID string
	status    models.SessionStatus
	err       error
	callback  service.Callback
}

var _ service.PaymentService = (*fakePaymentService)(nil)

func (f *fakePaymentService) OpenSession(ctx context.Context, orderID, userID uuid.UUID) (string, error) {
	return f.sessionID, f.err
}

func (f *fakePaymentService) Reconcile(ctx context.Context, cb service.Callback) error {
	f.callback = cb
	return f.err
}

func (f *fakePaymentService) CurrentStatus(ctx context.Context, orderID uuid.UUID) (models.SessionStatus, error) {
	return f.status, f.err
}

type fakeNotifyService struct {
	report        *service.DeliveryReport
	notifications []*models.Notification
	err           error
}

var _ service.NotifyService = (*fakeNotifyService)(nil)

func (f *fakeNotifyService) Dispatch(ctx context.Context, event *models.LifecycleEvent) (*service.DeliveryReport, error) {
	return f.report, f.err
}

func (f *fakeNotifyService) RegisterToken(ctx context.Context, userID uuid.UUID, deviceID, token string) error {
	return f.err
}

func (f *fakeNotifyService) Broadcast(ctx context.Context, restaurantID uuid.UUID, title, body string, ttlMinutes int) (*service.DeliveryReport, error) {
	return f.report, f.err
}

func (f *fakeNotifyService) NotificationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	return f.notifications, f.err
}

func (f *fakeNotifyService) NotificationsForRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*models.Notification, error) {
	return f.notifications, f.err
}

type fakeStatsService struct {
	stats *service.StatsResponse
	err   error
}

var _ service.StatsService = (*fakeStatsService)(nil)

func (f *fakeStatsService) GetStats(ctx context.Context, restaurantID uuid.UUID) (*service.StatsResponse, error) {
	return f.stats, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// withActor кладёт ID актора в контекст запроса, как это делает JWT middleware.
func withActor(r *http.Request, actorID uuid.UUID) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), jwtmiddleware.ActorIDKey, actorID))
}

// withURLParam добавляет к запросу параметр маршрута chi.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestAuthHandler_Success(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{token: "jwt-token"})

	body := bytes.NewBufferString(`{"email": "user@test.com", "password": "password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.AuthResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "jwt-token", resp.Token)
}

func TestAuthHandler_BadJSON(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{token: "jwt-token"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(`{not json`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_ValidationError(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{token: "jwt-token"})

	// пароль короче 8 символов
	body := bytes.NewBufferString(`{"email": "user@test.com", "password": "short"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_InvalidCredentials(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{err: fmt.Errorf("invalid credentials")})

	body := bytes.NewBufferString(`{"email": "user@test.com", "password": "password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateOrderHandler_Success(t *testing.T) {
	orderID := uuid.New()
	restaurantID := uuid.New()
	userID := uuid.New()
	svc := &fakeOrderService{details: &service.OrderDetails{
		Order: &models.Order{ID: orderID, RestaurantID: restaurantID, UserID: userID, Total: 750, Status: models.OrderStatusPaymentPending},
	}}
	handler := handlers.CreateOrderHandler(testLogger(), svc)

	body := bytes.NewBufferString(fmt.Sprintf(
		`{"restaurant_id": "%s", "lines": [{"item_id": "%s", "quantity": 2}]}`,
		restaurantID, uuid.New(),
	))
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders", body), userID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp handlers.OrderResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, orderID.String(), resp.ID)
	assert.Equal(t, "payment_pending", resp.Status)
	assert.Equal(t, 750, resp.Total)
}

func TestCreateOrderHandler_NoActor(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	body := bytes.NewBufferString(`{"restaurant_id": "x", "lines": []}`)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateOrderHandler_EmptyLines(t *testing.T) {
	handler := handlers.CreateOrderHandler(testLogger(), &fakeOrderService{})

	body := bytes.NewBufferString(fmt.Sprintf(`{"restaurant_id": "%s", "lines": []}`, uuid.New()))
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders", body), uuid.New())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	svc := &fakeOrderService{err: fmt.Errorf("order: %w", service.ErrNotFound)}
	handler := handlers.GetOrderHandler(testLogger(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.New().String(), nil)
	req = withURLParam(req, "orderID", uuid.New().String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetOrderHandler_BadID(t *testing.T) {
	handler := handlers.GetOrderHandler(testLogger(), &fakeOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	req = withURLParam(req, "orderID", "not-a-uuid")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransitionHandler_Success(t *testing.T) {
	orderID := uuid.New()
	svc := &fakeLifecycleService{order: &models.Order{ID: orderID, Status: models.OrderStatusPreparing}}
	handler := handlers.TransitionHandler(testLogger(), svc)

	body := bytes.NewBufferString(`{"action": "accept"}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/transition", body), uuid.New())
	req = withURLParam(req, "orderID", orderID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.OrderEvent("accept"), svc.event)
	var resp map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "preparing", resp["status"])
}

func TestTransitionHandler_UnknownAction(t *testing.T) {
	handler := handlers.TransitionHandler(testLogger(), &fakeLifecycleService{})

	// платёжные события недоступны через API
	body := bytes.NewBufferString(`{"action": "payment_succeeded"}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders/x/transition", body), uuid.New())
	req = withURLParam(req, "orderID", uuid.New().String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransitionHandler_InvalidTransition(t *testing.T) {
	svc := &fakeLifecycleService{err: fmt.Errorf("transition: %w", service.ErrInvalidTransition)}
	handler := handlers.TransitionHandler(testLogger(), svc)

	body := bytes.NewBufferString(`{"action": "cancel"}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders/x/transition", body), uuid.New())
	req = withURLParam(req, "orderID", uuid.New().String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestOpenSessionHandler_Success(t *testing.T) {
	svc := &fakePaymentService{sessionID: "session_abc"}
	handler := handlers.OpenSessionHandler(testLogger(), svc)

	orderID := uuid.New()
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/payment-session", nil), uuid.New())
	req = withURLParam(req, "orderID", orderID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp handlers.OpenSessionResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "session_abc", resp.SessionID)
}

func TestOpenSessionHandler_Conflict(t *testing.T) {
	svc := &fakePaymentService{err: fmt.Errorf("session: %w", service.ErrConflict)}
	handler := handlers.OpenSessionHandler(testLogger(), svc)

	orderID := uuid.New()
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/payment-session", nil), uuid.New())
	req = withURLParam(req, "orderID", orderID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCallbackHandler_Success(t *testing.T) {
	svc := &fakePaymentService{}
	handler := handlers.CallbackHandler(testLogger(), svc)

	body := bytes.NewBufferString(`{"order_status": "PAID", "cf_order_id": "cf_order_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/session_abc/callback", body)
	req = withURLParam(req, "sessionID", "session_abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "session_abc", svc.callback.SessionID)
	assert.Equal(t, "PAID", svc.callback.Status)
	assert.Equal(t, "cf_order_1", svc.callback.GatewayOrderRef)
}

func TestCallbackHandler_Consistency(t *testing.T) {
	svc := &fakePaymentService{err: fmt.Errorf("reconcile: %w", service.ErrConsistency)}
	handler := handlers.CallbackHandler(testLogger(), svc)

	body := bytes.NewBufferString(`{"order_status": "FAILED", "cf_order_id": "cf_order_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/session_abc/callback", body)
	req = withURLParam(req, "sessionID", "session_abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCallbackHandler_MissingFields(t *testing.T) {
	handler := handlers.CallbackHandler(testLogger(), &fakePaymentService{})

	body := bytes.NewBufferString(`{"order_status": "PAID"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/session_abc/callback", body)
	req = withURLParam(req, "sessionID", "session_abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentStatusHandler_Success(t *testing.T) {
	svc := &fakePaymentService{status: models.SessionStatusPending}
	handler := handlers.PaymentStatusHandler(testLogger(), svc)

	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String()+"/payment-status", nil)
	req = withURLParam(req, "orderID", orderID.String())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "pending", resp["status"])
}

func TestRegisterTokenHandler_Success(t *testing.T) {
	handler := handlers.RegisterTokenHandler(testLogger(), &fakeNotifyService{})

	body := bytes.NewBufferString(`{"device_id": "phone", "token": "expo-token"}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/notifications/token", body), uuid.New())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBroadcastHandler_Success(t *testing.T) {
	svc := &fakeNotifyService{report: &service.DeliveryReport{Attempted: 3, Delivered: 3}}
	handler := handlers.BroadcastHandler(testLogger(), svc)

	body := bytes.NewBufferString(`{"title": "Happy hour", "body": "Discounts until 6pm", "ttl_minutes": 120}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/notifications/broadcast", body), uuid.New())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp service.DeliveryReport
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Attempted)
}

func TestBroadcastHandler_NonPositiveTTL(t *testing.T) {
	handler := handlers.BroadcastHandler(testLogger(), &fakeNotifyService{})

	body := bytes.NewBufferString(`{"title": "t", "body": "b", "ttl_minutes": 0}`)
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/notifications/broadcast", body), uuid.New())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsHandler_Success(t *testing.T) {
	svc := &fakeStatsService{stats: &service.StatsResponse{TotalOrders: 10, TotalRevenue: 5000, AverageOrderValue: 500}}
	handler := handlers.StatsHandler(testLogger(), svc)

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/stats", nil), uuid.New())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp service.StatsResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(10), resp.TotalOrders)
}

func TestStatsHandler_NoActor(t *testing.T) {
	handler := handlers.StatsHandler(testLogger(), &fakeStatsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
