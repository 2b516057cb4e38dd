package service_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/food-orders/internal/domain/models"
	"github.com/linemk/food-orders/internal/gateway"
	"github.com/linemk/food-orders/internal/service"
	"github.com/linemk/food-orders/internal/storage"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users map[string]*models.User // ключ — email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	f.users[user.Email] = user
	return user, nil
}

type fakeRestaurantRepo struct {
	restaurants map[uuid.UUID]*models.Restaurant
	items       map[uuid.UUID]*models.MenuItem
}

var _ storage.RestaurantStorage = (*fakeRestaurantRepo)(nil)

func newFakeRestaurantRepo() *fakeRestaurantRepo {
	return &fakeRestaurantRepo{
		restaurants: make(map[uuid.UUID]*models.Restaurant),
		items:       make(map[uuid.UUID]*models.MenuItem),
	}
}

func (f *fakeRestaurantRepo) GetRestaurantByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	restaurant, ok := f.restaurants[id]
	if !ok {
		return nil, storage.ErrRestaurantNotFound
	}
	return restaurant, nil
}

func (f *fakeRestaurantRepo) GetRestaurantByEmail(ctx context.Context, email string) (*models.Restaurant, error) {
	for _, r := range f.restaurants {
		if r.Email == email {
			return r, nil
		}
	}
	return nil, storage.ErrRestaurantNotFound
}

func (f *fakeRestaurantRepo) GetMenuItemByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.MenuItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, storage.ErrMenuItemNotFound
	}
	return item, nil
}

type fakeOrderRepo struct {
	orders map[uuid.UUID]*models.Order
	lines  map[uuid.UUID][]*models.OrderLine
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[uuid.UUID]*models.Order),
		lines:  make(map[uuid.UUID][]*models.OrderLine),
	}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order, lines []*models.OrderLine) error {
	f.orders[order.ID] = order
	f.lines[order.ID] = lines
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus) error {
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (f *fakeOrderRepo) GetLinesByOrderID(ctx context.Context, orderID uuid.UUID) ([]*models.OrderLine, error) {
	return f.lines[orderID], nil
}

func (f *fakeOrderRepo) GetActiveOrdersByRestaurantID(ctx context.Context, restaurantID uuid.UUID) ([]*models.Order, error) {
	var orders []*models.Order
	for _, o := range f.orders {
		if o.RestaurantID == restaurantID && !o.Status.IsTerminal() {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID uuid.UUID, days int) ([]*models.Order, error) {
	var orders []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

type fakeSessionRepo struct {
	sessions map[string]*models.PaymentSession
	order    []string // порядок вставки для GetLatestSessionByOrderID
}

var _ storage.PaymentSessionStorage = (*fakeSessionRepo)(nil)

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.PaymentSession)}
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, tx *sql.Tx, session *models.PaymentSession) error {
	f.sessions[session.SessionID] = session
	f.order = append(f.order, session.SessionID)
	return nil
}

func (f *fakeSessionRepo) GetActiveSessionByOrderTx(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*models.PaymentSession, error) {
	for _, s := range f.sessions {
		if s.OrderID == orderID && s.Status == models.SessionStatusPending {
			return s, nil
		}
	}
	return nil, storage.ErrSessionNotFound
}

func (f *fakeSessionRepo) GetSessionByID(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionRepo) LockSessionByIDTx(ctx context.Context, tx *sql.Tx, sessionID string) (*models.PaymentSession, error) {
	return f.GetSessionByID(ctx, sessionID)
}

func (f *fakeSessionRepo) UpdateSessionStatus(ctx context.Context, tx *sql.Tx, sessionID string, status models.SessionStatus) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return storage.ErrSessionNotFound
	}
	session.Status = status
	return nil
}

func (f *fakeSessionRepo) GetLatestSessionByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		if s := f.sessions[f.order[i]]; s.OrderID == orderID {
			return s, nil
		}
	}
	return nil, storage.ErrSessionNotFound
}

type recordedIncident struct {
	sessionID string
	recorded  models.SessionStatus
	reported  models.SessionStatus
	detail    string
}

type fakeIncidentRepo struct {
	incidents []recordedIncident
}

var _ storage.IncidentStorage = (*fakeIncidentRepo)(nil)

func (f *fakeIncidentRepo) RecordIncident(ctx context.Context, sessionID string, orderID uuid.UUID, recorded, reported models.SessionStatus, detail string) error {
	f.incidents = append(f.incidents, recordedIncident{sessionID, recorded, reported, detail})
	return nil
}

type fakeTokenRepo struct {
	tokens map[uuid.UUID]map[string]string // userID -> deviceID -> token
}

var _ storage.TokenStorage = (*fakeTokenRepo)(nil)

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[uuid.UUID]map[string]string)}
}

func (f *fakeTokenRepo) UpsertToken(ctx context.Context, userID uuid.UUID, deviceID, token string) error {
	if f.tokens[userID] == nil {
		f.tokens[userID] = make(map[string]string)
	}
	f.tokens[userID][deviceID] = token
	return nil
}

func (f *fakeTokenRepo) GetTokensByUserID(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	for _, token := range f.tokens[userID] {
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func (f *fakeTokenRepo) GetAllTokens(ctx context.Context) ([]*models.NotificationToken, error) {
	var tokens []*models.NotificationToken
	for userID, devices := range f.tokens {
		for deviceID, token := range devices {
			tokens = append(tokens, &models.NotificationToken{UserID: userID, DeviceID: deviceID, Token: token})
		}
	}
	return tokens, nil
}

type fakeNotificationRepo struct {
	notifications []*models.Notification
	createErr     error
}

var _ storage.NotificationStorage = (*fakeNotificationRepo)(nil)

func (f *fakeNotificationRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeNotificationRepo) GetNotificationsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range f.notifications {
		if (n.Recipient.Kind == models.RecipientUser && n.Recipient.ID == userID) || n.Recipient.Kind == models.RecipientBroadcast {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) GetNotificationsByRestaurantID(ctx context.Context, restaurantID uuid.UUID) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range f.notifications {
		if n.Recipient.Kind == models.RecipientRestaurant && n.Recipient.ID == restaurantID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeGateway struct {
	session *gateway.Session
	err     error
	calls   int
}

var _ gateway.PaymentGateway = (*fakeGateway)(nil)

func (f *fakeGateway) CreateSession(ctx context.Context, amount int, orderID uuid.UUID, customerName string) (*gateway.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeSender struct {
	sent       []string
	failTokens map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, token, title, body string) error {
	if f.failTokens[token] {
		return errors.New("device unreachable")
	}
	f.sent = append(f.sent, token)
	return nil
}

// fakeDispatcher собирает события через канал: Emit доставляет их из горутины.
type fakeDispatcher struct {
	events chan *models.LifecycleEvent
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{events: make(chan *models.LifecycleEvent, 8)}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, event *models.LifecycleEvent) (*service.DeliveryReport, error) {
	f.events <- event
	return &service.DeliveryReport{}, nil
}

func (f *fakeDispatcher) wait(t *testing.T) *models.LifecycleEvent {
	t.Helper()
	select {
	case event := <-f.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not receive event in time")
		return nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestAuthService_Login_NewUser(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	userRepo := newFakeUserRepo()
	restaurantRepo := newFakeRestaurantRepo()
	authSvc := service.NewAuthService(testLogger(), userRepo, restaurantRepo, 60*time.Minute)
	ctx := context.Background()

	email := "newuser@example.com"
	password := "password123"

	token, err := authSvc.Login(ctx, email, password)
	assert.NoError(t, err, "Login should succeed for a new user")
	assert.NotEmpty(t, token, "Token should not be empty")

	user, err := userRepo.GetUserByEmail(ctx, email)
	assert.NoError(t, err, "User should exist after creation")
	assert.Equal(t, "newuser", user.Name, "Name should be derived from email")
	// Проверяем, что пароль хэширован (не равен исходному паролю)
	assert.NotEqual(t, password, string(user.PassHash), "Password should be hashed")
}

func TestAuthService_Login_ExistingUser_CorrectPassword(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	userRepo := newFakeUserRepo()
	restaurantRepo := newFakeRestaurantRepo()
	authSvc := service.NewAuthService(testLogger(), userRepo, restaurantRepo, 60*time.Minute)
	ctx := context.Background()

	email := "existing@example.com"
	password := "password123"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = userRepo.CreateUser(ctx, &models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     "existing",
		PassHash: hashed,
	})
	assert.NoError(t, err)

	token, err := authSvc.Login(ctx, email, password)
	assert.NoError(t, err, "Login should succeed with correct password")
	assert.NotEmpty(t, token, "Token should be returned")
}

func TestAuthService_Login_ExistingUser_WrongPassword(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	userRepo := newFakeUserRepo()
	restaurantRepo := newFakeRestaurantRepo()
	authSvc := service.NewAuthService(testLogger(), userRepo, restaurantRepo, 60*time.Minute)
	ctx := context.Background()

	email := "existing@example.com"
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	_, err = userRepo.CreateUser(ctx, &models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     "existing",
		PassHash: hashed,
	})
	assert.NoError(t, err)

	token, err := authSvc.Login(ctx, email, "wrongpassword")
	assert.Error(t, err, "Login should fail with incorrect password")
	assert.Empty(t, token, "Token should be empty on failed login")
}

func TestAuthService_RestaurantLogin_Success(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	userRepo := newFakeUserRepo()
	restaurantRepo := newFakeRestaurantRepo()
	authSvc := service.NewAuthService(testLogger(), userRepo, restaurantRepo, 60*time.Minute)
	ctx := context.Background()

	password := "kitchen-secret"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	restaurantID := uuid.New()
	restaurantRepo.restaurants[restaurantID] = &models.Restaurant{
		ID:       restaurantID,
		Name:     "Demo Kitchen",
		Email:    "demo@kitchen.local",
		PassHash: hashed,
	}

	token, err := authSvc.RestaurantLogin(ctx, "demo@kitchen.local", password)
	assert.NoError(t, err, "RestaurantLogin should succeed with correct password")
	assert.NotEmpty(t, token)
}

func TestAuthService_RestaurantLogin_NotFound(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	userRepo := newFakeUserRepo()
	restaurantRepo := newFakeRestaurantRepo()
	authSvc := service.NewAuthService(testLogger(), userRepo, restaurantRepo, 60*time.Minute)

	// рестораны не создаются автоматически при логине
	token, err := authSvc.RestaurantLogin(context.Background(), "unknown@kitchen.local", "password123")
	assert.Error(t, err, "RestaurantLogin should fail for unknown restaurant")
	assert.Empty(t, token)
}

type fakeStatsRepo struct {
	totalOrders  int64
	totalRevenue int64
	avg          float64
	topItems     []storage.TopItem
}

var _ storage.StatsStorage = (*fakeStatsRepo)(nil)

func (f *fakeStatsRepo) TotalOrders(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	return f.totalOrders, nil
}

func (f *fakeStatsRepo) TotalRevenue(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	return f.totalRevenue, nil
}

func (f *fakeStatsRepo) AverageOrderValue(ctx context.Context, restaurantID uuid.UUID) (float64, error) {
	return f.avg, nil
}

func (f *fakeStatsRepo) TopItems(ctx context.Context, restaurantID uuid.UUID, limit int) ([]storage.TopItem, error) {
	if limit < len(f.topItems) {
		return f.topItems[:limit], nil
	}
	return f.topItems, nil
}

func TestStatsService_GetStats(t *testing.T) {
	statsRepo := &fakeStatsRepo{
		totalOrders:  42,
		totalRevenue: 18900,
		avg:          450.0,
		topItems: []storage.TopItem{
			{Name: "Margherita", Count: 12},
			{Name: "Pepperoni", Count: 9},
			{Name: "Garlic Bread", Count: 4},
		},
	}
	statsSvc := service.NewStatsService(testLogger(), statsRepo)

	stats, err := statsSvc.GetStats(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalOrders)
	assert.Equal(t, int64(18900), stats.TotalRevenue)
	assert.Equal(t, 450.0, stats.AverageOrderValue)
	assert.Len(t, stats.TopItems, 3)
	assert.Equal(t, "Margherita", stats.TopItems[0].Name)
}
