package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"spruce/src/config"
	"spruce/src/db"
	"spruce/src/models"
	"spruce/src/notify"
	"spruce/src/payments"
	"spruce/src/saga"
	"spruce/src/store"
	"spruce/src/types"
	"spruce/src/workflow"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock *sqlmock.Sqlmock

	Store   *store.MemoryStore
	Gateway *payments.FakeGateway
	Events  *notify.Recorder

	CustomerToken string
	WorkerToken   string
}

// authMiddleware mirrors the production middleware but resolves the
// caller from the token claims alone, so routes backed by the in-memory
// store can run without a user row.
func authMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil || !tkn.Valid {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		log.Println("error parsing claims:", err.Error())
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("id", uint(id))
	ctx.Set("email", claims.Username)
	ctx.Set("uid", claims.UID)
	ctx.Set("role", claims.Role)
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
	}

	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = &mock

	s.Store = store.NewMemoryStore()
	s.Gateway = payments.NewFakeGateway()
	s.Events = notify.NewRecorder()

	engine = workflow.NewEngine(s.Store, s.Gateway, s.Events, workflow.DefaultRules())
	engine.Schedule = nil
	coordinator = saga.NewCoordinator(s.Store, s.Gateway, engine, s.Events)
	coordinator.AcquireOnce = nil

	customerRef := "cus_test_1"
	acct := "acct_test_2"
	customer := models.User{
		ID:               1,
		Email:            "customer@example.com",
		Role:             models.ROLE_CUSTOMER,
		UID:              "uid-customer-1",
		Active:           true,
		StripeCustomerId: &customerRef,
	}
	worker := models.User{
		ID:              2,
		Email:           "worker@example.com",
		Role:            models.ROLE_WORKER,
		UID:             "uid-worker-2",
		Active:          true,
		BackgroundCheck: models.BACKGROUND_CHECK_CLEARED,
		StripeAccountId: &acct,
		PayoutsEnabled:  true,
	}
	s.Store.AddUser(&customer)
	s.Store.AddUser(&worker)
	s.Store.AddAddress(&models.Address{ID: 1, UserID: 1, Line1: "12 Elm St", City: "Springfield"})

	token, err := generateJWT(&customer)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.CustomerToken = token
	token, err = generateJWT(&worker)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.WorkerToken = token
}

func (s *TestSuite) TearDownSuite() {
	inner, err := s.DB.DB()
	if err != nil {
		log.Printf("Error accessing inner db instance: %s\n", err.Error())
		return
	}
	inner.Close()
}

func (s *TestSuite) newAuthedRouter() *gin.Engine {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)
	jobHandlers(apiv1)
	transactionHandlers(apiv1)
	return router
}

func authedRequest(method, target, token string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		rbytes, _ := json.Marshal(body)
		reader = strings.NewReader(string(rbytes))
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestAuthRoutes() {
	router := setupRouter()
	guestAuthRoutes(router)

	s.Run("Should reject login for an unknown email", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"email": "nobody@example.com",
		}
		sbody, _ := json.Marshal(&jbody)
		loginReq, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, loginReq)

		assert.Equal(s.T(), 404, w.Code)
	})

	s.Run("Should reject register with no email", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{
			"name": "No Email",
		}
		sbody, _ := json.Marshal(&jbody)
		registerReq, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, registerReq)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestCheckoutAndCancel() {
	router := s.newAuthedRouter()
	ctx := context.Background()

	scheduledAt := time.Now().Add(48 * time.Hour).Format(config.TIME_PARSE_FORMAT)
	body := map[string]any{
		"address_id":    1,
		"scheduled_at":  scheduledAt,
		"duration_mins": 120,
		"subtotal":      10000,
		"tip":           1500,
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/v1/bookings/checkout", s.CustomerToken, body))

	assert.Equal(s.T(), 201, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	sjson := string(rbytes)
	bookingId := gjson.Get(sjson, "booking_id").Uint()
	assert.Greater(s.T(), bookingId, uint64(0))
	assert.NotEmpty(s.T(), gjson.Get(sjson, "transaction_id").String())
	assert.GreaterOrEqual(s.T(), s.Gateway.Holds, 1)
	assert.GreaterOrEqual(s.T(), s.Gateway.Confirms, 1)

	s.Run("Should cancel an uncaptured booking by voiding the hold", func() {
		cancelsBefore := s.Gateway.Cancels
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(
			"POST",
			fmt.Sprintf("/api/v1/bookings/%d/cancel", bookingId),
			s.CustomerToken,
			map[string]any{"reason": "changed my mind"},
		))

		assert.Equal(s.T(), 200, w.Code)
		booking, err := s.Store.GetBooking(ctx, uint(bookingId))
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), "cancelled", string(booking.Status))
		assert.Equal(s.T(), cancelsBefore+1, s.Gateway.Cancels)
		assert.Equal(s.T(), 0, s.Gateway.Refunds)
	})
}

func (s *TestSuite) TestStatusRoute() {
	router := s.newAuthedRouter()
	ctx := context.Background()

	workerId := uint(2)
	pi := "pi_route_1"
	booking := models.Booking{
		ID:              501,
		CustomerID:      1,
		WorkerID:        &workerId,
		AddressID:       1,
		Status:          "in_progress",
		ScheduledAt:     time.Now().Add(-time.Hour),
		DurationMins:    120,
		Subtotal:        10000,
		Total:           11500,
		PaymentIntentId: &pi,
		PaymentStatus:   "succeeded",
	}
	assert.Nil(s.T(), s.Store.CreateBooking(ctx, &booking))

	s.Run("Should complete an in-progress job and capture payment", func() {
		capturesBefore := s.Gateway.Captures
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(
			"PATCH",
			"/api/v1/bookings/501/status",
			s.WorkerToken,
			map[string]any{"status": "completed", "notes": "all done"},
		))

		assert.Equal(s.T(), 200, w.Code)
		got, err := s.Store.GetBooking(ctx, 501)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), "completed", string(got.Status))
		assert.NotNil(s.T(), got.EndedAt)
		assert.Equal(s.T(), capturesBefore+1, s.Gateway.Captures)
	})

	s.Run("Should reject a transition the caller may not drive", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(
			"PATCH",
			"/api/v1/bookings/501/status",
			s.CustomerToken,
			map[string]any{"status": "paid"},
		))

		assert.Equal(s.T(), 422, w.Code)
	})

	s.Run("Should reject an edge that is not in the table", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest(
			"PATCH",
			"/api/v1/bookings/501/status",
			s.WorkerToken,
			map[string]any{"status": "requested"},
		))

		assert.Equal(s.T(), 422, w.Code)
	})
}

func (s *TestSuite) TestClaimRoute() {
	router := s.newAuthedRouter()
	ctx := context.Background()

	booking := models.Booking{
		ID:           601,
		CustomerID:   1,
		AddressID:    1,
		Status:       "requested",
		ScheduledAt:  time.Now().Add(72 * time.Hour),
		DurationMins: 90,
		Subtotal:     8000,
		Total:        8000,
	}
	assert.Nil(s.T(), s.Store.CreateBooking(ctx, &booking))

	s.Run("Should assign the job to the claiming worker", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/api/v1/jobs/601/claim", s.WorkerToken, nil))

		assert.Equal(s.T(), 200, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.True(s.T(), gjson.Get(string(rbytes), "claimed").Bool())

		got, err := s.Store.GetBooking(ctx, 601)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), "confirmed", string(got.Status))
		assert.NotNil(s.T(), got.WorkerID)
		assert.Equal(s.T(), uint(2), *got.WorkerID)
	})

	s.Run("Should return 409 for a job that is already taken", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/api/v1/jobs/601/claim", s.WorkerToken, nil))

		assert.Equal(s.T(), 409, w.Code)
		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		assert.False(s.T(), gjson.Get(string(rbytes), "claimed").Bool())
	})

	s.Run("Should hide the claim endpoint from customers", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/api/v1/jobs/601/claim", s.CustomerToken, nil))

		assert.Equal(s.T(), 403, w.Code)
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
