package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletsystem/internal/auth"
	"walletsystem/internal/infrastructure/ratelimit"
	"walletsystem/internal/ledger"
	"walletsystem/internal/repository"
	"walletsystem/internal/service"
	"walletsystem/internal/testutil"
	"walletsystem/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := zap.NewNop()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	limiter := ratelimit.NewLimiter(rdb, "signin", 5, time.Minute)

	users := service.NewUserService(repository.NewUserRepository(db), tokens, limiter, nil, 10000, 10000, logger)
	wallet := service.NewWalletService(ledger.NewEngine(repository.NewAccountRepository(db)), nil, logger)

	return &testServer{
		router: SetupRouter(NewHandler(users, wallet, logger), tokens, logger),
		db:     db,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
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
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

type signupData struct {
	Token        string   `json:"token"`
	User         UserView `json:"user"`
	Balance      string   `json:"balance"`
	BalanceMinor int64    `json:"balance_minor"`
}

func (s *testServer) signup(t *testing.T, username, first, last string) signupData {
	t.Helper()

	_, resp := s.do(t, http.MethodPost, "/api/v1/user/signup", "", gin.H{
		"username":   username,
		"password":   "password1",
		"first_name": first,
		"last_name":  last,
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	var data signupData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

type balanceData struct {
	Balance      string `json:"balance"`
	BalanceMinor int64  `json:"balance_minor"`
}

func (s *testServer) balance(t *testing.T, token string) balanceData {
	t.Helper()

	_, resp := s.do(t, http.MethodGet, "/api/v1/account/balance", token, nil)
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	var data balanceData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestSignupSigninAndBalance(t *testing.T) {
	s := newTestServer(t)

	alice := s.signup(t, "alice", "Alice", "Smith")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "alice", alice.User.Username)
	assert.Equal(t, "100.00", alice.Balance)
	assert.Equal(t, int64(10000), alice.BalanceMinor)

	_, resp := s.do(t, http.MethodPost, "/api/v1/user/signin", "", gin.H{
		"username": "alice", "password": "password1",
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	var signin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &signin))

	assert.Equal(t, "100.00", s.balance(t, signin.Token).Balance)
}

func TestSignupErrors(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice", "Alice", "Smith")

	_, resp := s.do(t, http.MethodPost, "/api/v1/user/signup", "", gin.H{
		"username": "alice", "password": "password1", "first_name": "A", "last_name": "B",
	})
	assert.Equal(t, response.CodeUserExists, resp.Code)

	_, resp = s.do(t, http.MethodPost, "/api/v1/user/signup", "", gin.H{
		"username": "bob", "password": "123", "first_name": "A", "last_name": "B",
	})
	assert.Equal(t, response.CodeParamError, resp.Code)

	_, resp = s.do(t, http.MethodPost, "/api/v1/user/signin", "", gin.H{
		"username": "alice", "password": "wrong-password",
	})
	assert.Equal(t, response.CodeInvalidCredentials, resp.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/v1/account/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeUnauthorized, resp.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/account/transfer", "garbage", gin.H{"to": 1, "amount": "1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransfer(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "Alice", "Smith")
	bob := s.signup(t, "bob", "Bob", "Jones")

	_, resp := s.do(t, http.MethodPost, "/api/v1/account/transfer", alice.Token, gin.H{
		"to": bob.User.ID, "amount": "12.34",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	assert.Equal(t, "87.66", s.balance(t, alice.Token).Balance)
	assert.Equal(t, int64(11234), s.balance(t, bob.Token).BalanceMinor)
}

func TestTransferErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "Alice", "Smith")
	bob := s.signup(t, "bob", "Bob", "Jones")

	cases := []struct {
		name string
		body gin.H
		code int
	}{
		{"insufficient", gin.H{"to": bob.User.ID, "amount": "100.01"}, response.CodeBalanceNotEnough},
		{"unknown recipient", gin.H{"to": "1", "amount": "1"}, response.CodeAccountNotFound},
		{"self", gin.H{"to": alice.User.ID, "amount": "1"}, response.CodeInvalidAmount},
		{"zero", gin.H{"to": bob.User.ID, "amount": "0"}, response.CodeInvalidAmount},
		{"negative", gin.H{"to": bob.User.ID, "amount": "-5"}, response.CodeInvalidAmount},
		{"too precise", gin.H{"to": bob.User.ID, "amount": "0.001"}, response.CodeInvalidAmount},
		{"above limit", gin.H{"to": bob.User.ID, "amount": "10000000000000.01"}, response.CodeInvalidAmount},
		{"huge exponent", gin.H{"to": bob.User.ID, "amount": "1e100000000"}, response.CodeInvalidAmount},
		{"bad recipient", gin.H{"to": "abc", "amount": "1"}, response.CodeParamError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp := s.do(t, http.MethodPost, "/api/v1/account/transfer", alice.Token, tc.body)
			assert.Equal(t, tc.code, resp.Code, resp.Message)
		})
	}

	// 失败的转账不改变任何余额
	assert.Equal(t, "100.00", s.balance(t, alice.Token).Balance)
	assert.Equal(t, "100.00", s.balance(t, bob.Token).Balance)
}

func TestDeposit(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "Alice", "Smith")

	_, resp := s.do(t, http.MethodPost, "/api/v1/account/deposit", alice.Token, gin.H{"amount": 0.5})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	var data balanceData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "100.50", data.Balance)

	for _, amount := range []string{"92233720368547758.07", "1e100000000"} {
		_, resp = s.do(t, http.MethodPost, "/api/v1/account/deposit", alice.Token, gin.H{"amount": amount})
		assert.Equal(t, response.CodeInvalidAmount, resp.Code, amount)
	}
	assert.Equal(t, "100.50", s.balance(t, alice.Token).Balance)
}

func TestUpdateProfileAndBulk(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "Alice", "Smith")
	s.signup(t, "bob", "Bob", "Alison")
	s.signup(t, "carol", "Carol", "White")

	_, resp := s.do(t, http.MethodPut, "/api/v1/user", alice.Token, gin.H{"last_name": "Walker"})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	_, resp = s.do(t, http.MethodPut, "/api/v1/user", alice.Token, gin.H{})
	assert.Equal(t, response.CodeParamError, resp.Code)

	_, resp = s.do(t, http.MethodGet, "/api/v1/user/bulk?filter=ali", "", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var data struct {
		Users []UserView `json:"users"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Users, 2)
	assert.Equal(t, "Alice", data.Users[0].FirstName)
	assert.Equal(t, "Walker", data.Users[0].LastName)
	assert.Equal(t, "Bob", data.Users[1].FirstName)
}
