package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/config"
	"github.com/FacundoTogliefoso/transaction-log/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const batchJSON = `[
  {"id": 1, "type": "deposit", "amount": 500, "date": "2022-01-01"},
  {"id": 2, "type": "withdrawal", "amount": 200, "date": "2022-01-02"}
]`

type RouterTestSuite struct {
	suite.Suite
	cfg *config.Config
	db  *gorm.DB
	r   *gin.Engine
}

func (s *RouterTestSuite) SetupTest() {
	dir := s.T().TempDir()
	batchFile := filepath.Join(dir, "transaction.json")
	s.Require().NoError(os.WriteFile(batchFile, []byte(batchJSON), 0o644))

	s.cfg = &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "api.db")},
		JWT: config.JWTConfig{
			Secret:     "test-secret",
			Issuer:     "transaction-log",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		Admin:  config.AdminConfig{Username: "transactionlog", Password: "admintransactionlog"},
		Ingest: config.IngestConfig{File: batchFile, DepositMode: "aggregate"},
		App:    config.AppSubConfig{PageSize: 10, MaxPageSize: 100},
	}

	db, err := database.Init(s.cfg.Database)
	s.Require().NoError(err)
	s.Require().NoError(database.AutoMigrate(db))
	s.db = db

	s.r, err = SetupRouter(s.cfg, db)
	s.Require().NoError(err)
}

func (s *RouterTestSuite) TearDownTest() {
	if s.db != nil {
		database.Close(s.db)
	}
}

func (s *RouterTestSuite) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) doJSON(method, path, token string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(b)
	}
	return s.do(method, path, token, body, "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expire       int64  `json:"expire"`
}

type userBody struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Role     string          `json:"role"`
	Balance  decimal.Decimal `json:"balance"`
}

type txBody struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	AssignedID *string         `json:"assigned_id"`
	Completed  bool            `json:"completed"`
}

type txPage struct {
	Data       []txBody `json:"data"`
	Next       *int     `json:"next"`
	Previous   *int     `json:"previous"`
	TotalItems int64    `json:"total_items"`
	TotalPages int64    `json:"total_pages"`
}

type errBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *RouterTestSuite) login(username, password string) tokens {
	w := s.doJSON(http.MethodPost, "/login", "", map[string]string{"username": username, "password": password})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return decode[tokens](s.T(), w)
}

func (s *RouterTestSuite) adminToken() string {
	w := s.do(http.MethodGet, "/users/create-superuser", "", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	return s.login(s.cfg.Admin.Username, s.cfg.Admin.Password).AccessToken
}

// client creates a client with the given balance and returns its id and token.
func (s *RouterTestSuite) client(admin, name string, balance int64) (string, string) {
	w := s.doJSON(http.MethodPost, "/users", admin, map[string]any{
		"username": name,
		"password": "secret123",
		"balance":  balance,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	u := decode[userBody](s.T(), w)
	return u.ID, s.login(name, "secret123").AccessToken
}

func (s *RouterTestSuite) upload(token, name, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	s.Require().NoError(err)
	_, err = io.WriteString(fw, content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())
	return s.do(http.MethodPost, "/transactions", token, &buf, mw.FormDataContentType())
}

func (s *RouterTestSuite) balance(token string) decimal.Decimal {
	w := s.do(http.MethodGet, "/me", token, nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return decode[userBody](s.T(), w).Balance
}

func (s *RouterTestSuite) TestCreateSuperuserIsIdempotent() {
	w := s.do(http.MethodGet, "/users/create-superuser", "", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal(map[string]bool{"created": true}, decode[map[string]bool](s.T(), w))

	w = s.do(http.MethodGet, "/users/create-superuser", "", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal(map[string]bool{"created": false}, decode[map[string]bool](s.T(), w))

	admin := s.login(s.cfg.Admin.Username, s.cfg.Admin.Password).AccessToken
	w = s.do(http.MethodGet, "/users", admin, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	users := decode[[]userBody](s.T(), w)
	s.Require().Len(users, 1)
	s.Equal("admin", users[0].Role)
}

func (s *RouterTestSuite) TestLogin() {
	s.adminToken()

	w := s.doJSON(http.MethodPost, "/login", "", map[string]string{"username": "transactionlog", "password": "wrong"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Bad username or password", decode[errBody](s.T(), w).Message)

	w = s.doJSON(http.MethodPost, "/login", "", map[string]string{"username": "nobody", "password": "whatever"})
	s.Equal(http.StatusUnauthorized, w.Code)

	tk := s.login("transactionlog", "admintransactionlog")
	s.NotEmpty(tk.AccessToken)
	s.NotEmpty(tk.RefreshToken)
	s.Equal(int64(3600), tk.Expire)
}

func (s *RouterTestSuite) TestRefreshAndLogout() {
	s.adminToken()
	tk := s.login("transactionlog", "admintransactionlog")

	// an access token is not a refresh token
	w := s.do(http.MethodPost, "/refresh", tk.AccessToken, nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/refresh", tk.RefreshToken, nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	fresh := decode[tokens](s.T(), w)
	s.NotEmpty(fresh.AccessToken)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/me", fresh.AccessToken, nil, "").Code)

	w = s.doJSON(http.MethodPost, "/logout", "", map[string]string{"refresh_token": tk.RefreshToken})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/refresh", tk.RefreshToken, nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestProtectedRoutesNeedToken() {
	for _, path := range []string{"/users", "/transactions", "/me", "/audit-logs", "/transactions/export", "/clients"} {
		w := s.do(http.MethodGet, path, "", nil, "")
		s.Equal(http.StatusUnauthorized, w.Code, path)
	}
	w := s.do(http.MethodGet, "/transactions", "not-a-token", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestClientPermissions() {
	admin := s.adminToken()
	clientID, client := s.client(admin, "alice", 0)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/users"},
		{http.MethodPut, "/users/" + clientID},
		{http.MethodDelete, "/users/" + clientID},
		{http.MethodGet, "/audit-logs"},
	} {
		w := s.doJSON(tc.method, tc.path, client, map[string]string{})
		s.Equal(http.StatusUnauthorized, w.Code, tc.path)
		s.Equal("You don't have permissions to do this action.", decode[errBody](s.T(), w).Message)
	}

	// clients may not create admins or set balances
	w := s.doJSON(http.MethodPost, "/users", client, map[string]any{"username": "mallory", "password": "secret123", "role": "admin"})
	s.Equal(http.StatusUnauthorized, w.Code)
	w = s.doJSON(http.MethodPost, "/users", client, map[string]any{"username": "mallory", "password": "secret123", "balance": 10})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.doJSON(http.MethodPost, "/users", client, map[string]any{"username": "bob", "password": "secret123"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestUserCRUD() {
	admin := s.adminToken()
	id, _ := s.client(admin, "carol", 10)

	w := s.doJSON(http.MethodPost, "/users", admin, map[string]any{"username": "carol", "password": "secret123"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Username carol already exists. Please use another one.", decode[errBody](s.T(), w).Message)

	w = s.doJSON(http.MethodPut, "/users/"+id, admin, map[string]any{"email": "carol@example.com", "balance": 42})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	u := decode[userBody](s.T(), w)
	s.Equal("carol", u.Username)
	s.True(u.Balance.Equal(decimal.NewFromInt(42)))

	w = s.do(http.MethodGet, "/users/"+id, admin, nil, "")
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/users/"+id, admin, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("true", strings.TrimSpace(w.Body.String()))

	w = s.do(http.MethodGet, "/users/"+id, admin, nil, "")
	s.Equal(http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, "/users/"+id, admin, nil, "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) TestIngestUpload() {
	admin := s.adminToken()
	id, client := s.client(admin, "dave", 1000)

	w := s.upload(client, "batch.json", batchJSON)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Contains(w.Body.String(), "All transactions saved correctly")
	s.True(s.balance(client).Equal(decimal.NewFromInt(1300)))

	w = s.do(http.MethodGet, "/transactions?order_by=date_asc", client, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	page := decode[txPage](s.T(), w)
	s.Require().Len(page.Data, 2)
	s.Equal(int64(2), page.TotalItems)
	s.Equal("deposit", page.Data[0].Type)
	s.True(page.Data[0].Amount.Equal(decimal.NewFromInt(500)))
	s.True(page.Data[1].Amount.Equal(decimal.NewFromInt(200)))
	for _, tx := range page.Data {
		s.Require().NotNil(tx.AssignedID)
		s.Equal(id, *tx.AssignedID)
		s.True(tx.Completed)
	}
}

func (s *RouterTestSuite) TestIngestConfiguredFile() {
	admin := s.adminToken()
	_, client := s.client(admin, "erin", 1000)

	w := s.do(http.MethodPost, "/transactions", client, nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.True(s.balance(client).Equal(decimal.NewFromInt(1300)))
}

func (s *RouterTestSuite) TestIngestPartialAndBadBatch() {
	admin := s.adminToken()
	_, client := s.client(admin, "frank", 100)

	w := s.upload(client, "batch.yaml", "- {type: withdrawal, amount: 200, date: 2022-01-02}\n- {type: transfer, amount: 1, date: 2022-01-02}\n")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](s.T(), w)
	s.Equal("partial", body["status"])
	s.True(s.balance(client).Equal(decimal.NewFromInt(100)))

	w = s.upload(client, "batch.json", "{not json")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestListingIsScopedForClients() {
	admin := s.adminToken()
	_, alice := s.client(admin, "alice", 1000)
	bobID, bob := s.client(admin, "bob", 1000)
	s.Require().Equal(http.StatusOK, s.upload(alice, "a.json", batchJSON).Code)
	s.Require().Equal(http.StatusOK, s.upload(bob, "b.json", batchJSON).Code)

	// owner_id is ignored for clients
	w := s.do(http.MethodGet, "/transactions?owner_id="+bobID, alice, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	alicePage := decode[txPage](s.T(), w)
	s.Equal(int64(2), alicePage.TotalItems)
	s.Require().NotEmpty(alicePage.Data)

	w = s.do(http.MethodGet, "/transactions", admin, nil, "")
	s.Equal(int64(4), decode[txPage](s.T(), w).TotalItems)

	w = s.do(http.MethodGet, "/transactions?owner_id="+bobID, admin, nil, "")
	s.Equal(int64(2), decode[txPage](s.T(), w).TotalItems)

	w = s.do(http.MethodGet, "/transactions?search_by=type&search=withdraw", admin, nil, "")
	s.Equal(int64(2), decode[txPage](s.T(), w).TotalItems)

	w = s.do(http.MethodGet, "/transactions?search_by=date&from_date=2022-01-02&to_date=2022-01-02", alice, nil, "")
	s.Equal(int64(1), decode[txPage](s.T(), w).TotalItems)

	w = s.do(http.MethodGet, "/transactions?page_size=1", admin, nil, "")
	page := decode[txPage](s.T(), w)
	s.Len(page.Data, 1)
	s.Require().NotNil(page.Next)
	s.Equal(2, *page.Next)
	s.Nil(page.Previous)
	s.Equal(int64(4), page.TotalPages)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/transactions?page_size=0", admin, nil, "").Code)
	// unknown sort keys fall back to the default order
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/transactions?order_by=password", admin, nil, "").Code)

	// one of bob's records is out of alice's reach
	w = s.do(http.MethodGet, "/transactions?owner_id="+bobID, admin, nil, "")
	bobTx := decode[txPage](s.T(), w).Data[0].ID
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/transactions/"+bobTx, alice, nil, "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/transactions/"+bobTx, bob, nil, "").Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodDelete, "/transactions/"+bobTx, bob, nil, "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/transactions/"+bobTx, admin, nil, "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/transactions/"+bobTx, admin, nil, "").Code)
}

func (s *RouterTestSuite) TestExport() {
	admin := s.adminToken()
	_, client := s.client(admin, "gina", 1000)
	s.Require().Equal(http.StatusOK, s.upload(client, "batch.json", batchJSON).Code)

	w := s.do(http.MethodGet, "/transactions/export?format=csv", client, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	s.Require().Len(lines, 3)
	s.Equal("id,date,type,description,amount,completed,created", lines[0])
	s.Contains(lines[1], ",2022-01-01,deposit,,500.00,true,")

	w = s.do(http.MethodGet, "/transactions/export?format=xlsx", client, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	// xlsx is a zip archive
	s.True(bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/transactions/export?format=pdf", client, nil, "").Code)
}

func (s *RouterTestSuite) TestAuditLogs() {
	admin := s.adminToken()
	for i := 0; i < 3; i++ {
		s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/me", admin, nil, "").Code)
	}

	w := s.do(http.MethodGet, "/audit-logs?page_size=2", admin, nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Data []struct {
			Path   string `json:"path"`
			Method string `json:"method"`
			Status int    `json:"status"`
		} `json:"data"`
		TotalItems int64 `json:"total_items"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &page))
	s.Equal(int64(3), page.TotalItems)
	s.Require().Len(page.Data, 2)
	s.Equal("/me", page.Data[0].Path)
	s.Equal(http.StatusOK, page.Data[0].Status)
}

func (s *RouterTestSuite) TestChangePassword() {
	admin := s.adminToken()
	_, client := s.client(admin, "hank", 0)

	w := s.doJSON(http.MethodPost, "/me/password", client, map[string]string{"old_password": "nope", "new_password": "newsecret"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodPost, "/me/password", client, map[string]string{"old_password": "secret123", "new_password": "newsecret"})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.doJSON(http.MethodPost, "/login", "", map[string]string{"username": "hank", "password": "secret123"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.login("hank", "newsecret")
}

func (s *RouterTestSuite) TestClientRecords() {
	admin := s.adminToken()
	_, user := s.client(admin, "ivan", 0)

	type clientBody struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Lastname     string `json:"lastname"`
		Transactions []struct {
			Title   string `json:"title"`
			Created int64  `json:"created"`
		} `json:"transactions"`
		Created  int64 `json:"created"`
		Modified int64 `json:"modified"`
	}

	var ids []string
	for _, name := range []string{"Ada", "Grace", "Alan"} {
		w := s.doJSON(http.MethodPost, "/clients", user, map[string]any{
			"name":         name,
			"lastname":     "Doe",
			"balance":      10,
			"transactions": []map[string]any{{"title": "opening", "type": "deposit", "cost": "10"}},
		})
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		c := decode[clientBody](s.T(), w)
		s.NotZero(c.Created)
		s.Equal(c.Created, c.Modified)
		s.Require().Len(c.Transactions, 1)
		s.NotZero(c.Transactions[0].Created)
		ids = append(ids, c.ID)
	}

	w := s.do(http.MethodGet, "/clients?page_size=2", user, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var page struct {
		Data       []clientBody `json:"data"`
		Next       *int         `json:"next"`
		TotalItems int64        `json:"total_items"`
		TotalPages int64        `json:"total_pages"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &page))
	s.Len(page.Data, 2)
	s.Equal(int64(3), page.TotalItems)
	s.Equal(int64(2), page.TotalPages)
	s.Require().NotNil(page.Next)

	w = s.do(http.MethodGet, "/clients/"+ids[0], user, nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Ada", decode[clientBody](s.T(), w).Name)

	// changing or removing a client needs admin rights
	s.Equal(http.StatusUnauthorized, s.doJSON(http.MethodPut, "/clients/"+ids[0], user, map[string]any{"name": "x"}).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodDelete, "/clients/"+ids[0], user, nil, "").Code)

	w = s.doJSON(http.MethodPut, "/clients/"+ids[0], admin, map[string]any{"lastname": "Lovelace"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	updated := decode[clientBody](s.T(), w)
	s.Equal("Ada", updated.Name)
	s.Equal("Lovelace", updated.Lastname)
	s.Equal(ids[0], updated.ID)

	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/clients/"+ids[0], admin, nil, "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/clients/"+ids[0], user, nil, "").Code)
	s.Equal(http.StatusNotFound, s.doJSON(http.MethodPut, "/clients/"+ids[0], admin, map[string]any{"name": "x"}).Code)
}

func (s *RouterTestSuite) TestMetrics() {
	s.adminToken()
	w := s.do(http.MethodGet, "/metrics", "", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"transactionlog"`)
	s.Contains(w.Body.String(), fmt.Sprintf("%q", "users_created"))
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func TestSetupRouterRejectsDepositMode(t *testing.T) {
	cfg := &config.Config{Ingest: config.IngestConfig{DepositMode: "lifo"}}
	_, err := SetupRouter(cfg, nil)
	require.Error(t, err)
}
