package endpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danursasmita/bengkel-ops/config"
	"github.com/danursasmita/bengkel-ops/middleware"
	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// setupEndpointTest initializes the test DB, migrates models, seeds roles and
// returns a router with the trust-flow routes registered. Tables are dropped
// on cleanup. Tests are skipped when the configured MySQL is unreachable.
func setupEndpointTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := config.ConnectMySQL()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	testModels := []interface{}{
		&model.User{}, &model.Role{}, &model.Session{},
		&model.TrustedIP{}, &model.VerificationCode{},
		&model.EmailTemplate{}, &model.SecurityLog{},
	}
	if err := db.AutoMigrate(testModels...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	if err := model.SeedRoles(db); err != nil {
		t.Fatalf("seeding roles failed: %v", err)
	}

	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.DatabaseMiddleware(db))

	r.POST("/signup", Signup)
	r.POST("/login", Login)
	r.DELETE("/logout", Logout)
	r.GET("/token/validate", ValidateToken)
	r.POST("/ip/ban-check", CheckIPBan)

	admin := r.Group("/user")
	admin.Use(middleware.ValidateAPIToken())
	{
		admin.GET("/:id/ip-address", ListUserIPAddresses)
		admin.PATCH("/:id/ip-address", UpdateUserIPAddress)
	}

	t.Cleanup(func() {
		if err := db.Migrator().DropTable(testModels...); err != nil {
			t.Errorf("failed to drop tables during cleanup: %v", err)
		}
	})

	return r, db
}

// fakeMailer captures outbound verification emails instead of sending them.
type fakeMailer struct {
	to   string
	code string
	ip   string
	loc  util.Location
	sent int
	err  error
}

func (f *fakeMailer) SendVerificationCode(to, code, ip string, loc util.Location) error {
	if f.err != nil {
		return f.err
	}
	f.to = to
	f.code = code
	f.ip = ip
	f.loc = loc
	f.sent++
	return nil
}

// useFakeMailer installs a capturing mailer for the duration of the test.
func useFakeMailer(t *testing.T) *fakeMailer {
	t.Helper()
	fm := &fakeMailer{}
	SetMailer(fm)
	t.Cleanup(func() { SetMailer(nil) })
	return fm
}

// createTestUser inserts a user with the given status and a known password.
func createTestUser(db *gorm.DB, t *testing.T, status, password string) model.User {
	t.Helper()

	salt, err := util.GenerateSalt()
	assert.NoError(t, err)
	hashed, err := util.HashPasswordArgon2(password, salt)
	assert.NoError(t, err)

	var role model.Role
	assert.NoError(t, db.Where("name = ?", model.RoleUser).First(&role).Error)

	user := model.User{
		Name:         "Test User",
		Email:        fmt.Sprintf("user%d@test.com", time.Now().UnixNano()),
		Password:     hashed,
		PasswordSalt: salt,
		Status:       status,
		RoleID:       role.ID,
	}
	assert.NoError(t, db.Create(&user).Error)
	return user
}

// requestParams groups HTTP request parameters to reduce function arguments
type requestParams struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
	remote  string
}

// doRequest executes an HTTP request with the given parameters and returns the response recorder
func doRequest(r http.Handler, params requestParams) (*httptest.ResponseRecorder, error) {
	var buf []byte
	if params.body != nil {
		b, err := json.Marshal(params.body)
		if err != nil {
			return nil, err
		}
		buf = b
	}
	req, err := http.NewRequest(params.method, params.path, bytes.NewBuffer(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range params.headers {
		req.Header.Set(k, v)
	}
	if params.remote != "" {
		req.RemoteAddr = params.remote
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr, nil
}

// apiResp mirrors util.APIResponse with a raw Data payload for re-decoding.
type apiResp struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) apiResp {
	t.Helper()
	var resp apiResp
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeLoginData(t *testing.T, resp apiResp) LoginResponse {
	t.Helper()
	var data LoginResponse
	assert.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

// postLogin is the common shape of a login attempt in these tests.
func postLogin(t *testing.T, r http.Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	rr, err := doRequest(r, requestParams{method: http.MethodPost, path: "/login", body: body})
	assert.NoError(t, err)
	return rr
}
