package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/area-core/internal/area"
	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/blobstore"
	"github.com/nerrad567/area-core/internal/infrastructure/config"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
	"github.com/nerrad567/area-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/area-core/internal/infrastructure/logging"
	"github.com/nerrad567/area-core/internal/infrastructure/metrics"
	"github.com/nerrad567/area-core/internal/project"
)

const (
	testSecret        = "test-secret-that-is-long-enough-000"
	testAdminPassword = "admin-password"
)

type codeCatcher struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeCatcher) NotifyActivation(_ context.Context, user *auth.User, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[user.Username] = code
	return nil
}

func (c *codeCatcher) code(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[username]
}

type testServer struct {
	db      *database.DB
	handler http.Handler
	codes   *codeCatcher
	auditDB audit.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := dbtest.Open(t)
	users := auth.NewUserRepository(db.DB)
	roleRepo := auth.NewRoleRepository(db.DB)
	guard := auth.NewGuard(roleRepo, auth.GuardConfig{CacheSize: 16}, slogger)
	_, err := auth.SeedRegisteredUserRole(ctx, roleRepo, slogger)
	require.NoError(t, err)
	_, err = auth.SeedAdmin(ctx, users, auth.AdminSeed{
		Username: "hadmin",
		Email:    "hadmin@example.com",
		Password: testAdminPassword,
	}, slogger)
	require.NoError(t, err)

	images, err := blobstore.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	projects := project.NewService(project.NewSQLiteRepository(db.DB), guard, nil, slogger)
	devices := device.NewService(device.NewSQLiteRepository(db.DB), projects, guard, nil, slogger)
	areas := area.NewService(area.Deps{
		Repo:        area.NewSQLiteRepository(db.DB),
		Projects:    projects,
		Devices:     devices,
		Images:      images,
		Guard:       guard,
		Logger:      slogger,
		MaxFileSize: 1024,
	})
	projects.AddRemovalHook(areas)

	codes := &codeCatcher{codes: map[string]string{}}
	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1"},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Logger:    logger,
		Users:     users,
		RoleRepo:  roleRepo,
		Roles:     auth.NewRoleService(roleRepo, guard),
		Registrar: auth.NewRegistrar(users, roleRepo, auth.NewSQLiteActivationStore(db.DB), time.Hour, slogger),
		Notifier:  codes,
		Guard:     guard,
		Projects:  projects,
		Devices:   devices,
		Areas:     areas,
		AuditRepo: auditRepo,
		Audit:     syncAudit{repo: auditRepo},
		Metrics:   metrics.New(),
		Health:    map[string]HealthChecker{"database": db},
		Version:   "test",
	})
	require.NoError(t, err)

	return &testServer{db: db, handler: srv.Handler(), codes: codes, auditDB: auditRepo}
}

// syncAudit writes entries inline so tests can read them back immediately.
type syncAudit struct {
	repo audit.Repository
}

func (s syncAudit) Record(ctx context.Context, action, entityType string, entityID int64, details map[string]any) {
	entry := &audit.AuditLog{Action: action, EntityType: entityType, EntityID: entityID, Source: "api", Details: details}
	if p, ok := auth.PrincipalFrom(ctx); ok {
		entry.UserID = p.UserID
	}
	_ = s.repo.Create(ctx, entry) //nolint:errcheck // test helper
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// registerUser signs up and activates username, returning a token.
func (ts *testServer) registerUser(t *testing.T, username string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		Username: username,
		Name:     "Test",
		Lastname: "User",
		Email:    username + "@example.com",
		Password: "password-123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	code := ts.codes.code(username)
	require.NotEmpty(t, code)
	rec = ts.do(t, http.MethodPost, "/auth/activate", "", activateRequest{Username: username, Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return ts.login(t, username, "password-123")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createProject(t *testing.T, token, name string) project.Project {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/projects", token, project.Project{Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[project.Project](t, rec)
}

func (ts *testServer) createArea(t *testing.T, token string, a area.Area) area.Area {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/areas", token, a)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[area.Area](t, rec)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, "healthy", resp.Components["database"])
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	t.Run("admin", func(t *testing.T) {
		token := ts.login(t, "hadmin", testAdminPassword)
		rec := ts.do(t, http.MethodGet, "/auth/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[meResponse](t, rec)
		assert.True(t, me.User.Admin)
		assert.Contains(t, me.Permissions[string(auth.ResourceArea)], "save")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "hadmin", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, TypeInvalidCredentials, decode[Error](t, rec).Type)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "ghost", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("records audit entry", func(t *testing.T) {
		result, err := ts.auditDB.List(context.Background(), audit.Filter{Action: audit.ActionLogin})
		require.NoError(t, err)
		assert.NotZero(t, result.Total)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/auth/me", "/areas", "/projects/all", "/devices", "/roles"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := ts.do(t, http.MethodGet, "/areas", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokensFollowStoredAccountState(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	admin := ts.login(t, "hadmin", testAdminPassword)
	user := ts.registerUser(t, "alice")

	rec := ts.do(t, http.MethodGet, "/audit", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := ts.db.ExecContext(ctx, "UPDATE users SET is_admin = 0 WHERE username = ?", "hadmin")
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/audit", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "demoted admin keeps admin rights")

	rec = ts.do(t, http.MethodGet, "/auth/me", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = ts.db.ExecContext(ctx, "UPDATE users SET is_active = 0 WHERE username = ?", "alice")
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/auth/me", user, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deactivated user still authenticated")

	_, err = ts.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", "alice")
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/areas", user, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndActivate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		Username: "dana",
		Name:     "Dana",
		Lastname: "Scully",
		Email:    "dana@example.com",
		Password: "password-123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "dana", Password: "password-123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "inactive accounts cannot log in")

	rec = ts.do(t, http.MethodPost, "/auth/activate", "", activateRequest{Username: "dana", Code: "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/activate", "", activateRequest{Username: "dana", Code: ts.codes.code("dana")})
	require.Equal(t, http.StatusOK, rec.Code)

	token := ts.login(t, "dana", "password-123")
	rec = ts.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[meResponse](t, rec)
	assert.False(t, me.User.Admin)
	assert.ElementsMatch(t,
		[]string{"save", "update", "remove", "find", "find_all", "area_device_manager"},
		me.Permissions[string(auth.ResourceArea)])

	t.Run("validation", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/register", "", auth.RegisterRequest{Username: "x", Email: "bad"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.NotEmpty(t, decode[Error](t, rec).ValidationErrors)
	})
}

func TestAreaLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerUser(t, "alice")
	proj := ts.createProject(t, token, "home")

	root := ts.createArea(t, token, area.Area{Name: "house", ProjectID: proj.ID})
	assert.NotZero(t, root.ID)
	assert.Equal(t, 1, root.EntityVersion)
	floor := ts.createArea(t, token, area.Area{Name: "floor", ProjectID: proj.ID, ParentAreaID: &root.ID})
	ts.createArea(t, token, area.Area{Name: "kitchen", ProjectID: proj.ID, ParentAreaID: &floor.ID})

	t.Run("duplicate name", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/areas", token, area.Area{Name: "house", ProjectID: proj.ID})
		assert.Equal(t, http.StatusConflict, rec.Code)
		e := decode[Error](t, rec)
		assert.Equal(t, TypeDuplicate, e.Type)
		assert.Contains(t, e.ErrorMessages, "name")
	})

	t.Run("validation", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/areas", token, area.Area{Name: "", ProjectID: proj.ID})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		e := decode[Error](t, rec)
		require.NotEmpty(t, e.ValidationErrors)
		assert.Equal(t, "area-name", e.ValidationErrors[0].Field)
	})

	t.Run("get and list", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d", root.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "house", decode[area.Area](t, rec).Name)

		rec = ts.do(t, http.MethodGet, "/areas/all", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]area.Area](t, rec), 3)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/projects/%d/areas/roots", proj.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]area.Area](t, rec), 1)
	})

	t.Run("tree and path", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d/tree", root.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		tree := decode[area.TreeNode](t, rec)
		assert.Equal(t, "house", tree.Name)
		require.Len(t, tree.InnerArea, 1)
		require.Len(t, tree.InnerArea[0].InnerArea, 1)
		assert.Equal(t, "kitchen", tree.InnerArea[0].InnerArea[0].Name)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d/path", floor.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		path := decode[[]area.Area](t, rec)
		require.Len(t, path, 2)
		assert.Equal(t, "house", path[0].Name)
	})

	t.Run("stale update", func(t *testing.T) {
		stale := root
		root.Description = "updated"
		rec := ts.do(t, http.MethodPut, "/areas", token, root)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 2, decode[area.Area](t, rec).EntityVersion)

		rec = ts.do(t, http.MethodPut, "/areas", token, stale)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		bob := ts.registerUser(t, "bob")
		rec := ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d", root.ID), bob, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, TypeUnauthorized, decode[Error](t, rec).Type)
	})

	t.Run("delete cascades", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/areas/%d", root.ID), token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d", floor.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, TypeEntityNotFound, decode[Error](t, rec).Type)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/areas/abc", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAreaDevices(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerUser(t, "alice")
	proj := ts.createProject(t, token, "home")
	a := ts.createArea(t, token, area.Area{Name: "room", ProjectID: proj.ID})
	deviceID := dbtest.Device(t, ts.db, "lamp", proj.ID)

	rec := ts.do(t, http.MethodPut, fmt.Sprintf("/areas/%d/devices", a.ID), token,
		area.AreaDevice{DeviceID: deviceID, MapInfo: &area.MapInfo{Icon: "lamp", X: 1, Y: 2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ad := decode[area.AreaDevice](t, rec)
	assert.NotZero(t, ad.ID)

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/areas/%d/devices", a.ID), token, area.AreaDevice{DeviceID: deviceID})
	assert.Equal(t, http.StatusConflict, rec.Code, "device already mapped")

	ad.MapInfo = &area.MapInfo{Icon: "lamp", X: 5, Y: 6}
	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/areas/%d/devices", a.ID), token, ad)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/devices/%d", ad.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[area.AreaDevice](t, rec)
	require.NotNil(t, got.MapInfo)
	assert.InDelta(t, 5.0, got.MapInfo.X, 0.001)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d/tree/devices", a.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]area.AreaDevice](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/areas/%d/devices/%d", a.ID, ad.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d/devices", a.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]area.AreaDevice](t, rec))
}

func TestAreaImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerUser(t, "alice")
	proj := ts.createProject(t, token, "home")
	a := ts.createArea(t, token, area.Area{Name: "room", ProjectID: proj.ID})

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile(imageFormField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/areas/%d/image", a.ID), &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("unsupported type", func(t *testing.T) {
		rec := upload("plan.ifc", []byte("ifc"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		e := decode[Error](t, rec)
		require.NotEmpty(t, e.ValidationErrors)
		assert.Equal(t, "image_file", e.ValidationErrors[0].Field)
	})

	t.Run("too large", func(t *testing.T) {
		rec := upload("plan.png", bytes.Repeat([]byte("x"), 2048))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("set get unset", func(t *testing.T) {
		png := []byte("\x89PNG fake image")
		rec := upload("plan.PNG", png)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, fmt.Sprintf("%d_img.png", a.ID), decode[area.Area](t, rec).ImagePath)

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d/image", a.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, png, rec.Body.Bytes())

		rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/areas/%d/image", a.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		unset := decode[map[string]any](t, rec)
		require.Contains(t, unset, "imagePath")
		assert.Nil(t, unset["imagePath"])

		rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d/image", a.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("config", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/areas/config", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(1024), decode[map[string]int64](t, rec)["maxFileSize"])
	})
}

func TestResetAreaType(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerUser(t, "alice")
	proj := ts.createProject(t, token, "home")
	a := ts.createArea(t, token, area.Area{Name: "site", ProjectID: proj.ID, AreaConfiguration: `{"zoom":3}`})

	rec := ts.do(t, http.MethodPut, fmt.Sprintf("/areas/%d/resetType/MAP", a.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[area.Area](t, rec)
	assert.Equal(t, area.ViewMap, got.AreaViewType)
	assert.Empty(t, got.AreaConfiguration)

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/areas/%d/resetType/CUBE", a.ID), token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPagination(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerUser(t, "alice")
	proj := ts.createProject(t, token, "home")
	for i := range 7 {
		ts.createArea(t, token, area.Area{Name: fmt.Sprintf("area-%d", i), ProjectID: proj.ID})
	}

	rec := ts.do(t, http.MethodGet, "/areas?delta=4&page=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, page["currentPage"])
	assert.EqualValues(t, 2, page["numPages"])
	assert.Len(t, page["results"], 3)

	rec = ts.do(t, http.MethodGet, "/areas?delta=4611686018427387904&page=4", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[map[string]any](t, rec)
	assert.EqualValues(t, entity.MaxDelta, page["delta"])
	assert.EqualValues(t, 4, page["currentPage"])
	assert.EqualValues(t, 1, page["numPages"])
	assert.Empty(t, page["results"])
}

func TestProjectRemovalDeletesAreas(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerUser(t, "alice")
	proj := ts.createProject(t, token, "home")
	a := ts.createArea(t, token, area.Area{Name: "room", ProjectID: proj.ID})

	rec := ts.do(t, http.MethodDelete, fmt.Sprintf("/projects/%d", proj.ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/areas/%d", a.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoles(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "hadmin", testAdminPassword)
	user := ts.registerUser(t, "alice")

	rec := ts.do(t, http.MethodPost, "/roles", admin, auth.Role{Name: "viewer", Description: "read only"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	role := decode[auth.Role](t, rec)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/roles/%d/permissions", role.ID), admin,
		permissionRequest{Resource: string(auth.ResourceArea), Actions: []string{"find", "find_all"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	perm := decode[permissionResponse](t, rec)
	assert.Equal(t, auth.Mask(24), perm.ActionIDs)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/roles/%d/permissions", role.ID), admin,
		permissionRequest{Resource: "spaceship", Actions: []string{"find"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/roles/paginated?delta=1&page=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	roles := decode[entity.Page[auth.Role]](t, rec)
	assert.Equal(t, 2, roles.NumPages)
	assert.Equal(t, 1, roles.NextPage)
	require.Len(t, roles.Results, 1)
	assert.Equal(t, "viewer", roles.Results[0].Name)

	rec = ts.do(t, http.MethodPost, "/roles", user, auth.Role{Name: "sneaky"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/audit", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodGet, "/audit?action=login", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, decode[audit.ListResult](t, rec).Total)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", "", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "# HELP"))
}
