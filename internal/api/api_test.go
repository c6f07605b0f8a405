package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/managebug/managebug/internal/events"
	"github.com/managebug/managebug/internal/identity"
	"github.com/managebug/managebug/internal/storage/memory"
	"github.com/managebug/managebug/internal/types"
	"github.com/managebug/managebug/internal/upload"
	"github.com/managebug/managebug/internal/workflow"
)

const testPassword = "correct-horse"

// testServer bundles the HTTP handler with a session token per user so
// tests can make requests as any role.
type testServer struct {
	handler http.Handler
	store   *memory.Store
	tokens  map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	bus := events.New()
	bus.Register(events.NewNotifyHandler(store))
	engine := workflow.New(store, bus)
	ident := identity.NewService(store, 0)
	uploads, err := upload.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload.NewStore: %v", err)
	}

	ts := &testServer{
		handler: NewServer(engine, ident, uploads, store, nil).Handler(),
		store:   store,
		tokens:  map[string]string{},
	}

	hash, err := identity.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	for id, role := range map[string]types.Role{
		"mgr-1": types.RoleManager,
		"dev-1": types.RoleDeveloper,
		"qa-1":  types.RoleQA,
	} {
		u := &types.User{ID: id, Email: id + "@example.com", Name: id, Role: role, PasswordHash: hash}
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s): %v", id, err)
		}
		session, err := ident.Login(ctx, u.Email, testPassword)
		if err != nil {
			t.Fatalf("Login(%s): %v", id, err)
		}
		ts.tokens[id] = session.Token
	}
	return ts
}

// do issues a request as the given user (empty user means anonymous)
// and returns the recorder.
func (ts *testServer) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return v
}

// seedProject creates a project as the manager and enrolls the given
// members through the API.
func (ts *testServer) seedProject(t *testing.T, members ...string) *types.Project {
	t.Helper()
	rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects", map[string]string{"name": "Billing"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rec.Code, rec.Body.String())
	}
	project := decodeBody[*types.Project](t, rec)
	for _, m := range members {
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]string{"user_id": m})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("add member %s: %d %s", m, rec.Code, rec.Body.String())
		}
	}
	return project
}

func (ts *testServer) seedBug(t *testing.T, projectID string, assignee string) *types.Bug {
	t.Helper()
	draft := map[string]any{"project_id": projectID, "title": "Login fails"}
	if assignee != "" {
		draft["assignee_id"] = assignee
	}
	rec := ts.do(t, "qa-1", http.MethodPost, "/api/bugs", draft)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bug: %d %s", rec.Code, rec.Body.String())
	}
	return decodeBody[*types.Bug](t, rec)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/me", "/api/bugs", "/api/projects", "/api/notifications"} {
		rec := ts.do(t, "", http.MethodGet, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s anonymous = %d, want 401", path, rec.Code)
		}
	}
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "", http.MethodPost, "/api/login", map[string]string{"email": "qa-1@example.com", "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]any](t, rec)
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("login response missing token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	me := httptest.NewRecorder()
	ts.handler.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("me = %d", me.Code)
	}
	user := decodeBody[*types.User](t, me)
	if user.ID != "qa-1" {
		t.Fatalf("me = %+v", user)
	}
}

func TestLoginRejected(t *testing.T) {
	ts := newTestServer(t)
	cases := map[string]map[string]string{
		"unknown email":    {"email": "nobody@example.com", "password": testPassword},
		"wrong password":   {"email": "qa-1@example.com", "password": "nope"},
		"missing password": {"email": "qa-1@example.com"},
	}
	for name, body := range cases {
		rec := ts.do(t, "", http.MethodPost, "/api/login", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: login = %d, want 401", name, rec.Code)
		}
	}
}

func TestUpdateMeSetsPicture(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	rec := ts.do(t, "dev-1", http.MethodPatch, "/api/me", map[string]string{"profile_picture": "profile_pictures/abc_me.png"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update me = %d %s", rec.Code, rec.Body.String())
	}
	user := decodeBody[*types.User](t, rec)
	if user.ProfilePicture != "profile_pictures/abc_me.png" {
		t.Fatalf("ProfilePicture = %q", user.ProfilePicture)
	}

	stored, err := ts.store.GetUser(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.ProfilePicture != "profile_pictures/abc_me.png" {
		t.Fatalf("stored ProfilePicture = %q", stored.ProfilePicture)
	}
}

func TestSessionCookieAccepted(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: ts.tokens["dev-1"]})
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me via cookie = %d", rec.Code)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, "qa-1", http.MethodPost, "/api/logout", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}
	if rec := ts.do(t, "qa-1", http.MethodGet, "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", rec.Code)
	}
}

func TestProjectEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("only managers create projects", func(t *testing.T) {
		rec := ts.do(t, "qa-1", http.MethodPost, "/api/projects", map[string]string{"name": "X"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("create as qa = %d, want 403", rec.Code)
		}
	})

	project := ts.seedProject(t, "dev-1", "qa-1")

	t.Run("member listing", func(t *testing.T) {
		rec := ts.do(t, "mgr-1", http.MethodGet, "/api/projects/"+project.ID+"/members", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("members = %d", rec.Code)
		}
		members := decodeBody[[]*types.User](t, rec)
		if len(members) != 3 {
			t.Fatalf("len(members) = %d, want manager plus two", len(members))
		}
	})

	t.Run("duplicate member conflicts", func(t *testing.T) {
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]string{"user_id": "dev-1"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("duplicate member = %d, want 409", rec.Code)
		}
	})

	t.Run("missing project 404s", func(t *testing.T) {
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects/nope/members", map[string]string{"user_id": "dev-1"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("missing project = %d, want 404", rec.Code)
		}
	})

	t.Run("logo carries through", func(t *testing.T) {
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects", map[string]string{"name": "Payments", "logo": "project_logos/xyz_pay.png"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create with logo = %d %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[*types.Project](t, rec)
		if got.Logo != "project_logos/xyz_pay.png" {
			t.Fatalf("Logo = %q", got.Logo)
		}
	})

	t.Run("visible projects per role", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodGet, "/api/projects", nil)
		projects := decodeBody[[]*types.Project](t, rec)
		if len(projects) != 1 || projects[0].ID != project.ID {
			t.Fatalf("developer projects = %+v", projects)
		}
	})
}

func TestBugEndpoints(t *testing.T) {
	ts := newTestServer(t)
	project := ts.seedProject(t, "dev-1", "qa-1")

	t.Run("qa creates", func(t *testing.T) {
		bug := ts.seedBug(t, project.ID, "dev-1")
		if bug.Status != types.StatusNew || bug.CreatorID != "qa-1" {
			t.Fatalf("bug = %+v", bug)
		}
	})

	t.Run("developer cannot create", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodPost, "/api/bugs", map[string]string{"project_id": project.ID, "title": "x"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("create as dev = %d, want 403", rec.Code)
		}
	})

	t.Run("blank title is a 400", func(t *testing.T) {
		rec := ts.do(t, "qa-1", http.MethodPost, "/api/bugs", map[string]string{"project_id": project.ID, "title": "  "})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("blank title = %d, want 400", rec.Code)
		}
	})

	t.Run("duplicate title is a 409", func(t *testing.T) {
		rec := ts.do(t, "qa-1", http.MethodPost, "/api/bugs", map[string]string{"project_id": project.ID, "title": "Login fails"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("duplicate title = %d, want 409", rec.Code)
		}
	})
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	project := ts.seedProject(t, "dev-1", "qa-1")
	bug := ts.seedBug(t, project.ID, "dev-1")

	t.Run("assignee resolves", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodPost, "/api/bugs/"+bug.ID+"/status", map[string]string{"status": "resolved"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[*types.Bug](t, rec)
		if got.Status != types.StatusResolved {
			t.Fatalf("Status = %q", got.Status)
		}
	})

	t.Run("manager forbidden", func(t *testing.T) {
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/bugs/"+bug.ID+"/status", map[string]string{"status": "started"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status as manager = %d, want 403", rec.Code)
		}
	})

	t.Run("bad status is a 400", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodPost, "/api/bugs/"+bug.ID+"/status", map[string]string{"status": "completed"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("out-of-vocabulary status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing bug is a 404", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodPost, "/api/bugs/nope/status", map[string]string{"status": "started"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("missing bug = %d, want 404", rec.Code)
		}
	})
}

func TestEditFieldEndpoint(t *testing.T) {
	ts := newTestServer(t)
	project := ts.seedProject(t, "dev-1", "qa-1")
	bug := ts.seedBug(t, project.ID, "dev-1")

	t.Run("assignee edits detail", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodPatch, "/api/bugs/"+bug.ID, map[string]string{"field": "detail", "value": "stack trace"})
		if rec.Code != http.StatusOK {
			t.Fatalf("edit = %d %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[*types.Bug](t, rec)
		if got.Detail != "stack trace" {
			t.Fatalf("Detail = %q", got.Detail)
		}
	})

	t.Run("qa cannot edit detail", func(t *testing.T) {
		rec := ts.do(t, "qa-1", http.MethodPatch, "/api/bugs/"+bug.ID, map[string]string{"field": "detail", "value": "x"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("edit as qa = %d, want 403", rec.Code)
		}
	})

	t.Run("title is immutable", func(t *testing.T) {
		rec := ts.do(t, "qa-1", http.MethodPatch, "/api/bugs/"+bug.ID, map[string]string{"field": "title", "value": "renamed"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("title edit = %d, want 403", rec.Code)
		}
	})

	t.Run("missing field is a 400", func(t *testing.T) {
		rec := ts.do(t, "dev-1", http.MethodPatch, "/api/bugs/"+bug.ID, map[string]string{"value": "x"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("edit without field = %d, want 400", rec.Code)
		}
	})
}

func TestVisibilityAcrossRoles(t *testing.T) {
	ts := newTestServer(t)
	project := ts.seedProject(t, "dev-1", "qa-1")
	ts.seedBug(t, project.ID, "dev-1")
	rec := ts.do(t, "qa-1", http.MethodPost, "/api/bugs", map[string]any{"project_id": project.ID, "title": "unassigned one"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	counts := map[string]int{"mgr-1": 2, "dev-1": 1, "qa-1": 2}
	for user, want := range counts {
		rec := ts.do(t, user, http.MethodGet, "/api/bugs", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list as %s = %d", user, rec.Code)
		}
		bugs := decodeBody[[]*types.Bug](t, rec)
		if len(bugs) != want {
			t.Errorf("%s sees %d bugs, want %d", user, len(bugs), want)
		}
	}
}

func TestNotificationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	project := ts.seedProject(t, "dev-1", "qa-1")
	ts.seedBug(t, project.ID, "dev-1")

	// dev-1 now has membership and assignment notifications.
	rec := ts.do(t, "dev-1", http.MethodGet, "/api/notifications", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notifications = %d", rec.Code)
	}
	notes := decodeBody[[]*types.Notification](t, rec)
	if len(notes) != 2 {
		t.Fatalf("len(notes) = %d, want 2", len(notes))
	}

	mark := ts.do(t, "dev-1", http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", nil)
	if mark.Code != http.StatusNoContent {
		t.Fatalf("mark read = %d", mark.Code)
	}

	// A notification belonging to someone else is not reachable.
	other := ts.do(t, "qa-1", http.MethodPost, "/api/notifications/"+notes[1].ID+"/read", nil)
	if other.Code != http.StatusNotFound {
		t.Fatalf("foreign mark read = %d, want 404", other.Code)
	}
}

type stubGenerator struct {
	description string
	err         error
	gotName     string
}

func (g *stubGenerator) ProjectDescription(_ context.Context, name string) (string, error) {
	g.gotName = name
	return g.description, g.err
}

func TestDescribeProjectEndpoint(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects/describe", map[string]string{"name": "Billing"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("describe = %d, want 503", rec.Code)
		}
	})

	t.Run("delegates to the generator", func(t *testing.T) {
		ts := newTestServer(t)
		gen := &stubGenerator{description: "Tracks invoices."}
		ts.handler = NewServer(
			workflow.New(ts.store, nil),
			identity.NewService(ts.store, 0),
			nil, ts.store, gen,
		).Handler()

		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects/describe", map[string]string{"name": "Billing"})
		if rec.Code != http.StatusOK {
			t.Fatalf("describe = %d %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[map[string]string](t, rec)
		if resp["description"] != "Tracks invoices." || gen.gotName != "Billing" {
			t.Fatalf("description = %q, generator saw %q", resp["description"], gen.gotName)
		}
	})

	t.Run("blank name is a 400", func(t *testing.T) {
		ts := newTestServer(t)
		ts.handler = NewServer(
			workflow.New(ts.store, nil),
			identity.NewService(ts.store, 0),
			nil, ts.store, &stubGenerator{},
		).Handler()
		rec := ts.do(t, "mgr-1", http.MethodPost, "/api/projects/describe", map[string]string{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("describe = %d, want 400", rec.Code)
		}
	})
}

func multipartUpload(t *testing.T, field, filename, contentType, body string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := io.Copy(part, strings.NewReader(body)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	ts := newTestServer(t)

	t.Run("qa uploads a png", func(t *testing.T) {
		body, contentType := multipartUpload(t, "file", "shot.png", "image/png", "fake png")
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+ts.tokens["qa-1"])
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[map[string]string](t, rec)
		if !strings.HasPrefix(resp["path"], "bug_attachments/") {
			t.Fatalf("path = %q", resp["path"])
		}
	})

	t.Run("manager forbidden", func(t *testing.T) {
		body, contentType := multipartUpload(t, "file", "shot.png", "image/png", "fake png")
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+ts.tokens["mgr-1"])
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("upload as manager = %d, want 403", rec.Code)
		}
	})

	t.Run("wrong content type is a 400", func(t *testing.T) {
		body, contentType := multipartUpload(t, "file", "notes.pdf", "application/pdf", "pdf bytes")
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+ts.tokens["qa-1"])
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("pdf upload = %d, want 400", rec.Code)
		}
	})
}
