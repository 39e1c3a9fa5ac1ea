package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/team-hierarchy-service/internal/api/dto"
	"github.com/spec-kit/team-hierarchy-service/internal/api/http/handlers"
	"github.com/spec-kit/team-hierarchy-service/internal/auth"
	"github.com/spec-kit/team-hierarchy-service/internal/observability"
	"github.com/spec-kit/team-hierarchy-service/internal/repository"
	"github.com/spec-kit/team-hierarchy-service/internal/service"
)

const (
	testAPIToken = "test-token"

	exampleCSV = "team,parent_team,manager_name,business_unit\n" +
		"HQ,,Alice,\n" +
		"Eng,HQ,Bob,Tech\n" +
		"Sales,HQ,Carol,\n" +
		"Backend,Eng,Dan,Tech\n"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	hierarchy := service.NewHierarchyService(service.HierarchyDependencies{
		Source:  repository.NewCSVTeamRepository(),
		Metrics: metrics,
		Logger:  logger,
	})
	tokens := auth.NewTokenManager("jwt-secret", 5)
	authMiddleware := auth.NewAuthMiddleware(testAPIToken, tokens)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("team-hierarchy-service", "test", nil),
		Hierarchy:      handlers.NewHierarchyHandler(hierarchy, 1<<20),
		Auth:           handlers.NewAuthHandler(authMiddleware, tokens),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})
	return app
}

// uploadRequest builds a multipart POST /api/hierarchy. An empty filename
// sends a form without the file part.
func uploadRequest(t *testing.T, filename, content, query string) *nethttp.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	} else if err := writer.WriteField("other", "value"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	target := "/api/hierarchy"
	if query != "" {
		target += "?_q=" + url.QueryEscape(query)
	}
	req := httptest.NewRequest(nethttp.MethodPost, target, &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(auth.HeaderAPIToken, testAPIToken)
	return req
}

func send(t *testing.T, app *fiber.App, req *nethttp.Request) (*nethttp.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decodeError(t *testing.T, raw []byte) dto.ErrorBody {
	t.Helper()
	var payload dto.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode error body: %v\n%s", err, raw)
	}
	return payload.Error
}

func TestUpload_FullHierarchy(t *testing.T) {
	app := newTestApp(t)

	resp, raw := send(t, app, uploadRequest(t, "teams.csv", exampleCSV, ""))
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != fiber.MIMEApplicationJSON {
		t.Fatalf("unexpected content type %q", ct)
	}
	if resp.Header.Get("X-Cache") != "MISS" {
		t.Fatalf("expected cache MISS, got %q", resp.Header.Get("X-Cache"))
	}

	want := `{"HQ":{"teamName":"HQ","parentTeam":"","managerName":"Alice","businessUnit":"","teams":{` +
		`"Eng":{"teamName":"Eng","parentTeam":"HQ","managerName":"Bob","businessUnit":"Tech","teams":{` +
		`"Backend":{"teamName":"Backend","parentTeam":"Eng","managerName":"Dan","businessUnit":"Tech","teams":{}}}},` +
		`"Sales":{"teamName":"Sales","parentTeam":"HQ","managerName":"Carol","businessUnit":"","teams":{}}}}}`
	if string(raw) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", raw, want)
	}
}

func TestUpload_Filtered(t *testing.T) {
	app := newTestApp(t)

	resp, raw := send(t, app, uploadRequest(t, "TEAMS.CSV", exampleCSV, "Backend"))
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	want := `{"HQ":{"teamName":"HQ","parentTeam":"","managerName":"Alice","businessUnit":"","teams":{` +
		`"Eng":{"teamName":"Eng","parentTeam":"HQ","managerName":"Bob","businessUnit":"Tech","teams":{` +
		`"Backend":{"teamName":"Backend","parentTeam":"Eng","managerName":"Dan","businessUnit":"Tech","teams":{}}}}}}}`
	if string(raw) != want {
		t.Fatalf("unexpected body:\n got %s\nwant %s", raw, want)
	}
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		query    string
		status   int
		code     string
		category string
		message  string
	}{
		{
			name:     "missing file",
			status:   nethttp.StatusUnprocessableEntity,
			code:     "VALIDATION_FAILED",
			category: "file",
			message:  `Missing "file" upload (multipart/form-data).`,
		},
		{
			name:     "not a csv",
			filename: "teams.txt",
			content:  exampleCSV,
			status:   nethttp.StatusUnprocessableEntity,
			code:     "VALIDATION_FAILED",
			category: "file",
			message:  "Only CSV files are accepted.",
		},
		{
			name:     "unknown parent",
			filename: "teams.csv",
			content:  "team,parent_team,manager_name\nA,,X\nB,Z,Y\n",
			status:   nethttp.StatusUnprocessableEntity,
			code:     "VALIDATION_FAILED",
			category: "parent_team",
			message:  "Parent team 'Z' for 'B' does not exist.",
		},
		{
			name:     "two roots",
			filename: "teams.csv",
			content:  "team,parent_team,manager_name\nA,,X\nB,,Y\n",
			status:   nethttp.StatusUnprocessableEntity,
			code:     "VALIDATION_FAILED",
			category: "hierarchy",
			message:  "There must be exactly one root team (team without parent).",
		},
		{
			name:     "missing header",
			filename: "teams.csv",
			content:  "team,parent_team\nA,\n",
			status:   nethttp.StatusUnprocessableEntity,
			code:     "INVALID_CSV_HEADERS",
		},
		{
			name:     "unknown team",
			filename: "teams.csv",
			content:  exampleCSV,
			query:    "Ops",
			status:   nethttp.StatusNotFound,
			code:     "TEAM_NOT_FOUND",
			message:  `Team "Ops" not found`,
		},
	}

	app := newTestApp(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := send(t, app, uploadRequest(t, tt.filename, tt.content, tt.query))
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, raw)
			}
			body := decodeError(t, raw)
			if body.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, body.Code)
			}
			if tt.category == "" {
				if tt.message != "" && body.Message != tt.message {
					t.Fatalf("expected message %q, got %q", tt.message, body.Message)
				}
				return
			}
			messages, ok := body.Details[tt.category].([]any)
			if !ok || len(messages) == 0 || messages[0] != tt.message {
				t.Fatalf("expected %s detail %q, got %v", tt.category, tt.message, body.Details)
			}
		})
	}
}

func TestUpload_RequiresAuthentication(t *testing.T) {
	app := newTestApp(t)

	req := uploadRequest(t, "teams.csv", exampleCSV, "")
	req.Header.Del(auth.HeaderAPIToken)
	resp, raw := send(t, app, req)
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeError(t, raw); body.Code != "UNAUTHORIZED" || body.Message != "No API token provided" {
		t.Fatalf("unexpected error %+v", body)
	}

	req = uploadRequest(t, "teams.csv", exampleCSV, "")
	req.Header.Set(auth.HeaderAPIToken, "wrong")
	resp, raw = send(t, app, req)
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeError(t, raw); body.Message != "Invalid API token" {
		t.Fatalf("unexpected error %+v", body)
	}
}

func TestIssueTokenThenUpload(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(nethttp.MethodPost, "/auth/token", nil)
	req.Header.Set(auth.HeaderAPIToken, testAPIToken)
	resp, raw := send(t, app, req)
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var issued struct {
		Data dto.AuthResponse `json:"data"`
	}
	if err := json.Unmarshal(raw, &issued); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if issued.Data.Token == "" || issued.Data.TokenType != "Bearer" {
		t.Fatalf("unexpected token response %+v", issued.Data)
	}

	upload := uploadRequest(t, "teams.csv", exampleCSV, "Sales")
	upload.Header.Del(auth.HeaderAPIToken)
	upload.Header.Set(fiber.HeaderAuthorization, "Bearer "+issued.Data.Token)
	resp, raw = send(t, app, upload)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	if !strings.Contains(string(raw), `"Sales"`) || strings.Contains(string(raw), `"Eng"`) {
		t.Fatalf("expected only the Sales branch, got %s", raw)
	}
}

func TestIssueToken_Rejected(t *testing.T) {
	app := newTestApp(t)

	resp, raw := send(t, app, httptest.NewRequest(nethttp.MethodPost, "/auth/token", nil))
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeError(t, raw); body.Message != "No API token provided" {
		t.Fatalf("unexpected error %+v", body)
	}
}

func TestSnapshot_NotFoundWithoutStore(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/api/hierarchy/6f1c2c0e-0000-4000-8000-000000000000", nil)
	req.Header.Set(auth.HeaderAPIToken, testAPIToken)
	resp, raw := send(t, app, req)
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if body := decodeError(t, raw); body.Code != "NOT_FOUND" {
		t.Fatalf("unexpected error %+v", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, raw := send(t, app, httptest.NewRequest(nethttp.MethodGet, path, nil))
		if resp.StatusCode != nethttp.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, resp.StatusCode, raw)
		}
	}

	send(t, app, uploadRequest(t, "teams.csv", exampleCSV, ""))

	resp, raw := send(t, app, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		`hierarchy_requests_total{filtered="false",outcome="success"} 1`,
		`http_requests_total{method="POST",route="/api/hierarchy",status="200"} 1`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
