package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/tests/helpers"
)

// TestAdminAuthentication tests the responses of the admin guard chain
func TestAdminAuthentication(t *testing.T) {
	env := setupApp(t, 0)

	t.Run("no token", func(t *testing.T) {
		resp := helpers.Request(t, env.app, http.MethodGet, "/api/forms", nil, "")
		helpers.AssertStatus(t, resp, fiber.StatusUnauthorized)
	})

	t.Run("bad token", func(t *testing.T) {
		token := helpers.IssueToken(t, "some-other-secret", "intruder")
		resp := helpers.Request(t, env.app, http.MethodGet, "/api/forms", nil, token)
		helpers.AssertStatus(t, resp, fiber.StatusUnauthorized)
	})

	t.Run("no role", func(t *testing.T) {
		token := helpers.IssueToken(t, helpers.TestSecret, helpers.RandomSubject())
		resp := helpers.Request(t, env.app, http.MethodGet, "/api/forms", nil, token)
		helpers.AssertStatus(t, resp, fiber.StatusForbidden)
	})

	t.Run("html clients are redirected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
		req.Header.Set("Accept", "text/html")
		resp, err := env.app.Test(req, -1)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		helpers.AssertStatus(t, resp, fiber.StatusFound)
		if loc := resp.Header.Get("Location"); loc != "/login" {
			t.Errorf("Expected redirect to /login, got %q", loc)
		}

		token := helpers.IssueToken(t, helpers.TestSecret, helpers.RandomSubject())
		req = httptest.NewRequest(http.MethodGet, "/api/forms", nil)
		req.Header.Set("Accept", "text/html")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err = env.app.Test(req, -1)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		helpers.AssertStatus(t, resp, fiber.StatusFound)
		if loc := resp.Header.Get("Location"); loc != "/forbidden" {
			t.Errorf("Expected redirect to /forbidden, got %q", loc)
		}
	})

	t.Run("users are recorded on first request", func(t *testing.T) {
		subject := helpers.RandomSubject()
		token := helpers.IssueToken(t, helpers.TestSecret, subject)
		helpers.Request(t, env.app, http.MethodGet, "/api/forms", nil, token)
		if n := helpers.CountRows(t, env.db, &models.User{}, "id = ?", subject); n != 1 {
			t.Errorf("Expected user %s to be recorded, got %d rows", subject, n)
		}
	})
}

// TestRolePermissions tests that each seeded role reaches only its routes
func TestRolePermissions(t *testing.T) {
	env := setupApp(t, 0)

	helpers.GrantRole(t, env.db, "analyst-1", "analyst")
	helpers.GrantRole(t, env.db, "editor-1", "editor")
	helpers.GrantRole(t, env.db, "admin-1", "admin")

	analyst := helpers.IssueToken(t, helpers.TestSecret, "analyst-1")
	editor := helpers.IssueToken(t, helpers.TestSecret, "editor-1")
	admin := helpers.IssueToken(t, helpers.TestSecret, "admin-1")

	newForm := map[string]interface{}{"title": "Feedback"}

	tests := []struct {
		name     string
		method   string
		url      string
		body     interface{}
		token    string
		expected int
	}{
		{"analyst lists forms", http.MethodGet, "/api/forms", nil, analyst, fiber.StatusOK},
		{"analyst cannot create forms", http.MethodPost, "/api/forms", newForm, analyst, fiber.StatusForbidden},
		{"analyst cannot list users", http.MethodGet, "/api/users", nil, analyst, fiber.StatusForbidden},
		{"editor creates forms", http.MethodPost, "/api/forms", newForm, editor, fiber.StatusCreated},
		{"editor cannot manage roles", http.MethodGet, "/api/roles", nil, editor, fiber.StatusForbidden},
		{"admin lists roles", http.MethodGet, "/api/roles", nil, admin, fiber.StatusOK},
		{"admin lists users", http.MethodGet, "/api/users", nil, admin, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := helpers.Request(t, env.app, tt.method, tt.url, tt.body, tt.token)
			helpers.AssertStatus(t, resp, tt.expected)
		})
	}
}

// TestMe tests the caller's identity and permission listing
func TestMe(t *testing.T) {
	env := setupApp(t, 0)
	helpers.GrantRole(t, env.db, "analyst-1", "analyst")

	resp := helpers.Request(t, env.app, http.MethodGet, "/api/me", nil, "")
	helpers.AssertStatus(t, resp, fiber.StatusUnauthorized)

	token := helpers.IssueToken(t, helpers.TestSecret, "analyst-1")
	resp = helpers.Request(t, env.app, http.MethodGet, "/api/me", nil, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var result struct {
		Identity struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"identity"`
		Permissions []string `json:"permissions"`
	}
	helpers.ParseJSON(t, resp, &result)

	if result.Identity.ID != "analyst-1" {
		t.Errorf("Expected identity analyst-1, got %s", result.Identity.ID)
	}
	if len(result.Permissions) != 4 {
		t.Errorf("Expected 4 analyst permissions, got %v", result.Permissions)
	}
	if !contains(result.Permissions, "responses.read") || contains(result.Permissions, "forms.write") {
		t.Errorf("Unexpected analyst permissions %v", result.Permissions)
	}
}

// TestFormLifecycle tests create, update with version, field save and delete
func TestFormLifecycle(t *testing.T) {
	env := setupApp(t, 0)
	helpers.GrantRole(t, env.db, "admin-1", "admin")
	token := helpers.IssueToken(t, helpers.TestSecret, "admin-1")

	resp := helpers.Request(t, env.app, http.MethodPost, "/api/forms", map[string]interface{}{
		"title":       "Registration",
		"description": "Event signup",
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusCreated)

	var form models.Form
	helpers.ParseJSON(t, resp, &form)
	if form.ID == "" || form.OwnerID != "admin-1" || !form.Active || form.Version != 0 {
		t.Fatalf("Unexpected created form %+v", form)
	}

	resp = helpers.Request(t, env.app, http.MethodPost, "/api/forms", map[string]interface{}{}, token)
	helpers.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp = helpers.Request(t, env.app, http.MethodPut, "/api/forms/"+form.ID, map[string]interface{}{
		"title":         "Registration 2026",
		"max_responses": 100,
		"version":       "0",
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var updated models.Form
	helpers.ParseJSON(t, resp, &updated)
	if updated.Title != "Registration 2026" || updated.MaxResponses != 100 || updated.Version != 1 {
		t.Errorf("Unexpected updated form %+v", updated)
	}

	// stale version
	resp = helpers.Request(t, env.app, http.MethodPut, "/api/forms/"+form.ID, map[string]interface{}{
		"title":   "Lost update",
		"version": 0,
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusConflict)

	var conflict map[string]interface{}
	helpers.ParseJSON(t, resp, &conflict)
	if conflict["versionError"] != true {
		t.Errorf("Expected versionError, got %v", conflict)
	}

	// a single object is accepted in place of a list
	resp = helpers.Request(t, env.app, http.MethodPut, "/api/forms/"+form.ID+"/fields", map[string]interface{}{
		"version": 1,
		"fields": map[string]interface{}{
			"id":       "email",
			"type":     "email",
			"label":    "Email",
			"required": true,
		},
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var saved struct {
		Fields  []models.FormField `json:"fields"`
		Version uint64             `json:"version"`
	}
	helpers.ParseJSON(t, resp, &saved)
	if len(saved.Fields) != 1 || saved.Fields[0].ID != "email" || saved.Version != 2 {
		t.Errorf("Unexpected saved fields %+v", saved)
	}

	resp = helpers.Request(t, env.app, http.MethodGet, "/api/forms/"+form.ID+"/fields", nil, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	// another owner cannot see the form
	helpers.GrantRole(t, env.db, "admin-2", "admin")
	other := helpers.IssueToken(t, helpers.TestSecret, "admin-2")
	resp = helpers.Request(t, env.app, http.MethodGet, "/api/forms/"+form.ID, nil, other)
	helpers.AssertStatus(t, resp, fiber.StatusNotFound)

	resp = helpers.Request(t, env.app, http.MethodDelete, "/api/forms/"+form.ID, nil, token)
	helpers.AssertStatus(t, resp, fiber.StatusNoContent)
	helpers.AssertNoContent(t, resp)

	if n := helpers.CountRows(t, env.db, &models.FormField{}, "form_id = ?", form.ID); n != 0 {
		t.Errorf("Expected fields to be deleted, got %d", n)
	}
	if !contains(env.revalidator.Signals(), "FORMS") {
		t.Errorf("Expected FORMS signal, got %v", env.revalidator.Signals())
	}
}

// TestSaveFieldsRejectsCycles tests that a cyclic field set is refused as a whole
func TestSaveFieldsRejectsCycles(t *testing.T) {
	env := setupApp(t, 0)
	helpers.GrantRole(t, env.db, "editor-1", "editor")
	token := helpers.IssueToken(t, helpers.TestSecret, "editor-1")
	form := helpers.CreateTestForm(t, env.db, "editor-1", "Loop")

	rule := func(dependsOn string) map[string]interface{} {
		return map[string]interface{}{"dependsOn": dependsOn, "condition": "equals", "value": "x"}
	}

	resp := helpers.Request(t, env.app, http.MethodPut, "/api/forms/"+form.ID+"/fields", map[string]interface{}{
		"fields": []map[string]interface{}{
			{"id": "a", "type": "text", "label": "A", "conditional_logic": rule("b")},
			{"id": "b", "type": "text", "label": "B", "conditional_logic": rule("a")},
		},
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusUnprocessableEntity)

	var result map[string]interface{}
	helpers.ParseJSON(t, resp, &result)
	if _, ok := result["fields"]; !ok {
		t.Errorf("Expected offending fields in response, got %v", result)
	}

	if n := helpers.CountRows(t, env.db, &models.FormField{}, "form_id = ?", form.ID); n != 0 {
		t.Errorf("Expected no fields saved, got %d", n)
	}

	// dependency on a field that does not exist
	resp = helpers.Request(t, env.app, http.MethodPut, "/api/forms/"+form.ID+"/fields", map[string]interface{}{
		"fields": []map[string]interface{}{
			{"id": "a", "type": "text", "label": "A", "conditional_logic": rule("ghost")},
		},
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusUnprocessableEntity)

	// choice fields need options
	resp = helpers.Request(t, env.app, http.MethodPut, "/api/forms/"+form.ID+"/fields", map[string]interface{}{
		"fields": []map[string]interface{}{
			{"id": "color", "type": "select", "label": "Color"},
		},
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusUnprocessableEntity)
}

// TestResponsesAndDashboards tests the owner's view of collected data
func TestResponsesAndDashboards(t *testing.T) {
	env := setupApp(t, 0)
	helpers.GrantRole(t, env.db, "admin-1", "admin")
	token := helpers.IssueToken(t, helpers.TestSecret, "admin-1")
	form := surveyForm(t, env.db, "admin-1")

	for _, pets := range [][]string{{"cat"}, {"cat", "dog"}} {
		resp := helpers.Request(t, env.app, http.MethodPost, "/api/forms/"+form.ID+"/responses", map[string]interface{}{
			"response_data": map[string]interface{}{"name": "Ada", "has_pet": "no", "pets": pets, "age": 30},
		}, "")
		helpers.AssertStatus(t, resp, fiber.StatusCreated)
	}

	resp := helpers.Request(t, env.app, http.MethodGet, "/api/forms/"+form.ID+"/responses", nil, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var list []models.FormResponse
	helpers.ParseJSON(t, resp, &list)
	if len(list) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(list))
	}

	resp = helpers.Request(t, env.app, http.MethodGet, "/api/forms/"+form.ID+"/responses/"+list[0].ID, nil, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var one models.FormResponse
	helpers.ParseJSON(t, resp, &one)
	if one.ID != list[0].ID || len(one.Values) == 0 {
		t.Errorf("Expected response %s with values, got %+v", list[0].ID, one)
	}

	resp = helpers.Request(t, env.app, http.MethodPost, "/api/dashboards", map[string]interface{}{
		"name": "Pets",
		"widgets": []map[string]interface{}{
			{"id": "total", "title": "Total", "form_id": form.ID, "kind": "count"},
			{"id": "pets", "title": "Pets", "form_id": form.ID, "field_id": "pets", "kind": "distribution"},
			{"id": "age", "title": "Age", "form_id": form.ID, "field_id": "age", "kind": "average"},
		},
	}, token)
	helpers.AssertStatus(t, resp, fiber.StatusCreated)

	var dashboard models.Dashboard
	helpers.ParseJSON(t, resp, &dashboard)

	resp = helpers.Request(t, env.app, http.MethodGet, "/api/dashboards/"+dashboard.ID+"/data", nil, token)
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var data struct {
		Widgets []struct {
			Widget       models.Widget `json:"widget"`
			Count        int64         `json:"count"`
			Value        *float64      `json:"value"`
			Distribution []struct {
				Value string `json:"value"`
				Count int64  `json:"count"`
			} `json:"distribution"`
		} `json:"widgets"`
	}
	helpers.ParseJSON(t, resp, &data)

	if len(data.Widgets) != 3 {
		t.Fatalf("Expected 3 widgets, got %d", len(data.Widgets))
	}
	if data.Widgets[0].Widget.ID != "total" || data.Widgets[0].Count != 2 {
		t.Errorf("Expected total count 2, got %+v", data.Widgets[0])
	}
	counts := map[string]int64{}
	for _, b := range data.Widgets[1].Distribution {
		counts[b.Value] = b.Count
	}
	if counts["cat"] != 2 || counts["dog"] != 1 {
		t.Errorf("Expected cat=2 dog=1, got %v", counts)
	}
	if v := data.Widgets[2].Value; v == nil || *v != 30 {
		t.Errorf("Expected average age 30, got %v", v)
	}
}
