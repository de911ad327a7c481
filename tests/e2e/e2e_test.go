// e2e_test.go
//
// Form builder data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of formsdb.
// formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/localnerve/formsdb/internal/database"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/tests/helpers"
)

// TestE2EWithFullStack tests the entire service stack
func TestE2EWithFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	tc, err := helpers.CreateAllTestContainers(t)
	if err != nil {
		t.Fatalf("Failed to start test containers: %v", err)
	}
	defer tc.Terminate(t)

	baseURL := tc.BaseURL(t)

	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, tc)
	})

	t.Run("PrometheusMetrics", func(t *testing.T) {
		testPrometheusMetrics(t, baseURL)
	})

	t.Run("SwaggerUI", func(t *testing.T) {
		testSwaggerUI(t, baseURL)
	})

	t.Run("FormLifecycle", func(t *testing.T) {
		testFormLifecycle(t, baseURL)
	})
}

func testHealthCheck(t *testing.T, tc *helpers.TestContainers) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := tc.DBConfig(t)
	gormDB, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer database.Close(gormDB)

	rdb, err := services.NewRedisClient(ctx, tc.RedisURL(t))
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	result := services.HealthCheck(ctx, cfg, gormDB, rdb)
	if result.Status != "healthy" {
		t.Errorf("Health check failed: %+v", result)
	}

	t.Logf("Health check passed: status=%s, database=%s, redis=%s",
		result.Status, result.Database, result.Redis)
}

func testPrometheusMetrics(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for metrics, got %d. Body: %s", resp.StatusCode, body)
	}
	if !bytes.Contains(body, []byte("formsdb_")) {
		t.Errorf("Expected formsdb metrics in output")
	}
}

func testSwaggerUI(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/swagger/index.html")
	if err != nil {
		t.Fatalf("Failed to get Swagger UI: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for Swagger UI, got %d", resp.StatusCode)
	}
}

// testFormLifecycle builds a form as the bootstrap admin, then submits to it anonymously
func testFormLifecycle(t *testing.T, baseURL string) {
	admin := os.Getenv("BOOTSTRAP_ADMIN")
	if admin == "" {
		admin = "e2e-admin"
	}
	token := helpers.IssueToken(t, helpers.JWTSecret(), admin)

	var form struct {
		ID string `json:"id"`
	}
	call(t, http.MethodPost, baseURL+"/api/forms", token, map[string]any{"title": "E2E"}, http.StatusCreated, &form)

	call(t, http.MethodPut, baseURL+"/api/forms/"+form.ID+"/fields", token, map[string]any{
		"fields": []map[string]any{
			{"id": "name", "type": "text", "label": "Name", "required": true},
			{"id": "rating", "type": "rating", "label": "Rating", "settings": map[string]any{"min": 1, "max": 5}},
		},
	}, http.StatusOK, nil)

	var public struct {
		Fields []struct {
			ID string `json:"id"`
		} `json:"fields"`
	}
	call(t, http.MethodGet, baseURL+"/api/forms/"+form.ID+"/public", "", nil, http.StatusOK, &public)
	if len(public.Fields) != 2 {
		t.Fatalf("Expected 2 public fields, got %d", len(public.Fields))
	}

	call(t, http.MethodPost, baseURL+"/api/forms/"+form.ID+"/responses", "", map[string]any{
		"response_data": map[string]any{"name": "Grace", "rating": 9},
	}, http.StatusBadRequest, nil)

	call(t, http.MethodPost, baseURL+"/api/forms/"+form.ID+"/responses", "", map[string]any{
		"response_data": map[string]any{"name": "Grace", "rating": 5},
	}, http.StatusCreated, nil)

	var responses []map[string]any
	call(t, http.MethodGet, baseURL+"/api/forms/"+form.ID+"/responses", token, nil, http.StatusOK, &responses)
	if len(responses) != 1 {
		t.Errorf("Expected 1 response, got %d", len(responses))
	}

	// anonymous callers never reach the admin surface
	call(t, http.MethodGet, baseURL+"/api/forms/"+form.ID+"/responses", "", nil, http.StatusUnauthorized, nil)
}

func call(t *testing.T, method, url, token string, body any, expected int, target any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expected {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, strings.TrimPrefix(url, "http://"), expected, resp.StatusCode, data)
	}
	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			t.Fatalf("Failed to decode %s: %v", data, err)
		}
	}
}
