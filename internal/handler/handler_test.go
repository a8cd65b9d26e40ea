package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-inventory-tree/internal/app"
	"go-inventory-tree/internal/handler"
	"go-inventory-tree/internal/lookup"
	"go-inventory-tree/internal/middleware"
	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/service"
	"go-inventory-tree/internal/testutil"
	"go-inventory-tree/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	products []lookup.Product
}

func (s *stubLookup) LookupAll(_ context.Context, code string) ([]lookup.Product, error) {
	if len(code) < lookup.MinBarcodeLength {
		return nil, errors.New("too short")
	}
	return s.products, nil
}

func (s *stubLookup) LookupBest(ctx context.Context, code string) (*lookup.Product, error) {
	all, err := s.LookupAll(ctx, code)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[0], nil
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type server struct {
	t       *testing.T
	app     *fiber.App
	c       *app.Container
	admin   string
	manager string
	viewer  string
}

func newServer(t *testing.T, products ...lookup.Product) *server {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	c := app.NewContainer(db, app.Options{
		Tokens: jwt.NewManager("handler-test", time.Hour, "inventory-test"),
		Lookup: &stubLookup{products: products},
	})
	_, err := c.Types.EnsureDefaults(ctx)
	require.NoError(t, err)

	fiberApp := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	health := handler.NewHealthHandler(pingFunc(func(context.Context) error { return nil }), nil)
	handler.RegisterRoutes(fiberApp, c.Handlers(nil, health))

	s := &server{t: t, app: fiberApp, c: c}
	s.admin = s.login("admin", model.RoleAdministrator)
	s.manager = s.login("manager", model.RoleManager)
	s.viewer = s.login("viewer", model.RoleViewer)
	return s
}

func (s *server) login(username string, role model.UserRole) string {
	s.t.Helper()
	_, err := s.c.Users.Create(context.Background(), &service.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
		Role:     role,
	}, uuid.Nil)
	require.NoError(s.t, err)

	status, body := s.do(http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"login": username, "password": "secret123"})
	require.Equal(s.t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

// do sends a JSON request and decodes a JSON object response. body may be
// a string, which is sent as-is.
func (s *server) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	status, raw := s.raw(method, path, token, body)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (s *server) list(method, path, token string) (int, []map[string]interface{}) {
	s.t.Helper()
	status, raw := s.raw(method, path, token, nil)
	var out []map[string]interface{}
	require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	return status, out
}

func (s *server) raw(method, path, token string, body interface{}) (int, []byte) {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, raw
}

func (s *server) warehouse(name string) string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/v1/warehouses", s.admin, map[string]string{"name": name})
	require.Equal(s.t, fiber.StatusCreated, status, body)
	return body["id"].(string)
}

func (s *server) entity(payload map[string]interface{}) map[string]interface{} {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/v1/entities", s.manager, payload)
	require.Equal(s.t, fiber.StatusCreated, status, body)
	return body
}

func TestAuthEndpoints(t *testing.T) {
	s := newServer(t)

	status, body := s.do(http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"login": "admin", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	status, body = s.do(http.MethodPost, "/api/v1/auth/login", "", `{"login":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	status, body = s.do(http.MethodGet, "/api/v1/auth/me", s.viewer, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "viewer", body["username"])

	status, _ = s.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/change-password", s.viewer,
		map[string]string{"old_password": "secret123", "new_password": "changed1"})
	assert.Equal(t, fiber.StatusOK, status)

	// a password change ends existing sessions
	status, body = s.do(http.MethodGet, "/api/v1/auth/me", s.viewer, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])

	status, body = s.do(http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"login": "viewer@example.com", "password": "changed1"})
	require.Equal(t, fiber.StatusOK, status, body)
	token := body["token"].(string)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRoleGates(t *testing.T) {
	s := newServer(t)

	status, body := s.do(http.MethodPost, "/api/v1/entities", s.viewer,
		map[string]interface{}{"barcode": "X", "name": "x", "entity_type": "item"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", body["code"])

	status, _ = s.do(http.MethodPost, "/api/v1/warehouses", s.manager, map[string]string{"name": "W"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(http.MethodGet, "/api/v1/users", s.manager, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(http.MethodGet, "/api/v1/users", s.admin, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 3)

	status, _ = s.list(http.MethodGet, "/api/v1/entities", s.viewer)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestEntityEndpoints(t *testing.T) {
	s := newServer(t)
	wh := s.warehouse("Main")

	box := s.entity(map[string]interface{}{
		"barcode": "BOX-1", "name": "Box", "entity_type": "container", "warehouse_id": wh,
	})
	item := s.entity(map[string]interface{}{
		"barcode": "ITEM-1", "name": "Screw", "entity_type": "item", "quantity": 10, "price": "0.25",
	})
	boxID, itemID := box["id"].(string), item["id"].(string)

	t.Run("duplicate barcode", func(t *testing.T) {
		status, body := s.do(http.MethodPost, "/api/v1/entities", s.manager,
			map[string]interface{}{"barcode": "BOX-1", "name": "again", "entity_type": "container"})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, "DUPLICATE_BARCODE", body["code"])
	})

	t.Run("get by id and barcode", func(t *testing.T) {
		status, body := s.do(http.MethodGet, "/api/v1/entities/"+boxID, s.viewer, nil)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "BOX-1", body["barcode"])

		status, body = s.do(http.MethodGet, "/api/v1/entities/barcode/ITEM-1", s.viewer, nil)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, itemID, body["id"])

		status, body = s.do(http.MethodGet, "/api/v1/entities/not-a-uuid", s.viewer, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_INPUT", body["code"])

		status, body = s.do(http.MethodGet, "/api/v1/entities/"+uuid.NewString(), s.viewer, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "ENTITY_NOT_FOUND", body["code"])
	})

	t.Run("update clears with explicit null", func(t *testing.T) {
		status, body := s.do(http.MethodPut, "/api/v1/entities/"+itemID, s.manager,
			map[string]interface{}{"description": "zinc"})
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, "zinc", body["description"])

		status, body = s.do(http.MethodPut, "/api/v1/entities/"+itemID, s.manager, `{"description": null}`)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Nil(t, body["description"])
		assert.Equal(t, "Screw", body["name"])
	})

	t.Run("children", func(t *testing.T) {
		status, rel := s.do(http.MethodPost, "/api/v1/entities/"+boxID+"/children", s.manager,
			map[string]interface{}{"child_barcode": "ITEM-1", "quantity": 4})
		require.Equal(t, fiber.StatusOK, status, rel)
		assert.EqualValues(t, 4, rel["quantity"])
		assert.Equal(t, "0.25", rel["price_snapshot"])

		_, got := s.do(http.MethodGet, "/api/v1/entities/"+itemID, s.viewer, nil)
		assert.EqualValues(t, 6, got["quantity"])

		status, children := s.list(http.MethodGet, "/api/v1/entities/"+boxID+"/children", s.viewer)
		assert.Equal(t, fiber.StatusOK, status)
		require.Len(t, children, 1)

		relID := rel["id"].(string)
		status, updated := s.do(http.MethodPut, "/api/v1/entities/"+boxID+"/children/"+relID, s.manager,
			map[string]interface{}{"notes": "top shelf"})
		require.Equal(t, fiber.StatusOK, status, updated)
		assert.Equal(t, "top shelf", updated["notes"])

		status, body := s.do(http.MethodPost, "/api/v1/entities/"+boxID+"/children", s.manager,
			map[string]interface{}{"child_id": itemID, "quantity": 100})
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "INSUFFICIENT_QUANTITY", body["code"])

		status, _ = s.raw(http.MethodDelete, "/api/v1/entities/"+boxID+"/children/"+relID+"?return_quantity=true", s.manager, nil)
		assert.Equal(t, fiber.StatusNoContent, status)
		_, got = s.do(http.MethodGet, "/api/v1/entities/"+itemID, s.viewer, nil)
		assert.EqualValues(t, 10, got["quantity"])
	})

	t.Run("quantity", func(t *testing.T) {
		status, body := s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/quantity?adjustment=-3", s.manager, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.EqualValues(t, 7, body["quantity"])

		status, body = s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/quantity?adjustment=-30", s.manager, nil)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "NEGATIVE_RESULT", body["code"])

		status, _ = s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/quantity?adjustment=lots", s.manager, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("move under parent", func(t *testing.T) {
		status, body := s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/move", s.manager,
			map[string]interface{}{"target_parent_id": boxID})
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, boxID, body["parent_id"])
		assert.Nil(t, body["warehouse_id"])

		status, body = s.do(http.MethodPost, "/api/v1/entities/"+boxID+"/move", s.manager,
			map[string]interface{}{"target_parent_id": itemID})
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "PARENT_CYCLE", body["code"])
	})

	t.Run("split", func(t *testing.T) {
		status, body := s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/split", s.manager,
			map[string]interface{}{"quantity": 2, "new_barcode": "ITEM-1B"})
		require.Equal(t, fiber.StatusCreated, status, body)
		created := body["created"].(map[string]interface{})
		assert.EqualValues(t, 2, created["quantity"])
		assert.EqualValues(t, 5, body["source"].(map[string]interface{})["quantity"])

		status, body = s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/merge", s.manager,
			map[string]interface{}{"source_ids": []string{created["id"].(string)}})
		require.Equal(t, fiber.StatusOK, status, body)
		assert.EqualValues(t, 7, body["entity"].(map[string]interface{})["quantity"])

		status, body = s.do(http.MethodPost, "/api/v1/entities/"+itemID+"/merge", s.manager,
			map[string]interface{}{"source_ids": []string{}})
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_INPUT", body["code"])
	})

	t.Run("history", func(t *testing.T) {
		status, history := s.list(http.MethodGet, "/api/v1/entities/"+itemID+"/history?limit=100", s.viewer)
		require.Equal(t, fiber.StatusOK, status)
		ops := map[string]bool{}
		for _, h := range history {
			ops[h["operation"].(string)] = true
		}
		for _, op := range []string{"create", "update", "quantity_change", "move", "split", "merge"} {
			assert.True(t, ops[op], op)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		status, roots := s.list(http.MethodGet, "/api/v1/entities?root_only=true", s.viewer)
		require.Equal(t, fiber.StatusOK, status)
		require.Len(t, roots, 1)
		assert.Equal(t, "BOX-1", roots[0]["barcode"])
		assert.EqualValues(t, 1, roots[0]["children_count"])

		_, byParent := s.list(http.MethodGet, "/api/v1/entities?parent_id="+boxID, s.viewer)
		require.Len(t, byParent, 1)
		assert.Equal(t, "ITEM-1", byParent[0]["barcode"])

		status, _ = s.do(http.MethodGet, "/api/v1/entities?warehouse_id=nope", s.viewer, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("delete", func(t *testing.T) {
		status, body := s.do(http.MethodDelete, "/api/v1/entities/"+boxID, s.manager, nil)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "HAS_CHILDREN", body["code"])

		status, _ = s.raw(http.MethodDelete, "/api/v1/entities/"+boxID+"?force=true", s.manager, nil)
		assert.Equal(t, fiber.StatusNoContent, status)

		status, _ = s.do(http.MethodGet, "/api/v1/entities/"+itemID, s.viewer, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestEntityTypeEndpoints(t *testing.T) {
	s := newServer(t)

	status, types := s.list(http.MethodGet, "/api/v1/entity-types", s.viewer)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, types, 3)

	status, body := s.do(http.MethodPost, "/api/v1/entity-types", s.admin, map[string]interface{}{
		"code": "pallet", "name": "Pallet", "can_contain_children": true,
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = s.do(http.MethodPost, "/api/v1/entity-types/pallet/deactivate", s.admin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, false, body["is_active"])

	status, body = s.do(http.MethodPut, "/api/v1/entity-types/pallet", s.admin, map[string]interface{}{"name": "Skid"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Skid", body["name"])

	status, body = s.do(http.MethodDelete, "/api/v1/entity-types/item", s.admin, nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "BUILTIN_TYPE", body["code"])

	status, _ = s.raw(http.MethodDelete, "/api/v1/entity-types/pallet", s.admin, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = s.do(http.MethodPost, "/api/v1/entity-types/init-defaults", s.admin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 0, body["inserted"])
	assert.Len(t, body["entity_types"], 3)

	status, _ = s.do(http.MethodPost, "/api/v1/entity-types/init-defaults", s.manager, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newServer(t, lookup.Product{Barcode: "9780132350884", Name: "Clean Code", Source: "Open Library", Confidence: 0.9},
		lookup.Product{Barcode: "9780132350884", Name: "Clean code (paperback)", Source: "UPCitemdb", Confidence: 0.7})

	t.Run("supplier patterns", func(t *testing.T) {
		status, body := s.do(http.MethodPost, "/api/v1/supplier-patterns", s.admin, map[string]interface{}{
			"name": "LCSC", "pattern": "C#####", "search_url": "https://lcsc.example/?q={barcode}",
		})
		require.Equal(t, fiber.StatusCreated, status, body)

		status, body = s.do(http.MethodGet, "/api/v1/supplier-patterns/match/C12345", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, true, body["matched"])
		assert.Equal(t, "https://lcsc.example/?q=C12345", body["search_url"])

		status, body = s.do(http.MethodPost, "/api/v1/supplier-patterns/test", s.viewer,
			map[string]string{"pattern": "LA####", "barcode": "LB1234"})
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, false, body["matches"])

		status, body = s.do(http.MethodPost, "/api/v1/supplier-patterns", s.admin, map[string]interface{}{
			"name": "Bad", "pattern": "#", "search_url": "https://no-placeholder.example",
		})
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_TEMPLATE", body["code"])
	})

	t.Run("settings", func(t *testing.T) {
		status, body := s.do(http.MethodPut, "/api/v1/settings/barcode_pattern", s.admin, map[string]string{"value": "INV-####"})
		require.Equal(t, fiber.StatusOK, status, body)

		status, _ = s.do(http.MethodPut, "/api/v1/settings/barcode_pattern", s.manager, map[string]string{"value": ""})
		assert.Equal(t, fiber.StatusForbidden, status)

		status, body = s.do(http.MethodPost, "/api/v1/settings/validate-barcode", s.viewer, map[string]string{"barcode": "INV-0001"})
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, true, body["is_internal"])

		status, body = s.do(http.MethodPost, "/api/v1/settings/validate-barcode?barcode=5901234123457", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, true, body["should_lookup"])

		status, body = s.do(http.MethodGet, "/api/v1/settings/pattern/examples?pattern=AB%23%23", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, "^AB[0-9][0-9]$", body["regex"])

		status, body = s.do(http.MethodGet, "/api/v1/settings/unknown", s.viewer, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "SETTING_NOT_FOUND", body["code"])

		status, body = s.do(http.MethodGet, "/api/v1/settings", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, body["settings"], 2)
	})

	t.Run("lookup", func(t *testing.T) {
		status, body := s.do(http.MethodGet, "/api/v1/barcode-lookup/9780132350884", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, true, body["found"])
		assert.Equal(t, "Clean Code", body["product"].(map[string]interface{})["name"])
		assert.Len(t, body["alternatives"], 1)

		status, body = s.do(http.MethodGet, "/api/v1/barcode-lookup/quick/9780132350884", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, "Open Library", body["source"])

		status, body = s.do(http.MethodGet, "/api/v1/barcode-lookup/quick/123", s.viewer, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, false, body["found"])
	})

	t.Run("warehouses", func(t *testing.T) {
		wh := s.warehouse("Annex")
		s.entity(map[string]interface{}{"barcode": "A-1", "name": "a", "entity_type": "item", "warehouse_id": wh})

		status, body := s.do(http.MethodDelete, "/api/v1/warehouses/"+wh, s.admin, nil)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "WAREHOUSE_NOT_EMPTY", body["code"])

		status, body = s.do(http.MethodPut, "/api/v1/warehouses/"+wh, s.admin, map[string]string{"name": "Annex B"})
		require.Equal(t, fiber.StatusOK, status, body)
		assert.Equal(t, "Annex B", body["name"])
	})
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	status, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["ws_clients"])

	down := fiber.New()
	down.Get("/health", handler.NewHealthHandler(pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), nil).Health)
	resp, err := down.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestInventoryCheckEndpoints(t *testing.T) {
	s := newServer(t)
	wh := s.warehouse("Stockroom")
	item := s.entity(map[string]interface{}{
		"barcode": "CHK-1", "name": "Bolt", "entity_type": "item", "quantity": 10, "warehouse_id": wh,
	})
	itemID := item["id"].(string)

	status, raw := s.raw(http.MethodGet, "/api/v1/checks/active", s.viewer, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "null", string(raw))

	status, _ = s.do(http.MethodPost, "/api/v1/checks", s.viewer, map[string]string{"name": "Q4"})
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body := s.do(http.MethodPost, "/api/v1/checks", s.manager, map[string]string{"name": "Q4"})
	require.Equal(t, fiber.StatusCreated, status, body)
	checkID := body["id"].(string)
	assert.Equal(t, "in_progress", body["status"])
	require.Len(t, body["items"], 1)

	status, body = s.do(http.MethodGet, "/api/v1/checks/active", s.viewer, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, checkID, body["id"])
	assert.Len(t, body["groups"], 1)

	status, body = s.do(http.MethodPut, "/api/v1/checks/"+checkID+"/items/"+itemID, s.manager,
		map[string]int{"actual_quantity": 8})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, -2, body["difference"])

	status, body = s.do(http.MethodPost, "/api/v1/checks/"+checkID+"/items/barcode/CHK-404", s.manager,
		map[string]int{"actual_quantity": 1})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "CHECK_ITEM_NOT_FOUND", body["code"])

	status, body = s.do(http.MethodPost, "/api/v1/checks/"+checkID+"/apply-corrections", s.admin, nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "CHECK_NOT_COMPLETED", body["code"])

	status, body = s.do(http.MethodPost, "/api/v1/checks/"+checkID+"/complete", s.manager, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "completed", body["status"])

	status, _ = s.do(http.MethodPost, "/api/v1/checks/"+checkID+"/apply-corrections", s.manager, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body = s.do(http.MethodPost, "/api/v1/checks/"+checkID+"/apply-corrections", s.admin, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 1, body["applied"])

	status, body = s.do(http.MethodGet, "/api/v1/entities/"+itemID, s.viewer, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 8, body["quantity"])

	status, body = s.do(http.MethodPost, "/api/v1/checks/"+checkID+"/apply-corrections", s.admin, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CORRECTIONS_ALREADY_APPLIED", body["code"])

	status, list := s.list(http.MethodGet, "/api/v1/checks?status=completed", s.viewer)
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, list, 1)
	assert.EqualValues(t, 1, list[0]["items_with_difference"])

	status, body = s.do(http.MethodGet, "/api/v1/checks?status=paused", s.viewer, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", body["code"])

	status, _ = s.do(http.MethodDelete, "/api/v1/checks/"+checkID, s.manager, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(http.MethodDelete, "/api/v1/checks/"+checkID, s.admin, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, body = s.do(http.MethodGet, "/api/v1/checks/"+checkID, s.viewer, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "INVENTORY_CHECK_NOT_FOUND", body["code"])
}
