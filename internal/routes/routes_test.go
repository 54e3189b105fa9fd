package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"balanceledger/internal/handlers"
	"balanceledger/internal/idempotency"
	"balanceledger/internal/metrics"
	"balanceledger/internal/repositories"
	"balanceledger/internal/services/ledger"
	"balanceledger/internal/services/statement"
	"balanceledger/internal/services/transfer"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, checks map[string]handlers.Pinger) *fiber.App {
	t.Helper()
	repo := repositories.NewMemoryLedgerRepository(5 * time.Second)
	collector := metrics.NewPrometheusCollector()
	engine := ledger.NewService(repo, ledger.Config{}, collector, nil)
	guard := idempotency.NewGuard(idempotency.NewMemoryKeyStore(), time.Hour, time.Minute, nil)

	app := fiber.New()
	SetupRoutes(app, Deps{
		Transfers:  transfer.NewService(engine, guard, nil),
		Statements: statement.NewService(repo, nil),
		Health:     handlers.NewHealthHandler("test", checks),
		Metrics:    collector,
	})
	return app
}

type reply struct {
	status int
	header http.Header
	body   map[string]interface{}
}

func call(t *testing.T, app *fiber.App, method, path, body string, headers ...string) reply {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := reply{status: resp.StatusCode, header: resp.Header}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func openAccount(t *testing.T, app *fiber.App, owner string) string {
	t.Helper()
	r := call(t, app, http.MethodPost, "/api/v1/accounts", `{"ownerRef":"`+owner+`","unit":"KZT"}`)
	require.Equal(t, http.StatusCreated, r.status)
	return r.body["id"].(string)
}

func TestLedgerFlow(t *testing.T) {
	app := newTestApp(t, nil)
	a := openAccount(t, app, "wallet:1")
	b := openAccount(t, app, "wallet:2")

	r := call(t, app, http.MethodPost, "/api/v1/accounts/"+a+"/deposit", `{"amount":"100.50"}`)
	require.Equal(t, http.StatusCreated, r.status)
	assert.Equal(t, "100.5", r.body["balanceAfter"])

	r = call(t, app, http.MethodPost, "/api/v1/transfers",
		`{"sourceAccountId":"`+a+`","destinationAccountId":"`+b+`","amount":40}`,
		handlers.HeaderIdempotencyKey, "t-1")
	require.Equal(t, http.StatusCreated, r.status)
	assert.Empty(t, r.header.Get(handlers.HeaderReplayed))

	r = call(t, app, http.MethodPost, "/api/v1/transfers",
		`{"sourceAccountId":"`+a+`","destinationAccountId":"`+b+`","amount":40}`,
		handlers.HeaderIdempotencyKey, "t-1")
	require.Equal(t, http.StatusCreated, r.status)
	assert.Equal(t, "true", r.header.Get(handlers.HeaderReplayed))

	r = call(t, app, http.MethodGet, "/api/v1/accounts/"+a+"/balance", "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "60.5", r.body["balance"])

	r = call(t, app, http.MethodGet, "/api/v1/accounts/"+a+"/entries?page=1&size=1", "")
	require.Equal(t, http.StatusOK, r.status)
	meta := r.body["meta"].(map[string]interface{})
	assert.EqualValues(t, 2, meta["total"])
	assert.EqualValues(t, 2, meta["total_pages"])
	data := r.body["data"].([]interface{})
	require.Len(t, data, 1)
	entryID := data[0].(map[string]interface{})["id"].(string)

	r = call(t, app, http.MethodGet, "/api/v1/entries/"+entryID, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "transfer-out", r.body["kind"])

	r = call(t, app, http.MethodGet, "/api/v1/accounts/"+a+"/reconcile", "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, true, r.body["consistent"])
}

func TestErrorResponses(t *testing.T) {
	app := newTestApp(t, nil)
	a := openAccount(t, app, "wallet:1")
	missing := "0190a6f2-0000-7000-8000-000000000000"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad account id", http.MethodPost, "/api/v1/accounts/nope/deposit", `{"amount":"1"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"zero amount", http.MethodPost, "/api/v1/accounts/" + a + "/deposit", `{"amount":"0"}`, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"unparseable amount", http.MethodPost, "/api/v1/accounts/" + a + "/deposit", `{"amount":"ten"}`, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"huge amount", http.MethodPost, "/api/v1/accounts/" + a + "/deposit", `{"amount":"1e400000000"}`, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"huge transfer amount", http.MethodPost, "/api/v1/transfers", `{"sourceAccountId":"` + a + `","destinationAccountId":"` + missing + `","amount":"1e100000"}`, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"insufficient funds", http.MethodPost, "/api/v1/accounts/" + a + "/withdraw", `{"amount":"5"}`, http.StatusConflict, "INSUFFICIENT_FUNDS"},
		{"unknown account", http.MethodGet, "/api/v1/accounts/" + missing + "/balance", "", http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"unknown account by id", http.MethodGet, "/api/v1/accounts/" + missing, "", http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"bad account id on read", http.MethodGet, "/api/v1/accounts/nope", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown entry", http.MethodGet, "/api/v1/entries/" + missing, "", http.StatusNotFound, "ENTRY_NOT_FOUND"},
		{"blank owner", http.MethodPost, "/api/v1/accounts", `{"ownerRef":" ","unit":"KZT"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing destination", http.MethodPost, "/api/v1/transfers", `{"sourceAccountId":"` + a + `","amount":"1"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"self transfer", http.MethodPost, "/api/v1/transfers", `{"sourceAccountId":"` + a + `","destinationAccountId":"` + a + `","amount":"1"}`, http.StatusBadRequest, "INVALID_OPERATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, r.status)
			assert.Equal(t, tt.code, r.body["code"])
			assert.NotEmpty(t, r.body["error"])
		})
	}
}

func TestEntriesPageBeyondEnd(t *testing.T) {
	app := newTestApp(t, nil)
	a := openAccount(t, app, "wallet:1")
	r := call(t, app, http.MethodPost, "/api/v1/accounts/"+a+"/deposit", `{"amount":"1"}`)
	require.Equal(t, http.StatusCreated, r.status)

	for _, page := range []string{"2", "9223372036854775807"} {
		t.Run(page, func(t *testing.T) {
			r := call(t, app, http.MethodGet, "/api/v1/accounts/"+a+"/entries?page="+page, "")
			require.Equal(t, http.StatusOK, r.status)
			assert.Empty(t, r.body["data"])
			meta := r.body["meta"].(map[string]interface{})
			assert.EqualValues(t, 1, meta["total"])
		})
	}
}

func TestAccountReads(t *testing.T) {
	app := newTestApp(t, nil)
	a := openAccount(t, app, "wallet:1")
	openAccount(t, app, "wallet:2")
	r := call(t, app, http.MethodPost, "/api/v1/accounts/"+a+"/deposit", `{"amount":"7.25"}`)
	require.Equal(t, http.StatusCreated, r.status)

	t.Run("by id", func(t *testing.T) {
		r := call(t, app, http.MethodGet, "/api/v1/accounts/"+a, "")
		require.Equal(t, http.StatusOK, r.status)
		assert.Equal(t, "wallet:1", r.body["ownerRef"])
		assert.Equal(t, "7.25", r.body["balance"])
	})

	lookups := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"by owner", "?ownerRef=wallet:1&unit=kzt", http.StatusOK, ""},
		{"unknown owner", "?ownerRef=wallet:9&unit=KZT", http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"missing unit", "?ownerRef=wallet:1", http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tt := range lookups {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, app, http.MethodGet, "/api/v1/accounts/by-owner"+tt.query, "")
			require.Equal(t, tt.status, r.status)
			if tt.code != "" {
				assert.Equal(t, tt.code, r.body["code"])
				return
			}
			assert.Equal(t, a, r.body["id"])
		})
	}

	t.Run("list", func(t *testing.T) {
		r := call(t, app, http.MethodGet, "/api/v1/accounts?page=1&size=1", "")
		require.Equal(t, http.StatusOK, r.status)
		assert.Len(t, r.body["data"], 1)
		meta := r.body["meta"].(map[string]interface{})
		assert.EqualValues(t, 2, meta["total"])
		assert.EqualValues(t, 2, meta["total_pages"])
	})

	t.Run("stats", func(t *testing.T) {
		r := call(t, app, http.MethodGet, "/api/v1/stats", "")
		require.Equal(t, http.StatusOK, r.status)
		assert.EqualValues(t, 2, r.body["accounts"])
		assert.EqualValues(t, 1, r.body["ledgerEntries"])
		totals := r.body["totalBalance"].(map[string]interface{})
		assert.Equal(t, "7.25", totals["KZT"])
	})
}

func TestIdempotencyKeyReuse(t *testing.T) {
	app := newTestApp(t, nil)
	a := openAccount(t, app, "wallet:1")

	r := call(t, app, http.MethodPost, "/api/v1/accounts/"+a+"/deposit", `{"amount":"10"}`, handlers.HeaderIdempotencyKey, "d-1")
	require.Equal(t, http.StatusCreated, r.status)

	r = call(t, app, http.MethodPost, "/api/v1/accounts/"+a+"/deposit", `{"amount":"11"}`, handlers.HeaderIdempotencyKey, "d-1")
	assert.Equal(t, http.StatusConflict, r.status)
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", r.body["code"])
}

func TestStockTransfer(t *testing.T) {
	app := newTestApp(t, nil)
	src := call(t, app, http.MethodPost, "/api/v1/accounts", `{"ownerRef":"stock:7:1","unit":"stock-units"}`)
	require.Equal(t, http.StatusCreated, src.status)
	id := src.body["id"].(string)
	r := call(t, app, http.MethodPost, "/api/v1/accounts/"+id+"/adjust", `{"delta":"12"}`)
	require.Equal(t, http.StatusCreated, r.status)

	r = call(t, app, http.MethodPost, "/api/v1/stock/transfers",
		`{"productId":7,"fromWarehouseId":1,"toWarehouseId":2,"quantity":"5"}`)
	require.Equal(t, http.StatusCreated, r.status)
	credit := r.body["credit"].(map[string]interface{})
	assert.Equal(t, "5", credit["balanceAfter"])
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		app := newTestApp(t, map[string]handlers.Pinger{
			"database": func(context.Context) error { return nil },
		})
		r := call(t, app, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, r.status)
		assert.Equal(t, "ok", r.body["status"])
	})

	t.Run("degraded", func(t *testing.T) {
		app := newTestApp(t, map[string]handlers.Pinger{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		r := call(t, app, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, r.status)
		assert.Equal(t, "degraded", r.body["status"])
		services := r.body["services"].(map[string]interface{})
		assert.Equal(t, "connected", services["database"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, nil)
	openAccount(t, app, "wallet:1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `route="/api/v1/accounts`)
}
