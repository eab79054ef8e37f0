package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/SantoDelgado/krizo-backend/internal/config"
	"github.com/SantoDelgado/krizo-backend/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	err := Setup(app, Deps{
		Cfg: config.Config{
			AppName:         "krizo-test",
			AppEnv:          "development",
			Currency:        "USD",
			PaymentProvider: "static",
			JWTSecret:       "test-secret",
			RefreshSecret:   "test-secret.refresh",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			OrderExpiry:     15 * time.Minute,
		},
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	return app
}

// request fires a JSON request through app.Test and decodes an object body
// when one comes back.
func request(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func registerUser(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	status, body := request(t, app, http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"email":    email,
		"name":     "Test User",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, status, "register: %v", body)
	tokens, ok := body["tokens"].(map[string]any)
	require.True(t, ok)
	access, ok := tokens["access_token"].(string)
	require.True(t, ok)
	return access
}

func TestHealthzReportsOK(t *testing.T) {
	app := newTestApp(t)
	status, body := request(t, app, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	app := newTestApp(t)
	status, _ := request(t, app, http.MethodGet, "/api/v1/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = request(t, app, http.MethodPost, "/api/v1/payments/deposit", "", fiber.Map{"amount": 100})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	app := newTestApp(t)
	registerUser(t, app, "eve@example.com")

	status, _ := request(t, app, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email":    "eve@example.com",
		"password": "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterDepositAndBalance(t *testing.T) {
	app := newTestApp(t)
	token := registerUser(t, app, "alice@example.com")

	status, created := request(t, app, http.MethodPost, "/api/v1/wallet", token, fiber.Map{"currency": "USD"})
	require.Equal(t, http.StatusCreated, status, "%v", created)

	status, dep := request(t, app, http.MethodPost, "/api/v1/payments/deposit", token, fiber.Map{
		"amount":          int64(5_000),
		"idempotency_key": "dep-1",
	})
	require.Equal(t, http.StatusCreated, status, "%v", dep)
	require.Equal(t, "completed", dep["status"])

	status, me := request(t, app, http.MethodGet, "/api/v1/wallet", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 5_000, me["balance"])
}

func TestBalanceHiddenFromOtherUsers(t *testing.T) {
	app := newTestApp(t)
	owner := registerUser(t, app, "dave@example.com")
	other := registerUser(t, app, "mallory@example.com")

	status, created := request(t, app, http.MethodPost, "/api/v1/wallet", owner, fiber.Map{"currency": "USD"})
	require.Equal(t, http.StatusCreated, status, "%v", created)
	walletID, ok := created["id"].(string)
	require.True(t, ok)

	status, _ = request(t, app, http.MethodGet, "/api/v1/wallet/"+walletID+"/balance", other, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, body := request(t, app, http.MethodGet, "/api/v1/wallet/"+walletID+"/balance", owner, nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	require.EqualValues(t, 0, body["balance"])
}

func TestDepositReplaySameKey(t *testing.T) {
	app := newTestApp(t)
	token := registerUser(t, app, "bob@example.com")

	body := fiber.Map{"amount": int64(2_500), "idempotency_key": "once"}
	status, first := request(t, app, http.MethodPost, "/api/v1/payments/deposit", token, body)
	require.Equal(t, http.StatusCreated, status, "%v", first)

	status, second := request(t, app, http.MethodPost, "/api/v1/payments/deposit", token, body)
	require.Equal(t, http.StatusCreated, status, "%v", second)
	require.Equal(t, true, second["replayed"])

	_, me := request(t, app, http.MethodGet, "/api/v1/wallet", token, nil)
	require.EqualValues(t, 2_500, me["balance"])
}

func TestProviderDepositSettlesViaWebhook(t *testing.T) {
	app := newTestApp(t)
	token := registerUser(t, app, "carol@example.com")

	status, opened := request(t, app, http.MethodPost, "/api/v1/payments/deposit/provider", token, fiber.Map{
		"amount":          int64(7_000),
		"idempotency_key": "topup-1",
	})
	require.Equal(t, http.StatusAccepted, status, "%v", opened)
	require.Equal(t, "pending", opened["status"])
	providerTxID, ok := opened["provider_tx_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, providerTxID)

	// Nothing credited until the provider confirms.
	_, me := request(t, app, http.MethodGet, "/api/v1/wallet", token, nil)
	require.EqualValues(t, 0, me["balance"])

	status, settled := request(t, app, http.MethodPost, "/api/v1/payments/webhook", "", fiber.Map{
		"provider_tx_id": providerTxID,
		"status":         "PAID",
	})
	require.Equal(t, http.StatusOK, status, "%v", settled)
	require.Equal(t, "completed", settled["status"])

	_, me = request(t, app, http.MethodGet, "/api/v1/wallet", token, nil)
	require.EqualValues(t, 7_000, me["balance"])

	// Duplicate delivery is answered with the current record, no double credit.
	status, dup := request(t, app, http.MethodPost, "/api/v1/payments/webhook", "", fiber.Map{
		"provider_tx_id": providerTxID,
		"status":         "PAID",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "completed", dup["status"])
	_, me = request(t, app, http.MethodGet, "/api/v1/wallet", token, nil)
	require.EqualValues(t, 7_000, me["balance"])
}
