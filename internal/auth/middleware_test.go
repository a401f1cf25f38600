package auth

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/pkg/models"
)

const secret = "test-secret"

func newAuthApp(t *testing.T, systemKey string) *fiber.App {
	t.Helper()
	hash := ""
	if systemKey != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(systemKey), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(b)
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.NewDiscard())})
	app.Use(RequireAuth(secret, hash))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.JSON(MustActor(c)) })
	app.Get("/lawyers-only", RequireRole(models.ActorLawyer), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func whoami(t *testing.T, app *fiber.App, header, value string) (int, models.ActorContext) {
	t.Helper()
	req := httptest.NewRequest("GET", "/whoami", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var actor models.ActorContext
	if resp.StatusCode == fiber.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&actor))
	}
	return resp.StatusCode, actor
}

func Test_RequireAuth_Bearer(t *testing.T) {
	app := newAuthApp(t, "")
	id := uuid.New()

	tok, err := IssueToken(secret, id, models.ActorLawyer, time.Hour)
	require.NoError(t, err)

	code, actor := whoami(t, app, "Authorization", "Bearer "+tok)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, models.ActorContext{Role: models.ActorLawyer, ID: id}, actor)

	bad, err := IssueToken("other-secret", id, models.ActorLawyer, time.Hour)
	require.NoError(t, err)
	code, _ = whoami(t, app, "Authorization", "Bearer "+bad)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = whoami(t, app, "", "")
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func Test_RequireAuth_ExpiredToken(t *testing.T) {
	app := newAuthApp(t, "")
	claims := &Claims{
		Sub:  uuid.NewString(),
		Role: "client",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	code, _ := whoami(t, app, "Authorization", "Bearer "+tok)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func Test_RequireAuth_SystemKey(t *testing.T) {
	app := newAuthApp(t, "automation-key")

	code, actor := whoami(t, app, SystemKeyHeader, "automation-key")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, models.ActorSystem, actor.Role)

	code, _ = whoami(t, app, SystemKeyHeader, "guess")
	assert.Equal(t, fiber.StatusUnauthorized, code)

	// without a configured hash nobody can act as SYSTEM
	code, _ = whoami(t, newAuthApp(t, ""), SystemKeyHeader, "automation-key")
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func Test_IssueToken_RejectsSystem(t *testing.T) {
	_, err := IssueToken(secret, uuid.New(), models.ActorSystem, 0)
	assert.Error(t, err)
}

func Test_RequireRole(t *testing.T) {
	app := newAuthApp(t, "")
	for role, want := range map[models.Actor]int{
		models.ActorLawyer: fiber.StatusNoContent,
		models.ActorClient: fiber.StatusForbidden,
	} {
		tok, err := IssueToken(secret, uuid.New(), role, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/lawyers-only", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}

func Test_ErrorHandler_MapsDomainErrors(t *testing.T) {
	view := map[string]string{"status": "AWAITING_DOCUMENTS"}
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		reason  string
		hasCase bool
	}{
		{"invalid transition", models.InvalidTransition(models.StatusPending, models.StatusAccepted), 409, "INVALID_TRANSITION", "", false},
		{"forbidden", models.ErrNotCaseParticipant, 403, "FORBIDDEN", "", false},
		{"not found", models.ErrCaseNotFound, 404, "NOT_FOUND", "", false},
		{"conflict", models.ErrStaleVersion, 409, "CONFLICT", "", false},
		{"validation", errors.Wrap(models.ErrValidation, "bad ts"), 400, "VALIDATION_FAILED", "", false},
		{
			"guard with case",
			WithCase(models.NewGuardError(models.ReasonNoNewDocuments, "none"), view),
			422, "GUARD_NOT_SATISFIED", "NO_NEW_DOCUMENTS", true,
		},
		{
			"document locked",
			models.NewGuardError(models.ReasonDocumentsLocked, "frozen"),
			422, "DOCUMENT_LOCKED", "DOCUMENTS_LOCKED", false,
		},
		{"unexpected", errors.New("db exploded"), 500, "INTERNAL_SERVER_ERROR", "", false},
		{"fiber", fiber.NewError(fiber.StatusBadRequest, "invalid id"), 400, "BAD_REQUEST", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.NewDiscard())})
			app.Get("/", func(c *fiber.Ctx) error { return tc.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)

			var body struct {
				Error   bool            `json:"error"`
				Message string          `json:"message"`
				Code    string          `json:"code"`
				Reason  string          `json:"reason"`
				Case    json.RawMessage `json:"case"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.True(t, body.Error)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.reason, body.Reason)
			assert.Equal(t, tc.hasCase, len(body.Case) > 0)
			if tc.status == 500 {
				assert.NotContains(t, body.Message, "db exploded")
			}
		})
	}
}
