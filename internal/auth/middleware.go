package auth

import (
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// SystemKeyHeader carries the automation key of SYSTEM callers.
const SystemKeyHeader = "X-System-Key"

const actorKey = "actor"

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // user ID
	Role string `json:"role"` // "client" | "lawyer"
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// IssueToken signs a JWT for a client or lawyer. A zero ttl means 7 days.
func IssueToken(secret string, userID uuid.UUID, role models.Actor, ttl time.Duration) (string, error) {
	if role != models.ActorClient && role != models.ActorLawyer {
		return "", errors.Newf("tokens are issued to clients and lawyers, not %q", role)
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{
		Sub:  userID.String(),
		Role: strings.ToLower(string(role)),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// parseToken validates tokenStr and turns its claims into an actor.
func parseToken(secret, tokenStr string) (models.ActorContext, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return models.ActorContext{}, errors.Wrap(err, "parse token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return models.ActorContext{}, errors.New("unexpected claims type")
	}

	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return models.ActorContext{}, errors.Wrap(err, "subject is not a uuid")
	}
	role := models.Actor(strings.ToUpper(claims.Role))
	if role != models.ActorClient && role != models.ActorLawyer {
		return models.ActorContext{}, errors.Newf("role %q cannot hold a session", claims.Role)
	}
	return models.ActorContext{Role: role, ID: id}, nil
}

/* ============================== Middleware ============================== */

// RequireAuth accepts either a Bearer JWT (client or lawyer) or, when
// systemKeyHash is configured, the SYSTEM automation key. The resulting
// actor is stored in the request context.
func RequireAuth(secret, systemKeyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := c.Get(SystemKeyHeader); key != "" {
			if systemKeyHash == "" ||
				bcrypt.CompareHashAndPassword([]byte(systemKeyHash), []byte(key)) != nil {
				return fiber.ErrUnauthorized
			}
			c.Locals(actorKey, models.SystemActor())
			return c.Next()
		}

		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		actor, err := parseToken(secret, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// SetActor stores actor in the request context. Used by tests and by
// middleware that authenticates callers another way.
func SetActor(c *fiber.Ctx, actor models.ActorContext) {
	c.Locals(actorKey, actor)
}

// MustActor reads the authenticated actor from context or panics (programming error).
func MustActor(c *fiber.Ctx) models.ActorContext {
	if v, ok := c.Locals(actorKey).(models.ActorContext); ok {
		return v
	}
	panic(errors.New("actor not in context"))
}

// RequireRole ensures the authenticated actor has one of roles.
func RequireRole(roles ...models.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := MustActor(c).Role
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.ErrForbidden
	}
}

/* =========================== Error Formatting =========================== */

// CaseError carries the current case view alongside a rejected operation so
// the client can refresh without another request.
type CaseError struct {
	Err  error
	Case any
}

func (e *CaseError) Error() string { return e.Err.Error() }
func (e *CaseError) Unwrap() error { return e.Err }

// WithCase attaches view to err. A nil view leaves err unchanged.
func WithCase(err error, view any) error {
	if err == nil || view == nil {
		return err
	}
	return &CaseError{Err: err, Case: view}
}

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// domainStatus maps a domain error tag to its HTTP status.
func domainStatus(code string) int {
	switch code {
	case "VALIDATION_FAILED":
		return fiber.StatusBadRequest
	case "FORBIDDEN":
		return fiber.StatusForbidden
	case "NOT_FOUND":
		return fiber.StatusNotFound
	case "INVALID_TRANSITION", "CONFLICT":
		return fiber.StatusConflict
	case "GUARD_NOT_SATISFIED", "DOCUMENT_LOCKED":
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler returns the global Fiber error handler. Every error leaves
// with the same JSON shape; unexpected ones are logged and masked.
func ErrorHandler(log logger.AppLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Fiber errors carry status codes
		var fe *fiber.Error
		if errors.As(err, &fe) {
			msg := fe.Message
			if strings.TrimSpace(msg) == "" {
				msg = defaultMessage(fe.Code)
			}
			return c.Status(fe.Code).JSON(models.ErrorResponse{
				Code:    httpCodeToString(fe.Code),
				Error:   true,
				Message: msg,
			})
		}

		tag := models.CodeOf(err)
		status := domainStatus(tag)
		if status == fiber.StatusInternalServerError {
			log.Error("request failed", err,
				slog.String("method", c.Method()),
				slog.String("path", c.Path()))
			return c.Status(status).JSON(models.ErrorResponse{
				Code:    httpCodeToString(status),
				Error:   true,
				Message: fiber.ErrInternalServerError.Message,
			})
		}

		resp := models.ErrorResponse{Error: true, Code: tag, Message: err.Error()}
		if reason, ok := models.ReasonOf(err); ok {
			resp.Reason = string(reason)
		}
		var ce *CaseError
		if errors.As(err, &ce) {
			resp.Case = ce.Case
		}
		return c.Status(status).JSON(resp)
	}
}

func defaultMessage(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return fiber.ErrBadRequest.Message
	case fiber.StatusUnauthorized:
		return fiber.ErrUnauthorized.Message
	case fiber.StatusForbidden:
		return fiber.ErrForbidden.Message
	case fiber.StatusNotFound:
		return fiber.ErrNotFound.Message
	case fiber.StatusConflict:
		return fiber.ErrConflict.Message
	}
	return fiber.ErrInternalServerError.Message
}
