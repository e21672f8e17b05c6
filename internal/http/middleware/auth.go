package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

const actorKey = "actor"

// Claims is the bearer token payload.
type Claims struct {
	AccountID string `json:"accountId"`
	Role      string `json:"role"`
	jwt.StandardClaims
}

// IssueToken signs an HS256 token for accountID. ttl <= 0 means no expiry.
func IssueToken(secret, accountID string, role models.Role, ttl time.Duration) (string, error) {
	claims := &Claims{
		AccountID: accountID,
		Role:      string(role),
		StandardClaims: jwt.StandardClaims{
			IssuedAt: time.Now().Unix(),
			Subject:  accountID,
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenStr and returns its claims.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Authenticate resolves the bearer token to an active account and stores the
// caller as a ledger.Actor. The role comes from the account, not the token.
// Store failures are logged and answered with a generic 500.
func Authenticate(secret string, store interfaces.LedgerStore, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
		}

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		account, err := store.GetAccount(c.UserContext(), claims.AccountID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Account not found"})
			}
			logger.Error("load authenticated account",
				zap.String("path", c.Path()),
				zap.String("account_id", claims.AccountID),
				zap.Error(err),
			)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		if !account.IsActive {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Account is inactive"})
		}

		c.Locals(actorKey, ledger.Actor{AccountID: account.ID, Role: account.Role})
		return c.Next()
	}
}

// RequireRole rejects callers whose role is not role. It must run after
// Authenticate.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok || actor.Role != role {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
		}
		return c.Next()
	}
}

// ActorFrom returns the caller stored by Authenticate.
func ActorFrom(c *fiber.Ctx) (ledger.Actor, bool) {
	actor, ok := c.Locals(actorKey).(ledger.Actor)
	return actor, ok
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for EventSource clients that cannot set headers.
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}
