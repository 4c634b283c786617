package rest

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/metrics"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/tracing"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const userLocalKey = "user"

// Identity пользователь из токена. Токены выпускает внешний сервис входа,
// в claims лежат user_id и role.
type Identity struct {
	UserID int64
	Role   model.Role
}

func (i Identity) Is(role model.Role) bool {
	return i.Role == role
}

func (s *Server) requireAuth() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    []byte(s.cfg.JWTSecret),
		SigningMethod: "HS256",
		ContextKey:    userLocalKey,
		ErrorHandler:  jwtError,
	})
}

// optionalAuth пропускает запросы без заголовка Authorization
func (s *Server) optionalAuth() fiber.Handler {
	return jwtware.New(jwtware.Config{
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		SigningKey:    []byte(s.cfg.JWTSecret),
		SigningMethod: "HS256",
		ContextKey:    userLocalKey,
		ErrorHandler:  jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("unauthorized", "missing or malformed JWT", ""))
	}
	return c.Status(fiber.StatusUnauthorized).JSON(errorBody("unauthorized", "invalid or expired JWT", ""))
}

// identity достаёт пользователя из токена; ok=false для анонимного запроса
func identity(c *fiber.Ctx) (Identity, bool) {
	token, ok := c.Locals(userLocalKey).(*jwt.Token)
	if !ok || token == nil {
		return Identity{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, false
	}

	id, ok := claimInt(claims["user_id"])
	if !ok || id <= 0 {
		return Identity{}, false
	}
	role, _ := claims["role"].(string)

	return Identity{UserID: id, Role: model.Role(role)}, true
}

func claimInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// requireRole пропускает только указанные роли
func requireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, ok := identity(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody("unauthorized", "invalid token claims", ""))
		}
		for _, r := range roles {
			if who.Is(r) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(errorBody("forbidden", "role "+string(who.Role)+" may not call this endpoint", ""))
	}
}

// observe span, метрика длительности и лог ошибок сервера на каждый запрос
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()

	ctx, span := tracing.Tracer().Start(c.UserContext(), c.Method()+" "+c.Path())
	defer span.End()
	c.SetUserContext(ctx)

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	route := c.Route().Path

	span.SetAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	metrics.RequestDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Any("request_id", c.Locals("requestid")),
			zap.Error(err),
		)
	}

	return err
}
