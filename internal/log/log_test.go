package log

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeUser string

func (u fakeUser) UserID() string { return string(u) }

func TestInit(t *testing.T) {
	restore := Set(nil)
	defer restore()

	t.Run("Production", func(t *testing.T) {
		require.NoError(t, Init("production", ""))
		assert.NotNil(t, L())
	})

	t.Run("Development with file", func(t *testing.T) {
		require.NoError(t, Init("development", filepath.Join(t.TempDir(), "bookfair.log")))
		assert.NotNil(t, L())
	})
}

func TestLWithoutInit(t *testing.T) {
	restore := Set(nil)
	defer restore()

	assert.NotPanics(t, func() {
		L().Info("dropped")
		Sync()
	})
}

func TestRequestFields(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	restore := Set(zap.New(core))
	defer restore()

	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/cart", func(c *fiber.Ctx) error {
		c.Locals("user", fakeUser("u-asha"))
		Audit(c, "cart.add", map[string]any{"book_id": "bk-001"})
		Security(c, "access.denied.role", nil)
		Error(c, "cart.load", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/cart", nil), -1)
	require.NoError(t, err)

	logs := observed.TakeAll()
	require.Len(t, logs, 3)

	audit := logs[0].ContextMap()
	assert.Equal(t, "cart.add", logs[0].Message)
	assert.Equal(t, "audit", audit["kind"])
	assert.Equal(t, "bk-001", audit["book_id"])
	assert.Equal(t, "u-asha", audit["user_id"])
	assert.Equal(t, "/cart", audit["path"])
	assert.NotEmpty(t, audit["req_id"])

	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
	assert.Equal(t, "security", logs[1].ContextMap()["kind"])

	assert.Equal(t, zapcore.ErrorLevel, logs[2].Level)
	assert.Equal(t, "boom", logs[2].ContextMap()["error"])
}

func TestInfoWithoutContext(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := Set(zap.New(core))
	defer restore()

	Info(nil, "server.start", map[string]any{"port": "8080"})

	logs := observed.TakeAll()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "8080", fields["port"])
	_, ok := fields["req_id"]
	assert.False(t, ok)
}
