package log

import (
	"sort"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

// Init builds the global logger for env. logFile, when set, receives a copy
// of every entry.
func Init(env, logFile string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// L returns the global logger. It falls back to a no-op logger until Init runs.
func L() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Set swaps the global logger and returns a func restoring the previous one.
func Set(l *zap.Logger) (restore func()) {
	mu.Lock()
	prev := logger
	logger = l
	mu.Unlock()
	return func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	}
}

func Sync() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

// UserIDer is satisfied by the user value handlers keep in Locals("user").
type UserIDer interface{ UserID() string }

func requestFields(c *fiber.Ctx, action, kind string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, 8+len(fields))
	out = append(out, zap.String("action", action))
	if kind != "" {
		out = append(out, zap.String("kind", kind))
	}
	if c != nil {
		out = append(out,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			out = append(out, zap.String("req_id", rid))
		}
		if u, ok := c.Locals("user").(UserIDer); ok && u != nil {
			out = append(out, zap.String("user_id", u.UserID()))
		}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, action, "", fields)...)
}

// Audit records a state change made on behalf of a user.
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, action, "audit", fields)...)
}

// Security records denials, failed logins and throttling.
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, requestFields(c, action, "security", fields)...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	fs := requestFields(c, action, "", fields)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	L().Error(action, fs...)
}
