// Package session keeps the logged-in user id in a server-side session
// referenced by a cookie.
package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

const (
	keyUserID    = "user_id"
	keyExpiresAt = "expires_at"
	keyFlashes   = "flashes"
)

// Config configures the session cookie and its storage.
type Config struct {
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
	// Storage defaults to Fiber's in-memory storage when nil.
	Storage fiber.Storage
}

// Manager logs users in and out and carries one-shot flash messages.
//
// Sessions expire a fixed TTL after login. Activity does not extend them.
type Manager struct {
	store *session.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a session store from cfg.
func NewManager(cfg Config) *Manager {
	storeCfg := session.Config{
		Expiration:     cfg.TTL,
		KeyLookup:      "cookie:" + cfg.CookieName,
		CookiePath:     "/",
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		KeyGenerator:   uuid.NewString,
	}
	if cfg.Storage != nil {
		storeCfg.Storage = cfg.Storage
	}

	return &Manager{
		store: session.New(storeCfg),
		ttl:   cfg.TTL,
		now:   time.Now,
	}
}

// Login binds userID to a fresh session id and sets the cookie.
func (m *Manager) Login(c *fiber.Ctx, userID uint) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}

	sess.Set(keyUserID, userID)
	sess.Set(keyExpiresAt, m.now().Add(m.ttl).Unix())
	sess.SetExpiry(m.ttl)
	return sess.Save()
}

// Logout removes the session from storage and expires the cookie.
func (m *Manager) Logout(c *fiber.Ctx) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

// CurrentUserID returns the logged-in user id. Expired sessions are destroyed.
func (m *Manager) CurrentUserID(c *fiber.Ctx) (uint, bool, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return 0, false, err
	}
	if sess.Fresh() {
		return 0, false, nil
	}

	userID, ok := sess.Get(keyUserID).(uint)
	if !ok || userID == 0 {
		return 0, false, nil
	}
	if m.remaining(sess) <= 0 {
		return 0, false, sess.Destroy()
	}
	return userID, true, nil
}

// AddFlash queues a message for the next rendered page.
func (m *Manager) AddFlash(c *fiber.Ctx, message string) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return err
	}

	flashes, _ := sess.Get(keyFlashes).([]string)
	sess.Set(keyFlashes, append(flashes, message))
	return m.save(sess)
}

// Flashes returns and clears queued messages.
func (m *Manager) Flashes(c *fiber.Ctx) ([]string, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return nil, err
	}
	if sess.Fresh() {
		return nil, nil
	}

	flashes, _ := sess.Get(keyFlashes).([]string)
	if len(flashes) == 0 {
		return nil, nil
	}
	sess.Delete(keyFlashes)
	return flashes, m.save(sess)
}

// Reset drops every stored session.
func (m *Manager) Reset() error {
	return m.store.Reset()
}

// save persists sess without pushing a logged-in session past its login TTL.
func (m *Manager) save(sess *session.Session) error {
	if _, ok := sess.Get(keyUserID).(uint); ok {
		remaining := m.remaining(sess)
		if remaining <= 0 {
			return sess.Destroy()
		}
		sess.SetExpiry(remaining)
	}
	return sess.Save()
}

func (m *Manager) remaining(sess *session.Session) time.Duration {
	expiresAt, ok := sess.Get(keyExpiresAt).(int64)
	if !ok {
		return 0
	}
	return time.Unix(expiresAt, 0).Sub(m.now())
}
