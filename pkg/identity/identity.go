// Package identity resolves loosely specified targets (numeric ids or display
// names) into canonical user ids and classifies users as known or unknown.
//
// Lookups are best effort: failures are logged and reported as "not found",
// never returned as fatal errors.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

// ErrUserNotFound is returned when a display name cannot be resolved.
var ErrUserNotFound = errors.New("user not found")

// Target is either a numeric user id or a display name, never both.
type Target struct {
	ID   string
	Name string
}

// ParseTarget classifies raw input. ASCII digit strings are ids; anything
// else non-empty is a display name.
func ParseTarget(raw string) Target {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}
	}
	if IsNumericID(raw) {
		return Target{ID: raw}
	}
	return Target{Name: raw}
}

func (t Target) IsEmpty() bool { return t.ID == "" && t.Name == "" }

func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// IsNumericID reports whether s is a non-empty run of ASCII digits.
func IsNumericID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Resolver answers identity questions against the host directory and stream
// registry.
type Resolver struct {
	dir     host.Directory
	streams host.StreamRegistry
}

func NewResolver(dir host.Directory, streams host.StreamRegistry) *Resolver {
	return &Resolver{dir: dir, streams: streams}
}

// Resolve turns a target into a canonical user id. Names that cannot be
// resolved yield ErrUserNotFound; they are never reused as ids.
func (r *Resolver) Resolve(ctx context.Context, platform string, t Target) (string, error) {
	switch {
	case t.ID != "":
		return t.ID, nil
	case t.Name != "":
		id, ok := r.ResolveIDByName(ctx, platform, t.Name)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUserNotFound, t.Name)
		}
		return id, nil
	default:
		return "", ErrUserNotFound
	}
}

// ResolveIDByName finds the profile registered under a display name and
// returns its stored user id.
func (r *Resolver) ResolveIDByName(ctx context.Context, platform, name string) (string, bool) {
	personID, ok, err := r.dir.PersonIDByName(ctx, name)
	if err != nil {
		logger.ErrorCF("identity", "Name lookup failed", map[string]any{
			"platform": platform,
			"name":     name,
			"error":    err.Error(),
		})
		return "", false
	}
	if !ok {
		logger.DebugCF("identity", "No profile for name", map[string]any{"name": name})
		return "", false
	}

	v, ok, err := r.dir.PersonValue(ctx, personID, host.AttrUserID)
	if err != nil {
		logger.ErrorCF("identity", "Reading user_id failed", map[string]any{
			"person_id": string(personID),
			"error":     err.Error(),
		})
		return "", false
	}
	id := stringify(v)
	if !ok || id == "" {
		logger.DebugCF("identity", "Profile has no user_id", map[string]any{
			"name":      name,
			"person_id": string(personID),
		})
		return "", false
	}
	return id, true
}

// IsKnownUser reports whether the user has a profile or an existing private
// stream. Either signal is enough; a failing lookup counts as "no".
func (r *Resolver) IsKnownUser(ctx context.Context, platform, userID string) bool {
	if r.hasProfile(ctx, platform, userID) {
		return true
	}

	s, err := r.streams.StreamByUser(ctx, userID, platform)
	if err != nil {
		logger.DebugCF("identity", "Stream check failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return false
	}
	if s != nil {
		logger.DebugCF("identity", "Private stream exists, treating user as known", map[string]any{
			"user_id": userID,
		})
		return true
	}
	return false
}

func (r *Resolver) hasProfile(ctx context.Context, platform, userID string) bool {
	n, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || n < 0 {
		logger.DebugCF("identity", "User id is not numeric", map[string]any{"user_id": userID})
		return false
	}
	_, ok, err := r.dir.PersonID(ctx, platform, n)
	if err != nil {
		logger.DebugCF("identity", "Profile check failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return false
	}
	return ok
}

// Nickname returns the stored nickname for a user, or fallback when there is
// none or the lookup fails.
func (r *Resolver) Nickname(ctx context.Context, platform, userID, fallback string) string {
	n, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	personID, ok, err := r.dir.PersonID(ctx, platform, n)
	if err != nil || !ok {
		if err != nil {
			logger.WarnCF("identity", "Nickname lookup failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
		return fallback
	}
	v, ok, err := r.dir.PersonValue(ctx, personID, host.AttrNickname)
	if err != nil || !ok {
		return fallback
	}
	if nick := stringify(v); nick != "" {
		return nick
	}
	return fallback
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
