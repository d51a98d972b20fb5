package checker

import (
	"strings"
	"time"
)

// SenderRef is a sender described by the host: identity, granted
// permissions and the flags the checker consults.
type SenderRef struct {
	PlayerID    string    `json:"id"`
	PlayerName  string    `json:"name"`
	Permissions []string  `json:"permissions,omitempty"`
	Muted       bool      `json:"muted,omitempty"`
	Joined      time.Time `json:"joined_at,omitempty"`
}

func (s *SenderRef) ID() string   { return s.PlayerID }
func (s *SenderRef) Name() string { return s.PlayerName }

// HasPermission matches granted permissions exactly or by wildcard:
// "chatguard.bypass.*" grants every permission below chatguard.bypass and
// "*" grants everything. A leading "-" revokes.
func (s *SenderRef) HasPermission(permission string) bool {
	permission = strings.ToLower(permission)
	if permission == "" {
		return false
	}
	granted := false
	for _, p := range s.Permissions {
		p = strings.ToLower(strings.TrimSpace(p))
		negated := strings.HasPrefix(p, "-")
		p = strings.TrimPrefix(p, "-")
		if !permissionMatches(p, permission) {
			continue
		}
		if negated {
			return false
		}
		granted = true
	}
	return granted
}

func (s *SenderRef) IsMuted() bool        { return s.Muted }
func (s *SenderRef) JoinedAt() time.Time { return s.Joined }

func permissionMatches(granted, wanted string) bool {
	if granted == "*" || granted == wanted {
		return true
	}
	if prefix, ok := strings.CutSuffix(granted, ".*"); ok {
		return strings.HasPrefix(wanted, prefix+".")
	}
	return false
}

// muteAware and joinAware are optional sender capabilities.
type muteAware interface {
	IsMuted() bool
}

type joinAware interface {
	JoinedAt() time.Time
}
