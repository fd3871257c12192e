// Package roster resolves notification recipients. The platform's user
// directory is an external collaborator; this package specifies only the
// boundary and ships a config-backed reference implementation.
package roster

import (
	"context"
	"fmt"
)

// Directory answers who should receive alerts right now. Implementations
// must return the currently active rosters; the escalation path re-queries
// on every critical event.
type Directory interface {
	// ActiveAdmins returns addresses of all currently active administrators.
	ActiveAdmins(ctx context.Context) ([]string, error)

	// SecurityTeam returns addresses of the security-team roster.
	SecurityTeam(ctx context.Context) ([]string, error)
}

// StaticDirectory serves rosters from configuration. It is the reference
// implementation for deployments without a directory service.
type StaticDirectory struct {
	admins   []string
	security []string
}

// NewStaticDirectory creates a Directory over fixed rosters.
func NewStaticDirectory(admins, security []string) (*StaticDirectory, error) {
	if len(admins) == 0 {
		return nil, fmt.Errorf("roster: admin roster is empty")
	}
	if len(security) == 0 {
		return nil, fmt.Errorf("roster: security-team roster is empty")
	}
	return &StaticDirectory{
		admins:   append([]string(nil), admins...),
		security: append([]string(nil), security...),
	}, nil
}

func (d *StaticDirectory) ActiveAdmins(_ context.Context) ([]string, error) {
	return append([]string(nil), d.admins...), nil
}

func (d *StaticDirectory) SecurityTeam(_ context.Context) ([]string, error) {
	return append([]string(nil), d.security...), nil
}
