package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of CRM roles.
type Role string

const (
	RoleSystemsAdmin    Role = "SYSTEMS_ADMIN"
	RoleManagementAdmin Role = "MANAGEMENT_ADMIN"
	RoleTeamSupervisor  Role = "TEAM_SUPERVISOR"
	RoleCommercial      Role = "COMMERCIAL"
	RoleBackOffice      Role = "BACK_OFFICE"
)

// Capabilities lists what a role may do with portfolios.
type Capabilities struct {
	CanAssignGlobally bool
	CanSuperviseTeam  bool
	CanClassify       bool
	CanHoldPortfolio  bool
}

var capabilityTable = map[Role]Capabilities{
	RoleSystemsAdmin:    {CanAssignGlobally: true},
	RoleManagementAdmin: {CanAssignGlobally: true},
	RoleTeamSupervisor:  {CanSuperviseTeam: true, CanClassify: true, CanHoldPortfolio: true},
	RoleCommercial:      {CanClassify: true, CanHoldPortfolio: true},
	RoleBackOffice:      {},
}

// CapabilitiesOf returns the capability set for role. Unknown roles get none.
func CapabilitiesOf(role Role) Capabilities {
	return capabilityTable[role]
}

// CanAssign reports whether the role may run bulk assignments at all.
func (c Capabilities) CanAssign() bool {
	return c.CanAssignGlobally || c.CanSuperviseTeam
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := capabilityTable[r]
	return ok
}

// ParseRole accepts role names case-insensitively.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// User is a CRM user as seen by the ownership core. Lifecycle is owned by the user directory.
type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Role        Role
	TeamID      *uuid.UUID
	ReportsToID *uuid.UUID
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Capabilities is shorthand for CapabilitiesOf(u.Role).
func (u *User) Capabilities() Capabilities {
	if u == nil {
		return Capabilities{}
	}
	return CapabilitiesOf(u.Role)
}
