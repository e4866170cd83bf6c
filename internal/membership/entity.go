// AngelaMos | 2026
// entity.go

package membership

import (
	"time"
)

type User struct {
	ID                    string     `db:"id"`
	Username              string     `db:"username"`
	Email                 *string    `db:"email"`
	PasswordHash          string     `db:"password_hash"`
	Role                  string     `db:"role"`
	SubscriptionStatus    string     `db:"subscription_status"`
	SubscriptionType      string     `db:"subscription_type"`
	SubscriptionStartDate *time.Time `db:"subscription_start_date"`
	SubscriptionEndDate   *time.Time `db:"subscription_end_date"`
	TokenVersion          int        `db:"token_version"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (u *User) IsMember() bool {
	return u.Role == RoleMember
}

func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

const (
	RoleMember    = "member"
	RoleLibrarian = "librarian"
	RoleAttendant = "attendant"
	RoleManager   = "manager"
)

func IsStaffRole(role string) bool {
	return role == RoleLibrarian || role == RoleAttendant || role == RoleManager
}

func IsValidRole(role string) bool {
	return role == RoleMember || IsStaffRole(role)
}

// Subscription states. StatusNotApplicable is carried by every staff
// account; the remaining states are only meaningful for members. Nothing
// computes StatusExpired yet; the schema accepts it for a renewal job.
const (
	StatusInactive      = "inactive"
	StatusPending       = "pending"
	StatusActive        = "active"
	StatusExpired       = "expired"
	StatusNotApplicable = "n/a"
)

const (
	PlanMonthly = "monthly"
	PlanAnnual  = "annual"
	PlanNone    = "none"
)

func IsValidPlan(plan string) bool {
	return plan == PlanMonthly || plan == PlanAnnual
}
