// AngelaMos | 2026
// dto.go

package membership

import (
	"time"
)

type RegisterRequest struct {
	Username         string `json:"username"          validate:"required,min=3,max=80"`
	Email            string `json:"email,omitempty"   validate:"omitempty,email,max=120"`
	Password         string `json:"password"          validate:"required,min=6,max=128"`
	ConfirmPassword  string `json:"confirm_password"  validate:"required,eqfield=Password"`
	SubscriptionType string `json:"subscription_type" validate:"required,oneof=monthly annual"`
}

// PaymentRequest mirrors the simulated checkout form. Card fields are
// accepted so clients can post the full form, and are never read.
type PaymentRequest struct {
	SubscriptionType string `json:"subscription_type" validate:"required,oneof=monthly annual"`
	CardholderName   string `json:"cardholder_name,omitempty"`
	CardNumber       string `json:"card_number,omitempty"`
	ExpiryDate       string `json:"expiry_date,omitempty"`
	CVC              string `json:"cvc,omitempty"`
}

type CreateStaffRequest struct {
	Username string `json:"username"        validate:"required,min=3,max=80"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=120"`
	Password string `json:"password"        validate:"required,min=6,max=128"`
	Role     string `json:"role"            validate:"required,oneof=librarian attendant"`
}

type PlanDetails struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

var Plans = map[string]PlanDetails{
	PlanMonthly: {Name: "Monthly", Price: "5.00"},
	PlanAnnual:  {Name: "Annual", Price: "50.00"},
}

type UserResponse struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	Email                 *string    `json:"email,omitempty"`
	Role                  string     `json:"role"`
	SubscriptionStatus    string     `json:"subscription_status"`
	SubscriptionType      string     `json:"subscription_type"`
	SubscriptionStartDate *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                    u.ID,
		Username:              u.Username,
		Email:                 u.Email,
		Role:                  u.Role,
		SubscriptionStatus:    u.SubscriptionStatus,
		SubscriptionType:      u.SubscriptionType,
		SubscriptionStartDate: u.SubscriptionStartDate,
		SubscriptionEndDate:   u.SubscriptionEndDate,
		CreatedAt:             u.CreatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(&u))
	}
	return responses
}
