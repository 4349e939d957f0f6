package accounts

import "time"

// PlanFree is the plan tag every new account starts on.
const PlanFree = "free"

// Account is a registered user. PasswordHash is empty for Google-only accounts.
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Plan          string    `json:"plan"`
	CreditBalance int       `json:"creditBalance"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
