package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `json:"clientName" validate:"required"`
	Date  string `json:"eventDate" validate:"required,datetime=2006-01-02"`
	Email string `json:"clientEmail" validate:"omitempty,email"`
	Count int    `json:"guestCount" validate:"gte=0"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(sample{Name: "Alice", Date: "2025-12-05"}))

	errs := Validate(sample{Date: "05/12/2025", Email: "nope", Count: -1})
	assert.Equal(t, map[string]string{
		"clientName":  "required",
		"eventDate":   "datetime",
		"clientEmail": "email",
		"guestCount":  "gte",
	}, errs)
}

func TestVar(t *testing.T) {
	assert.True(t, Var("", "omitempty,email"))
	assert.True(t, Var("admin@example.com", "omitempty,email"))
	assert.False(t, Var("admin", "omitempty,email"))
}
