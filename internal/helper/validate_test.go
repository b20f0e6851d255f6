package helper

import (
	"testing"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(dto.UserLogin{Email: "a@example.com", Password: "x"}))

	err := Validate(dto.UserLogin{Email: "nope"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "Email must satisfy email")
		assert.Contains(t, err.Error(), "Password must satisfy required")
	}

	err = Validate(dto.CreateUserRequest{
		Email: "a@example.com", Password: "longenough", FullName: "A", Role: "ADMIN",
	})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "Role must satisfy oneof=IMMIGRATION INSTITUTION")
	}
}
