package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyledger/backend/internal/interfaces/http/dto"
)

type lineInput struct {
	Name   string          `json:"name" binding:"required,max=5"`
	Amount decimal.Decimal `json:"amount" binding:"gte=0"`
}

type billInput struct {
	Email string      `json:"email" binding:"omitempty,email"`
	Lines []lineInput `json:"lines" binding:"required,min=1,dive"`
}

func bindDetails(t *testing.T, body string) ([]dto.ValidationDetail, error) {
	t.Helper()
	SetupValidator()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var in billInput
	err := c.ShouldBindJSON(&in)
	return ValidationDetails(err), err
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestValidationDetails(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		details, err := bindDetails(t, `{"lines":[{"name":"Water","amount":"12.50"}]}`)
		require.NoError(t, err)
		assert.Nil(t, details)
	})

	t.Run("names fields by json path", func(t *testing.T) {
		details, err := bindDetails(t, `{"email":"nope","lines":[{"name":"Maintenance","amount":"1"}]}`)
		require.Error(t, err)

		fields := map[string]string{}
		for _, d := range details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid email format", fields["email"])
		assert.Equal(t, "Must be at most 5 characters", fields["lines[0].name"])
	})

	t.Run("negative decimal rejected", func(t *testing.T) {
		details, err := bindDetails(t, `{"lines":[{"name":"Water","amount":"-1"}]}`)
		require.Error(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, "lines[0].amount", details[0].Field)
		assert.Equal(t, "Must be greater than or equal to 0", details[0].Message)
	})

	t.Run("empty list", func(t *testing.T) {
		details, err := bindDetails(t, `{"lines":[]}`)
		require.Error(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, "Must contain at least 1 entries", details[0].Message)
	})

	t.Run("wrong json type", func(t *testing.T) {
		details, err := bindDetails(t, `{"email":12,"lines":[{"name":"Water","amount":"1"}]}`)
		require.Error(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, "email", details[0].Field)
	})

	t.Run("malformed json has no details", func(t *testing.T) {
		details, err := bindDetails(t, `{"lines":`)
		require.Error(t, err)
		assert.Nil(t, details)
	})
}
