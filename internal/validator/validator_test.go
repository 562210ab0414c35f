package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type choicePayload struct {
	Choice *int `json:"choice" binding:"required,choice"`
}

func bindBody(body string) map[string]string {
	gin.SetMode(gin.TestMode)
	Setup()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var p choicePayload
	return Bind(c, &p)
}

func TestBind_ChoiceTag(t *testing.T) {
	assert.Nil(t, bindBody(`{"choice":0}`))
	assert.Nil(t, bindBody(`{"choice":3}`))

	fields := bindBody(`{"choice":4}`)
	assert.Equal(t, "choice must be a choice index between 0 and 3", fields["choice"])

	fields = bindBody(`{}`)
	assert.Contains(t, fields, "choice")
}

func TestBind_SyntaxError(t *testing.T) {
	fields := bindBody(`{"choice":`)
	assert.Contains(t, fields, "detail")
}
