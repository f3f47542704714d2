package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLast10(t *testing.T) {
	assert.Equal(t, "5551235680", Last10("+15551235680"))
	assert.Equal(t, "5551235680", Last10("5551235680"))
	assert.Equal(t, "", Last10("no digits here"))
}

func TestLast4(t *testing.T) {
	assert.Equal(t, "5680", Last4("+15551235680"))
}

func TestNormalizeE164US(t *testing.T) {
	assert.Equal(t, "+15551235680", NormalizeE164US("5551235680"))
	assert.Equal(t, "+15551235680", NormalizeE164US("15551235680"))
	assert.Equal(t, "+15551235680", NormalizeE164US("+15551235680"))
}

func TestNormalizeE164USRejectsUnparseable(t *testing.T) {
	assert.Equal(t, "", NormalizeE164US(""))
	assert.Equal(t, "", NormalizeE164US("123"))
	assert.Equal(t, "", NormalizeE164US("not a number"))
	assert.Equal(t, "", NormalizeE164US("+"))
	assert.Equal(t, "", NormalizeE164US("25551235680"))
}
