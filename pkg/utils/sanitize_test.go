package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "a@x.com", SanitizeIdentifier("  A@X.com "))
	assert.Equal(t, "JohnDoe", SanitizeIdentifier(" JohnDoe "))
	assert.Equal(t, "john", SanitizeIdentifier("<b>john</b>"))
}

func TestSanitizePhone(t *testing.T) {
	assert.Equal(t, "+94771234567", SanitizePhone(" +94 (77) 123-4567 "))
}

func TestIsEmailIdentifier(t *testing.T) {
	assert.True(t, IsEmailIdentifier("a@x.com"))
	assert.False(t, IsEmailIdentifier("alice"))
}
