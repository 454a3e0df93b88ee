package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	u := URL("Ada", "Lovelace")
	assert.Contains(t, u, "ui-avatars.com")
	assert.Contains(t, u, "name=Ada+Lovelace")
}

func TestURLEmptyName(t *testing.T) {
	u := URL(" ", "")
	assert.Contains(t, u, "name=%3F")
}
