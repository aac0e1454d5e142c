package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripANSIRemovesColorCodes(t *testing.T) {
	in := []byte("\x1b[31mred text\x1b[0m plain")
	assert.Equal(t, "red text plain", string(stripANSI(in)))
}

func TestStripANSILeavesPlainTextAlone(t *testing.T) {
	in := []byte("nothing to strip here")
	assert.Equal(t, "nothing to strip here", string(stripANSI(in)))
}
