package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "Cikgu Asyraf", EscapeMarkdown("Cikgu Asyraf"))
	assert.Equal(t, `Pn\_Siti \*B\* \[x] 'y'`, EscapeMarkdown("Pn_Siti *B* [x] `y`"))
}
