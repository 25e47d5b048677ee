package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstReminder(t *testing.T) {
	msg := FirstReminder("Maria", "15/03/2026", "14:30", "Dr. Souza")

	assert.Contains(t, msg, "Maria")
	assert.Contains(t, msg, "15/03/2026")
	assert.Contains(t, msg, "14:30")
	assert.Contains(t, msg, "Dr. Souza")
	assert.Contains(t, msg, "SIM")
	assert.Contains(t, msg, "CANCELAR")
}

func TestSecondReminder(t *testing.T) {
	msg := SecondReminder("Maria", "15/03/2026", "14:30", "Dr. Souza")

	assert.Contains(t, msg, "hoje")
	assert.Contains(t, msg, "14:30")
	assert.NotContains(t, msg, "SIM")
}

func TestConfirmation(t *testing.T) {
	msg := Confirmation("João", "15/03/2026", "14:30", "Dr. Souza")

	assert.Contains(t, msg, "João")
	assert.Contains(t, msg, "confirmada")
}

func TestCancellation(t *testing.T) {
	msg := Cancellation("João", "15/03/2026", "14:30", "Dr. Souza")

	assert.Contains(t, msg, "desmarcada")
	assert.Contains(t, msg, "reagendar")
}

func TestRenderingIsDeterministic(t *testing.T) {
	a := FirstReminder("Ana", "01/01/2026", "09:00", "Dra. Lima")
	b := FirstReminder("Ana", "01/01/2026", "09:00", "Dra. Lima")
	assert.Equal(t, a, b)
}
