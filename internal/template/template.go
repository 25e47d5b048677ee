// Package template renders the WhatsApp message texts. All functions are
// pure: date and time arrive as already-formatted strings, locale
// formatting is the caller's concern.
package template

import "fmt"

// FirstReminder is the message sent 24 hours before the appointment.
// The patient is asked to reply SIM to confirm or CANCELAR to cancel.
func FirstReminder(name, date, timeOfDay, dentist string) string {
	return fmt.Sprintf(
		"Olá, %s! 🦷\n\n"+
			"Lembrete: você tem uma consulta amanhã, dia %s às %s, com %s.\n\n"+
			"Responda *SIM* para confirmar ou *CANCELAR* para desmarcar.",
		name, date, timeOfDay, dentist,
	)
}

// SecondReminder is the message sent 2 hours before a confirmed appointment.
func SecondReminder(name, date, timeOfDay, dentist string) string {
	return fmt.Sprintf(
		"Olá, %s! 🦷\n\n"+
			"Sua consulta com %s é hoje, dia %s às %s. Até logo!",
		name, dentist, date, timeOfDay,
	)
}

// Confirmation acknowledges a confirm-intent reply.
func Confirmation(name, date, timeOfDay, dentist string) string {
	return fmt.Sprintf(
		"Obrigado, %s! ✅\n\n"+
			"Sua consulta do dia %s às %s com %s está confirmada.",
		name, date, timeOfDay, dentist,
	)
}

// Cancellation acknowledges a cancel-intent reply.
func Cancellation(name, date, timeOfDay, dentist string) string {
	return fmt.Sprintf(
		"Tudo bem, %s.\n\n"+
			"Sua consulta do dia %s às %s com %s foi desmarcada. "+
			"Entre em contato com a clínica para reagendar.",
		name, date, timeOfDay, dentist,
	)
}
