package email

import (
	"context"
	"testing"

	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	subject, body, ok := Compose(kafka.VaultEvent{Type: kafka.EventCardSaved, Family: "visa", MaskedNumber: "**** **** **** 1111"})
	assert.True(t, ok)
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "**** **** **** 1111")

	_, _, ok = Compose(kafka.VaultEvent{Type: kafka.EventCardUpdated})
	assert.False(t, ok)
}

func TestSender_Send(t *testing.T) {
	assert.NoError(t, NewSender().Send(context.Background(), kafka.VaultEvent{Type: kafka.EventDefaultChanged, MaskedNumber: "**** **** **** 4242"}))
}
