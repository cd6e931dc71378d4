package models_test

import (
	"testing"

	"github.com/linemk/second-market/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition_AllowedPaths(t *testing.T) {
	// Разрешённые переходы по таблице.
	allowed := []struct {
		from, to models.OrderStatus
	}{
		{models.StatusPendingPayment, models.StatusPendingShipment},
		{models.StatusPendingPayment, models.StatusCancelled},
		{models.StatusPendingShipment, models.StatusShipped},
		{models.StatusPendingShipment, models.StatusCancelled},
		{models.StatusShipped, models.StatusCompleted},
		{models.StatusShipped, models.StatusReturned},
	}
	for _, tc := range allowed {
		assert.True(t, models.CanTransition(tc.from, tc.to), "expected %s -> %s to be allowed", tc.from, tc.to)
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	terminals := []models.OrderStatus{models.StatusCompleted, models.StatusCancelled, models.StatusReturned}
	targets := []models.OrderStatus{
		models.StatusPendingPayment, models.StatusPendingShipment, models.StatusShipped,
		models.StatusCompleted, models.StatusCancelled, models.StatusReturned,
	}
	for _, from := range terminals {
		assert.True(t, from.IsTerminal())
		for _, to := range targets {
			assert.False(t, models.CanTransition(from, to), "terminal %s must not transition to %s", from, to)
		}
	}
}

func TestCanTransition_NoSkipping(t *testing.T) {
	// Нельзя перепрыгнуть через статус.
	assert.False(t, models.CanTransition(models.StatusPendingPayment, models.StatusShipped))
	assert.False(t, models.CanTransition(models.StatusPendingPayment, models.StatusCompleted))
	assert.False(t, models.CanTransition(models.StatusPendingShipment, models.StatusCompleted))
	// И вернуться назад тоже нельзя.
	assert.False(t, models.CanTransition(models.StatusShipped, models.StatusPendingShipment))
}

func TestCanActorTransition(t *testing.T) {
	order := &models.Order{BuyerID: 1, SellerID: 2}

	buyer := models.Actor{ID: 1, Role: models.RoleUser}
	seller := models.Actor{ID: 2, Role: models.RoleUser}
	stranger := models.Actor{ID: 3, Role: models.RoleUser}
	admin := models.Actor{ID: 99, Role: models.RoleAdmin}

	// Отмена: покупатель или админ.
	assert.True(t, models.CanActorTransition(buyer, order, models.StatusCancelled))
	assert.True(t, models.CanActorTransition(admin, order, models.StatusCancelled))
	assert.False(t, models.CanActorTransition(seller, order, models.StatusCancelled))
	assert.False(t, models.CanActorTransition(stranger, order, models.StatusCancelled))

	// Отгрузка: только продавец.
	assert.True(t, models.CanActorTransition(seller, order, models.StatusShipped))
	assert.False(t, models.CanActorTransition(buyer, order, models.StatusShipped))
	assert.False(t, models.CanActorTransition(admin, order, models.StatusShipped))

	// Получение и возврат: только покупатель.
	assert.True(t, models.CanActorTransition(buyer, order, models.StatusCompleted))
	assert.False(t, models.CanActorTransition(seller, order, models.StatusCompleted))
	assert.True(t, models.CanActorTransition(buyer, order, models.StatusReturned))
	assert.False(t, models.CanActorTransition(stranger, order, models.StatusReturned))

	// В PENDING_SHIPMENT пользователи заказ не переводят — это делает оплата.
	assert.False(t, models.CanActorTransition(buyer, order, models.StatusPendingShipment))
	assert.False(t, models.CanActorTransition(admin, order, models.StatusPendingShipment))
}
