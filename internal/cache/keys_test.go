package cache_test

import (
	"strings"
	"testing"

	"github.com/linemk/second-market/internal/cache"
	"github.com/stretchr/testify/assert"
)

func TestKeyFormats(t *testing.T) {
	assert.Equal(t, "order:detail:42", cache.OrderDetailKey(42))
	assert.Equal(t, "order:list:buyer:1:SHIPPED:2:20", cache.OrderListBuyerKey(1, "SHIPPED", 2, 20))
	assert.Equal(t, "order:list:seller:2::1:20", cache.OrderListSellerKey(2, "", 1, 20))
}

func TestListPrefixesCoverListKeys(t *testing.T) {
	// Инвалидация по префиксу должна накрывать любые страницы и фильтры
	assert.True(t, strings.HasPrefix(cache.OrderListBuyerKey(1, "SHIPPED", 2, 20), cache.OrderListBuyerPrefix(1)))
	assert.True(t, strings.HasPrefix(cache.OrderListBuyerKey(1, "", 1, 100), cache.OrderListBuyerPrefix(1)))
	assert.True(t, strings.HasPrefix(cache.OrderListSellerKey(2, "COMPLETED", 1, 20), cache.OrderListSellerPrefix(2)))

	// Но не чужие: префикс покупателя 1 не задевает покупателя 10
	assert.False(t, strings.HasPrefix(cache.OrderListBuyerKey(10, "", 1, 20), cache.OrderListBuyerPrefix(1)))
	// И не списки другой стороны
	assert.False(t, strings.HasPrefix(cache.OrderListSellerKey(1, "", 1, 20), cache.OrderListBuyerPrefix(1)))
}
