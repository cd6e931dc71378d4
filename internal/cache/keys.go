package cache

import (
	"fmt"
	"time"
)

// Форматы ключей. Детальный кэш — по id заказа, списочные — по пользователю,
// фильтру и странице; инвалидация списков идёт по префиксу пользователя.
const (
	keyOrderDetail     = "order:detail:%d"
	keyOrderListBuyer  = "order:list:buyer:%d:%s:%d:%d"
	keyOrderListSeller = "order:list:seller:%d:%s:%d:%d"
	prefixOrderListFmt = "order:list:%s:%d:"
)

// TTL ограничивает устаревание записей, которые никто явно не инвалидировал
// (например, чтение во время падения процесса между commit и delete).
var (
	TTLOrderDetail = 10 * time.Minute
	TTLOrderList   = 2 * time.Minute
)

func OrderDetailKey(orderID int64) string {
	return fmt.Sprintf(keyOrderDetail, orderID)
}

func OrderListBuyerKey(buyerID int64, status string, page, pageSize int) string {
	return fmt.Sprintf(keyOrderListBuyer, buyerID, status, page, pageSize)
}

func OrderListSellerKey(sellerID int64, status string, page, pageSize int) string {
	return fmt.Sprintf(keyOrderListSeller, sellerID, status, page, pageSize)
}

func OrderListBuyerPrefix(buyerID int64) string {
	return fmt.Sprintf(prefixOrderListFmt, "buyer", buyerID)
}

func OrderListSellerPrefix(sellerID int64) string {
	return fmt.Sprintf(prefixOrderListFmt, "seller", sellerID)
}
