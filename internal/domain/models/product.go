package models

// Статусы товара.
const (
	ProductOnSale  = "ON_SALE"
	ProductOffSale = "OFF_SALE"
)

// Product представляет товар продавца. Stock никогда не уходит в минус:
// резервирование выполняется условным UPDATE в хранилище.
type Product struct {
	ID         int64
	SellerID   int64
	Name       string
	PriceCents int64 // цена за единицу в копейках
	Stock      int
	Status     string // ON_SALE или OFF_SALE
}
