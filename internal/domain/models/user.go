package models

// User представляет пользователя платформы
type User struct {
	ID          int64
	Email       string
	PassHash    []byte
	Role        string // user или admin
	CreditScore int    // кредитный рейтинг, проверяется при создании заказа
}
