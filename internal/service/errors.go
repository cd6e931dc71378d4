package service

import "errors"

// Ошибки бизнес-логики. Хендлеры сопоставляют их с HTTP-кодами через errors.Is;
// ошибки хранилища (ErrOrderNotFound, ErrInsufficientStock и т.д.) прокидываются
// сквозь сервисный слой через %w.
var (
	// ErrInvalidAmount — заявленная сумма не сходится с ожидаемой после приведения к копейкам.
	ErrInvalidAmount = errors.New("amount mismatch")
	// ErrProductUnavailable — товар снят с продажи.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrOwnProduct — покупатель пытается купить собственный товар.
	ErrOwnProduct = errors.New("cannot buy own product")
	// ErrBuyerIneligible — кредитный рейтинг покупателя ниже порога.
	ErrBuyerIneligible = errors.New("buyer ineligible")
	// ErrPermissionDenied — актор не авторизован для запрошенного перехода.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidTransition — переход не разрешён из текущего статуса заказа.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrBadSignature — подпись callback'а не сошлась; наружу уходит только общий отказ.
	ErrBadSignature = errors.New("invalid signature")
	// ErrInvalidCredentials — неверная пара логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
