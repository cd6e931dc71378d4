package service

import "math"

// centsFromAmount переводит сумму из валютных единиц в копейки с округлением.
// Округление и поглощает погрешность float-представления: 0.1+0.2 и 0.3
// дают одни и те же копейки.
func centsFromAmount(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// amountFromCents — обратное преобразование для ответов API.
func amountFromCents(cents int64) float64 {
	return float64(cents) / 100
}

// amountsMatch сравнивает суммы после приведения к копейкам. Сравнение строгое:
// недоплата даже в одну копейку — это расхождение, а не допуск.
func amountsMatch(declared, expected int64) bool {
	return declared == expected
}
