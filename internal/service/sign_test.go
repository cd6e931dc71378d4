package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignPayload_Deterministic(t *testing.T) {
	params := map[string]string{
		"orderNo":     "ORD-1",
		"payAmount":   "199.98",
		"payNo":       "PAY-42",
		"tradeStatus": "SUCCESS",
		"payTime":     "2026-08-28 12:00:00",
	}
	first := signPayload(params, "secret")
	second := signPayload(params, "secret")
	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestSignPayload_IgnoresSignKey(t *testing.T) {
	params := map[string]string{"orderNo": "ORD-1", "payAmount": "1.00"}
	withSign := map[string]string{"orderNo": "ORD-1", "payAmount": "1.00", "sign": "garbage"}
	assert.Equal(t, signPayload(params, "secret"), signPayload(withSign, "secret"))
}

func TestVerifySign(t *testing.T) {
	params := map[string]string{"orderNo": "ORD-1", "payAmount": "1.00"}
	sign := signPayload(params, "secret")

	assert.True(t, verifySign(params, "secret", sign))
	// Регистр hex не важен
	assert.True(t, verifySign(params, "secret", strings.ToUpper(sign)))
	assert.False(t, verifySign(params, "wrong-secret", sign))
	assert.False(t, verifySign(params, "secret", "deadbeef"))

	tampered := map[string]string{"orderNo": "ORD-1", "payAmount": "2.00"}
	assert.False(t, verifySign(tampered, "secret", sign))
}

func TestMoneyConversions(t *testing.T) {
	assert.Equal(t, int64(19998), centsFromAmount(199.98))
	assert.Equal(t, int64(10), centsFromAmount(0.1))
	// Погрешность float-представления гасится округлением до копеек
	assert.Equal(t, centsFromAmount(0.3), centsFromAmount(0.1+0.2))
	assert.InDelta(t, 199.98, amountFromCents(19998), 1e-9)

	// После приведения к копейкам сравнение строгое
	assert.True(t, amountsMatch(19998, 19998))
	assert.False(t, amountsMatch(19997, 19998))
	assert.False(t, amountsMatch(19999, 19998))
	assert.False(t, amountsMatch(20000, 19998))
}
