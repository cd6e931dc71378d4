package service

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// signPayload считает подпись callback'а: параметры (без sign) сортируются по
// ключу, склеиваются в k=v через &, в конец добавляется секрет шлюза, от строки
// берётся md5 в hex. Контракт шлюза, не наш выбор алгоритма.
func signPayload(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	sb.WriteString("&key=")
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// verifySign сравнивает подписи за постоянное время, регистр hex не важен.
func verifySign(params map[string]string, secret, got string) bool {
	want := signPayload(params, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(got))) == 1
}
