package easypay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// MessageAuthValue 生产环境 msgAuthValue
// hex(HMAC-SHA256(secretKey, transactionRef + "|" + orderNo))
func MessageAuthValue(secretKey, transactionRef, orderNo string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(transactionRef + "|" + orderNo))
	return hex.EncodeToString(mac.Sum(nil))
}
