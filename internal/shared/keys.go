package shared

import "fmt"

// OrderSummaryKey builds the redis key for a cached purchase order summary.
func OrderSummaryKey(orderID int64, version int64) string {
	return fmt.Sprintf("procure:po:%d:v%d", orderID, version)
}

// OrderVersionKey builds the redis key holding the latest cached version of an order.
func OrderVersionKey(orderID int64) string {
	return fmt.Sprintf("procure:po:%d:version", orderID)
}

// ReceiptIdempotencyKey scopes a client supplied key to a purchase order.
func ReceiptIdempotencyKey(orderID int64, key string) string {
	return fmt.Sprintf("PO:%d:RCPT:%s", orderID, key)
}
