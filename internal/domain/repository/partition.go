package repository

import "strings"

// PartitionKey derives the cache-isolation key from broker/account identity.
// Changing either side must change the key, so cached bars never bleed
// between accounts.
func PartitionKey(brokerID, accountID string) string {
	b := strings.ToLower(strings.TrimSpace(brokerID))
	a := strings.ToLower(strings.TrimSpace(accountID))
	if b == "" {
		b = "default"
	}
	if a == "" {
		a = "default"
	}
	return b + "|" + a
}
