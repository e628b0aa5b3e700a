// Package custody defines the records held by the stand-in asset custodian:
// fungible balances and non-fungible ownership. Real deployments replace the
// custody service with an adapter onto the host chain.
package custody

import "time"

// Balance tracks one account's holdings of one fungible asset.
type Balance struct {
	Account string    `json:"account"`
	Asset   string    `json:"asset"`
	Amount  uint64    `json:"amount"`
	Updated time.Time `json:"updated"`
}

// NonFungible tracks ownership of one instance within a collection.
type NonFungible struct {
	Collection string    `json:"collection"`
	Instance   string    `json:"instance"`
	Owner      string    `json:"owner"`
	Updated    time.Time `json:"updated"`
}

// Key identifies a non-fungible instance.
func (n NonFungible) Key() string { return n.Collection + "/" + n.Instance }
