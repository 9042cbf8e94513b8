package wallet

// Balance is an address's holdings at a given indexed height.
type Balance struct {
	Address   string `json:"address"`
	Balance   int64  `json:"balance"`
	UTXOCount int    `json:"utxo_count"`
	Height    int64  `json:"height"`
}
