/*

This is a custom type for tokens which carries what the CLI, the API and the logs need to
display amounts.

*/

package types

import "github.com/ethereum/go-ethereum/common"

type Token struct {
	Symbol    string         `json:"symbol"`    // e.g., "mcUSD"
	Address   common.Address `json:"address"`   // ledger identity of the token
	Precision int            `json:"precision"` // e.g., 18 = 1 token is 1e18 base units
}
