package bank

import (
	"crowdfund-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
)

func toSDK(p types.Pubkey) common.PublicKey {
	return common.PublicKey(p)
}
