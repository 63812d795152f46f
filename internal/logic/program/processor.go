package program

import (
	"crowdfund-sol/internal/types"
)

// Process 是程序入口：按 opcode 路由到对应 handler。
// handler 返回的错误原样交给宿主，宿主据此回滚整笔交易。
func Process(ictx *types.InvokeContext, accounts []*types.AccountInfo, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		ictx.Msgf("Did not find the entrypoint")
		return err
	}

	switch v := ix.(type) {
	case CreateCampaign:
		return processCreateCampaign(ictx, accounts, v)
	case Withdraw:
		return processWithdraw(ictx, accounts, v)
	case Donate:
		return processDonate(ictx, accounts)
	default:
		return fail(ErrInvalidInstruction, "unhandled instruction %T", ix)
	}
}
