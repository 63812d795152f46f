package client

import (
	"fmt"

	"crowdfund-sol/internal/logic/program"
	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/sysvar"
	"crowdfund-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	solTypes "github.com/blocto/solana-go-sdk/types"
)

func toPublicKey(p types.Pubkey) common.PublicKey {
	return common.PublicKey(p)
}

// StorageSpace 计算容纳 c 所需的 storage 账户大小
func StorageSpace(c *state.Campaign) uint64 {
	return uint64(state.EncodedSize(c))
}

type CreateStorageAccountParam struct {
	Payer     types.Pubkey
	Storage   types.Pubkey
	ProgramID types.Pubkey
	Campaign  *state.Campaign
	Rent      sysvar.Rent
	Extra     uint64 // 免租线之外额外存入的 lamports
}

// NewCreateStorageAccountInstruction 通过系统程序创建归属众筹程序的 storage 账户，
// 大小恰好容纳编码后的记录，余额为免租线 + Extra
func NewCreateStorageAccountInstruction(param CreateStorageAccountParam) solTypes.Instruction {
	space := StorageSpace(param.Campaign)
	return system.CreateAccount(system.CreateAccountParam{
		From:     toPublicKey(param.Payer),
		New:      toPublicKey(param.Storage),
		Owner:    toPublicKey(param.ProgramID),
		Lamports: param.Rent.MinimumBalance(space) + param.Extra,
		Space:    space,
	})
}

type CreateCampaignParam struct {
	ProgramID types.Pubkey
	Storage   types.Pubkey
	Creator   types.Pubkey
	Campaign  state.Campaign
}

// NewCreateCampaignInstruction accounts: [storage(w), creator(s)]
func NewCreateCampaignInstruction(param CreateCampaignParam) (solTypes.Instruction, error) {
	data, err := program.EncodeInstruction(program.CreateCampaign{Campaign: param.Campaign})
	if err != nil {
		return solTypes.Instruction{}, fmt.Errorf("encode create campaign: %w", err)
	}
	return solTypes.Instruction{
		ProgramID: toPublicKey(param.ProgramID),
		Accounts: []solTypes.AccountMeta{
			{PubKey: toPublicKey(param.Storage), IsSigner: false, IsWritable: true},
			{PubKey: toPublicKey(param.Creator), IsSigner: true, IsWritable: true},
		},
		Data: data,
	}, nil
}

type WithdrawParam struct {
	ProgramID types.Pubkey
	Storage   types.Pubkey
	Admin     types.Pubkey
	Amount    uint64
}

// NewWithdrawInstruction accounts: [storage(w), admin(s,w)]
func NewWithdrawInstruction(param WithdrawParam) (solTypes.Instruction, error) {
	data, err := program.EncodeInstruction(program.Withdraw{Request: state.WithdrawRequest{Amount: param.Amount}})
	if err != nil {
		return solTypes.Instruction{}, fmt.Errorf("encode withdraw: %w", err)
	}
	return solTypes.Instruction{
		ProgramID: toPublicKey(param.ProgramID),
		Accounts: []solTypes.AccountMeta{
			{PubKey: toPublicKey(param.Storage), IsSigner: false, IsWritable: true},
			{PubKey: toPublicKey(param.Admin), IsSigner: true, IsWritable: true},
		},
		Data: data,
	}, nil
}

type DonateParam struct {
	ProgramID types.Pubkey
	Storage   types.Pubkey
	Funding   types.Pubkey // 新生成的临时账户，交易中同时签名
	Donor     types.Pubkey
	Amount    uint64
}

// NewDonateInstructions 先创建归属程序、余额为 Amount 的捐款资金账户，再发送 Donate。
// Donate accounts: [storage(w), funding(w), donor(s)]
func NewDonateInstructions(param DonateParam) ([]solTypes.Instruction, error) {
	data, err := program.EncodeInstruction(program.Donate{})
	if err != nil {
		return nil, fmt.Errorf("encode donate: %w", err)
	}
	fund := system.CreateAccount(system.CreateAccountParam{
		From:     toPublicKey(param.Donor),
		New:      toPublicKey(param.Funding),
		Owner:    toPublicKey(param.ProgramID),
		Lamports: param.Amount,
		Space:    0,
	})
	donate := solTypes.Instruction{
		ProgramID: toPublicKey(param.ProgramID),
		Accounts: []solTypes.AccountMeta{
			{PubKey: toPublicKey(param.Storage), IsSigner: false, IsWritable: true},
			{PubKey: toPublicKey(param.Funding), IsSigner: true, IsWritable: true},
			{PubKey: toPublicKey(param.Donor), IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
	return []solTypes.Instruction{fund, donate}, nil
}

// NewTransferInstruction 普通 SOL 转账
func NewTransferInstruction(from, to types.Pubkey, lamports uint64) solTypes.Instruction {
	return system.Transfer(system.TransferParam{
		From:   toPublicKey(from),
		To:     toPublicKey(to),
		Amount: lamports,
	})
}

// BuildTransaction 以 feePayer 为第一个签名者构造并签名 legacy 交易
func BuildTransaction(feePayer solTypes.Account, signers []solTypes.Account, blockhash string, ixs ...solTypes.Instruction) (solTypes.Transaction, error) {
	msg := solTypes.NewMessage(solTypes.NewMessageParam{
		FeePayer:        feePayer.PublicKey,
		Instructions:    ixs,
		RecentBlockhash: blockhash,
	})

	all := make([]solTypes.Account, 0, len(signers)+1)
	all = append(all, feePayer)
	for _, s := range signers {
		if s.PublicKey == feePayer.PublicKey {
			continue
		}
		all = append(all, s)
	}

	tx, err := solTypes.NewTransaction(solTypes.NewTransactionParam{
		Message: msg,
		Signers: all,
	})
	if err != nil {
		return solTypes.Transaction{}, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

// PubkeyOf 取 sdk 账户的地址
func PubkeyOf(acc solTypes.Account) types.Pubkey {
	return types.Pubkey(acc.PublicKey)
}
