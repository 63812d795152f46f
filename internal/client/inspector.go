package client

import (
	"context"
	"errors"
	"fmt"

	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"

	rpc "github.com/blocto/solana-go-sdk/client"
)

var (
	ErrCampaignNotFound = errors.New("campaign account not found")
	ErrNotCampaign      = errors.New("account is not owned by the crowdfund program")
)

// RPCClient 是 Inspector 依赖的 RPC 方法，*rpc.Client 满足该接口
type RPCClient interface {
	GetAccountInfo(ctx context.Context, base58Addr string) (rpc.AccountInfo, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (uint64, error)
}

// CampaignView 链上众筹账户的解读结果
type CampaignView struct {
	Address      types.Pubkey
	Campaign     state.Campaign
	Lamports     uint64
	DataLen      uint64
	RentMinimum  uint64
	Withdrawable uint64 // 管理员当前可取出的最大金额
}

// Inspector 通过 RPC 读取并解析众筹账户
type Inspector struct {
	rpc       RPCClient
	programID types.Pubkey
}

func NewInspector(c RPCClient, programID types.Pubkey) *Inspector {
	return &Inspector{rpc: c, programID: programID}
}

// NewInspectorFromEndpoint 使用 JSON-RPC 地址创建 Inspector
func NewInspectorFromEndpoint(endpoint string, programID types.Pubkey) *Inspector {
	return NewInspector(rpc.NewClient(endpoint), programID)
}

// FetchCampaign 读取 addr 上的众筹记录
func (i *Inspector) FetchCampaign(ctx context.Context, addr types.Pubkey) (*CampaignView, error) {
	info, err := i.rpc.GetAccountInfo(ctx, addr.String())
	if err != nil {
		return nil, fmt.Errorf("get account info %s: %w", addr, err)
	}
	if info.Lamports == 0 && len(info.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, addr)
	}
	if types.Pubkey(info.Owner) != i.programID {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotCampaign, addr, info.Owner.ToBase58())
	}

	c, err := state.DecodeCampaignPrefix(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode campaign %s: %w", addr, err)
	}

	dataLen := uint64(len(info.Data))
	minimum, err := i.rpc.GetMinimumBalanceForRentExemption(ctx, dataLen)
	if err != nil {
		return nil, fmt.Errorf("get rent minimum: %w", err)
	}

	view := &CampaignView{
		Address:     addr,
		Campaign:    *c,
		Lamports:    info.Lamports,
		DataLen:     dataLen,
		RentMinimum: minimum,
	}
	if info.Lamports > minimum {
		view.Withdrawable = info.Lamports - minimum
	}
	return view, nil
}
