package progress

import (
	"context"

	"crowdfund-sol/internal/types"
)

// Position 账户更新在链上的位置。同一 slot 内按 write_version 排序，
// RPC 轮询得到的更新没有 write_version，记为 0。
type Position struct {
	Slot         uint64
	WriteVersion uint64
}

// After 判断 p 是否严格晚于 other
func (p Position) After(other Position) bool {
	if p.Slot != other.Slot {
		return p.Slot > other.Slot
	}
	return p.WriteVersion > other.WriteVersion
}

// Source 表示更新来源模块（grpc、rpc）
type Source int16

const (
	SourceUnknown Source = 0
	SourceGrpc    Source = 1
	SourceRpc     Source = 2
)

func (s Source) String() string {
	switch s {
	case SourceGrpc:
		return "grpc"
	case SourceRpc:
		return "rpc"
	default:
		return "unknown"
	}
}

// Store 记录每个众筹账户已处理到的位置（幂等控制）
type Store interface {
	// Last 返回已处理的最新位置，未处理过时 ok 为 false
	Last(ctx context.Context, account types.Pubkey) (pos Position, ok bool, err error)

	// Advance 当 pos 晚于已记录位置时更新并返回 true
	Advance(ctx context.Context, account types.Pubkey, pos Position) (bool, error)
}
