package event

import (
	"context"
	"fmt"

	"crowdfund-sol/internal/state"
	"crowdfund-sol/internal/types"
	"crowdfund-sol/internal/utils"
)

// EventTypeCampaign 众筹事件在消息前缀中的类型编号
const EventTypeCampaign uint32 = 1

// Kind 众筹事件类型
type Kind uint8

const (
	KindCreated   Kind = 1 // 记录被创建（或被 CreateCampaign 重新初始化）
	KindDonated   Kind = 2
	KindWithdrawn Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindDonated:
		return "donated"
	case KindWithdrawn:
		return "withdrawn"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// CampaignEvent 一次众筹账户状态变化
type CampaignEvent struct {
	Kind          Kind
	Campaign      types.Pubkey // storage 账户地址
	Slot          uint64
	Signature     string // 来源交易签名，轮询得到的事件为空
	Lamports      uint64 // 事件发生后的账户余额
	AmountDonated uint64 // 事件发生后的累计捐款
	Delta         uint64 // 本次捐款额或取款额
	Admin         types.Pubkey
	Name          string
}

// Marshal 编码为 4 字节类型前缀 + borsh
func (e *CampaignEvent) Marshal() ([]byte, error) {
	return utils.EncodeEvent(EventTypeCampaign, *e)
}

// Unmarshal 解码 Marshal 的输出
func Unmarshal(data []byte) (*CampaignEvent, error) {
	var ev CampaignEvent
	eventType, err := utils.DecodeEvent(data, &ev)
	if err != nil {
		return nil, err
	}
	if eventType != EventTypeCampaign {
		return nil, fmt.Errorf("unexpected event type %d", eventType)
	}
	return &ev, nil
}

// Sink 事件的去向（Kafka、内存收集器等）
type Sink interface {
	Publish(ctx context.Context, events []CampaignEvent) error
}

// Snapshot 众筹账户在某个时刻的状态；Campaign 为 nil 表示账户不存在或尚未初始化
type Snapshot struct {
	Lamports uint64
	Campaign *state.Campaign
}

// SnapshotOf 从账户余额和数据构造快照，数据无法解码时 Campaign 为 nil
func SnapshotOf(lamports uint64, data []byte) Snapshot {
	snap := Snapshot{Lamports: lamports}
	if c, err := state.DecodeCampaignPrefix(data); err == nil {
		snap.Campaign = c
	}
	return snap
}

// Classify 比较前后两个快照，推断发生的事件。
// 捐款使累计金额增加；取款只减少余额、累计金额不变；
// 累计金额回退只可能是 CreateCampaign 覆盖了记录。
func Classify(prev *Snapshot, cur Snapshot) (Kind, uint64, bool) {
	if cur.Campaign == nil {
		return 0, 0, false
	}
	if prev == nil || prev.Campaign == nil {
		return KindCreated, 0, true
	}

	before, after := prev.Campaign.AmountDonated, cur.Campaign.AmountDonated
	switch {
	case after > before:
		return KindDonated, after - before, true
	case after < before:
		return KindCreated, 0, true
	case cur.Lamports < prev.Lamports:
		return KindWithdrawn, prev.Lamports - cur.Lamports, true
	default:
		return 0, 0, false
	}
}

// Build 根据快照变化构造事件
func Build(addr types.Pubkey, slot uint64, sig string, prev *Snapshot, cur Snapshot) (CampaignEvent, bool) {
	kind, delta, ok := Classify(prev, cur)
	if !ok {
		return CampaignEvent{}, false
	}
	return CampaignEvent{
		Kind:          kind,
		Campaign:      addr,
		Slot:          slot,
		Signature:     sig,
		Lamports:      cur.Lamports,
		AmountDonated: cur.Campaign.AmountDonated,
		Delta:         delta,
		Admin:         cur.Campaign.Admin,
		Name:          cur.Campaign.Name,
	}, true
}
