package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"crowdfund-sol/internal/types"

	"github.com/near/borsh-go"
)

// 编码布局（borsh，小端）：
//
//	admin(32) | u32 len | name | u32 len | description | u32 len | image_link | u64 amount_donated
const (
	adminSize        = types.PubkeyLength
	stringPrefixSize = 4
	amountSize       = 8

	// MinCampaignSize 三个字符串都为空时的编码长度
	MinCampaignSize = adminSize + 3*stringPrefixSize + amountSize

	// WithdrawRequestSize 取款请求的编码长度
	WithdrawRequestSize = amountSize
)

var (
	ErrBufferTooShort   = errors.New("buffer too short")
	ErrTrailingBytes    = errors.New("trailing bytes after record")
	ErrBufferTooSmall   = errors.New("encoded record does not fit account data")
	ErrStringTooLong    = errors.New("string length exceeds buffer")
	ErrInvalidRecordLen = errors.New("invalid record length")
	ErrUninitialized    = errors.New("campaign record not initialized")
)

// Campaign 是存放在程序账户中的众筹记录
type Campaign struct {
	Admin         types.Pubkey // 唯一有权取款的账户，创建后不可变
	Name          string
	Description   string
	ImageLink     string
	AmountDonated uint64 // 累计捐款额，只增不减
}

// WithdrawRequest 是取款指令的参数
type WithdrawRequest struct {
	Amount uint64
}

// EncodedSize 返回记录编码后的字节数，用于分配账户空间
func EncodedSize(c *Campaign) int {
	return MinCampaignSize + len(c.Name) + len(c.Description) + len(c.ImageLink)
}

// recordLen 扫描 buf 前缀，返回一条完整记录占用的字节数
func recordLen(buf []byte) (int, error) {
	offset := adminSize
	if len(buf) < offset {
		return 0, fmt.Errorf("%w: admin needs %d bytes, got %d", ErrBufferTooShort, adminSize, len(buf))
	}
	for i := 0; i < 3; i++ {
		if len(buf) < offset+stringPrefixSize {
			return 0, fmt.Errorf("%w: missing string prefix #%d", ErrBufferTooShort, i)
		}
		n := uint64(binary.LittleEndian.Uint32(buf[offset:]))
		offset += stringPrefixSize
		if uint64(len(buf)-offset) < n {
			return 0, fmt.Errorf("%w: string #%d declares %d bytes, %d left", ErrStringTooLong, i, n, len(buf)-offset)
		}
		offset += int(n)
	}
	if len(buf) < offset+amountSize {
		return 0, fmt.Errorf("%w: missing amount_donated", ErrBufferTooShort)
	}
	return offset + amountSize, nil
}

// DecodeCampaign 严格解码：buf 必须恰好是一条记录（用于指令参数）
func DecodeCampaign(buf []byte) (*Campaign, error) {
	n, err := recordLen(buf)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, fmt.Errorf("%w: record=%d, buffer=%d", ErrTrailingBytes, n, len(buf))
	}
	return decodeCampaign(buf)
}

// DecodeCampaignPrefix 从账户数据中解码记录，记录之后的填充字节被忽略。
// 新分配的账户数据全为零，admin 为全零地址时视为未初始化。
func DecodeCampaignPrefix(buf []byte) (*Campaign, error) {
	n, err := recordLen(buf)
	if err != nil {
		return nil, err
	}
	c, err := decodeCampaign(buf[:n])
	if err != nil {
		return nil, err
	}
	if c.Admin.IsZero() {
		return nil, ErrUninitialized
	}
	return c, nil
}

func decodeCampaign(buf []byte) (*Campaign, error) {
	c := new(Campaign)
	if err := borsh.Deserialize(c, buf); err != nil {
		return nil, fmt.Errorf("borsh deserialize campaign: %w", err)
	}
	return c, nil
}

// EncodeCampaign 编码记录
func EncodeCampaign(c *Campaign) ([]byte, error) {
	data, err := borsh.Serialize(*c)
	if err != nil {
		return nil, fmt.Errorf("borsh serialize campaign: %w", err)
	}
	if len(data) != EncodedSize(c) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidRecordLen, len(data), EncodedSize(c))
	}
	return data, nil
}

// WriteCampaign 把记录整体覆盖写入账户数据：
// 先写编码，再把剩余字节清零，旧内容不会残留。记录放不下时不修改 dst。
func WriteCampaign(dst []byte, c *Campaign) error {
	data, err := EncodeCampaign(c)
	if err != nil {
		return err
	}
	if len(data) > len(dst) {
		return fmt.Errorf("%w: need %d bytes, account has %d", ErrBufferTooSmall, len(data), len(dst))
	}
	n := copy(dst, data)
	clear(dst[n:])
	return nil
}

// FitsIn 判断记录能否写入长度为 size 的账户
func FitsIn(c *Campaign, size int) bool {
	return EncodedSize(c) <= size
}

// DecodeWithdrawRequest 严格解码取款参数（必须恰好 8 字节）
func DecodeWithdrawRequest(buf []byte) (*WithdrawRequest, error) {
	if len(buf) < WithdrawRequestSize {
		return nil, fmt.Errorf("%w: withdraw request needs %d bytes, got %d", ErrBufferTooShort, WithdrawRequestSize, len(buf))
	}
	if len(buf) > WithdrawRequestSize {
		return nil, fmt.Errorf("%w: withdraw request=%d, buffer=%d", ErrTrailingBytes, WithdrawRequestSize, len(buf))
	}
	req := new(WithdrawRequest)
	if err := borsh.Deserialize(req, buf); err != nil {
		return nil, fmt.Errorf("borsh deserialize withdraw request: %w", err)
	}
	return req, nil
}

// EncodeWithdrawRequest 编码取款参数
func EncodeWithdrawRequest(req WithdrawRequest) ([]byte, error) {
	data, err := borsh.Serialize(req)
	if err != nil {
		return nil, fmt.Errorf("borsh serialize withdraw request: %w", err)
	}
	return data, nil
}
