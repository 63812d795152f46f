package utils

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/near/borsh-go"
)

// EventPrefixLen 事件类型前缀长度
const EventPrefixLen = 4

var ErrEventTooShort = errors.New("event payload shorter than type prefix")

// EncodeEvent 将消息编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 borsh 序列化数据
func EncodeEvent(eventType uint32, msg any) ([]byte, error) {
	body, err := borsh.Serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: marshal %T: %w", msg, err)
	}

	buf := make([]byte, EventPrefixLen, EventPrefixLen+len(body))
	binary.LittleEndian.PutUint32(buf[:EventPrefixLen], eventType)
	return append(buf, body...), nil
}

// DecodeEvent 读取事件类型前缀并把剩余部分 borsh 解码到 out（指针）
func DecodeEvent(data []byte, out any) (uint32, error) {
	if len(data) < EventPrefixLen {
		return 0, ErrEventTooShort
	}
	eventType := binary.LittleEndian.Uint32(data[:EventPrefixLen])
	if err := borsh.Deserialize(out, data[EventPrefixLen:]); err != nil {
		return eventType, fmt.Errorf("DecodeEvent: unmarshal %T: %w", out, err)
	}
	return eventType, nil
}

// PeekEventType 只读取事件类型，不解码消息体
func PeekEventType(data []byte) (uint32, bool) {
	if len(data) < EventPrefixLen {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[:EventPrefixLen]), true
}
