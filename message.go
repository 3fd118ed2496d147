package wspool

import "fmt"

type MessageType byte

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
	CloseMessage  MessageType = 8
	PingMessage   MessageType = 9
	PongMessage   MessageType = 10
)

func (t MessageType) Is(other MessageType) bool {
	return t == other
}

func (t MessageType) IsText() bool {
	return t.Is(TextMessage)
}

func (t MessageType) IsBinary() bool {
	return t.Is(BinaryMessage)
}

func (t MessageType) IsPing() bool {
	return t.Is(PingMessage)
}

func (t MessageType) IsPong() bool {
	return t.Is(PongMessage)
}

func (t MessageType) IsClose() bool {
	return t.Is(CloseMessage)
}

// Message is an opaque payload produced by the transport. Immutable; the
// pool never retains it past the handler invocation.
type Message interface {
	Type() MessageType
	Data() []byte
	String() string
}

type message struct {
	messageType MessageType
	messageData []byte
}

func (m message) Type() MessageType {
	return m.messageType
}

func (m message) Data() []byte {
	return m.messageData
}

func (m message) String() string {
	return fmt.Sprintf("Message{type=%d,data=%s}",
		m.messageType, m.messageData)
}

type closeMessage struct {
	message
	code int
}

func (m closeMessage) Code() int {
	return m.code
}

func (m closeMessage) String() string {
	return fmt.Sprintf("Message{type=%d,code=%d,data=%s}",
		m.message.Type(), m.code, m.message.Data())
}

func NewMessage(mt MessageType, data []byte) Message {
	return message{messageType: mt, messageData: data}
}

func NewTextMessage(data []byte) Message {
	return NewMessage(TextMessage, data)
}

func NewBinaryMessage(data []byte) Message {
	return NewMessage(BinaryMessage, data)
}

func NewPingMessage(data []byte) Message {
	return NewMessage(PingMessage, data)
}

func NewPongMessage(data []byte) Message {
	return NewMessage(PongMessage, data)
}

func NewCloseMessage(code int, data []byte) Message {
	return closeMessage{
		message: message{messageType: CloseMessage, messageData: data},
		code:    code,
	}
}
