// Package message defines the JSON envelopes carried over the hub.
//
// The hub emits tagged messages with a "t" field naming the variant. Clients
// may send any JSON object; the hub only guarantees a "room" key before
// relaying it.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Values of the "t" field
const (
	TypeFrame        = "f"
	TypeChat         = "c"
	TypeSys          = "sys"
	TypeOrder        = "order"
	TypeOrderUpdate  = "order_update"
	TypeOrderDeleted = "order_deleted"
	TypeViewerJoin   = "viewer_join"
	TypeViewerTotal  = "viewer_total"
)

// ErrNotObject is returned when a client message is valid JSON but not an object
var ErrNotObject = errors.New("message is not a JSON object")

// Frame carries an opaque data payload, e.g. a video frame
type Frame struct {
	T    string `json:"t"`
	Room string `json:"room"`
	D    string `json:"d"`
}

// Chat is a chat line from a named user
type Chat struct {
	T    string `json:"t"`
	Room string `json:"room"`
	User string `json:"user"`
	Text string `json:"text"`
}

// Sys is a notice generated by the hub
type Sys struct {
	T    string `json:"t"`
	Room string `json:"room"`
	Text string `json:"text"`
}

// ViewerJoin announces a viewer joining a room
type ViewerJoin struct {
	T    string `json:"t"`
	Room string `json:"room"`
}

// ViewerTotal reports the number of viewers across all rooms
type ViewerTotal struct {
	T string `json:"t"`
	N int    `json:"n"`
}

// Order is an order lifecycle notification. T is one of TypeOrder,
// TypeOrderUpdate or TypeOrderDeleted.
type Order struct {
	T       string `json:"t"`
	OrderID int64  `json:"order_id"`
}

// NewFrame returns a Frame for room
func NewFrame(room, d string) Frame {
	return Frame{T: TypeFrame, Room: room, D: d}
}

// NewChat returns a Chat for room
func NewChat(room, user, text string) Chat {
	return Chat{T: TypeChat, Room: room, User: user, Text: text}
}

// NewSys returns a Sys notice for room
func NewSys(room, text string) Sys {
	return Sys{T: TypeSys, Room: room, Text: text}
}

// NewViewerJoin returns a ViewerJoin for room
func NewViewerJoin(room string) ViewerJoin {
	return ViewerJoin{T: TypeViewerJoin, Room: room}
}

// NewViewerTotal returns a ViewerTotal of n
func NewViewerTotal(n int) ViewerTotal {
	return ViewerTotal{T: TypeViewerTotal, N: n}
}

// NewOrder returns an order notification of type t
func NewOrder(t string, orderID int64) Order {
	return Order{T: t, OrderID: orderID}
}

// Encode marshals one of the envelopes above
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// MustEncode is Encode for the fixed envelopes, which cannot fail to marshal
func MustEncode(v interface{}) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Type returns the "t" field of data, or "" if there is none
func Type(data []byte) string {
	var head struct {
		T string `json:"t"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.T
}

// InjectRoom parses data as a JSON object, adds "room" if it is missing, and
// returns the re-serialised object. Existing "room" values are kept as sent.
// Numbers are preserved exactly.
func InjectRoom(data []byte, room string) ([]byte, error) {

	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var v interface{}

	if err := d.Decode(&v); err != nil {
		return nil, err
	}

	// reject trailing data such as `{} {}`
	if d.More() {
		return nil, errors.New("trailing data after JSON value")
	}

	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrNotObject
	}

	if _, ok := doc["room"]; !ok {
		doc["room"] = room
	}

	return json.Marshal(doc)
}
