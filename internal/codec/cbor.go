package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/pdaledger/internal/ir"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items. Same message, same bytes, same signature.
var encMode cbor.EncMode

// decMode rejects unknown fields: a signed message must decode to exactly
// what was signed.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// ir.PublicKey implements encoding.TextMarshaler; encode keys as their
	// base58 text so stored messages are readable with any CBOR tool.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		TextUnmarshaler:   cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Message is the signed part of a transaction: one instruction against
// one account in one program.
type Message struct {
	Program ir.PublicKey `cbor:"program"`
	Account ir.PublicKey `cbor:"account"`
	Signer  ir.PublicKey `cbor:"signer"`
	Data    []byte       `cbor:"data"`
	// Nonce makes two otherwise identical messages (set red to 2, twice)
	// produce distinct signatures.
	Nonce string `cbor:"nonce"`
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeMessage returns the bytes a signer signs.
func EncodeMessage(m Message) ([]byte, error) {
	data, err := Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses bytes produced by EncodeMessage.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
