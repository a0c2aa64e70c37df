package endpoint

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	OAppRegistrySize = (8 + // discriminator
		32 + // delegate
		1) // bump
)

var OAppRegistryDiscriminator = []byte{
	0x06, 0x98, 0xc7, 0x1e, 0xd9, 0x32, 0x45, 0x95,
}

type OAppRegistry struct {
	Delegate ed25519.PublicKey
	Bump     uint8
}

func (obj *OAppRegistry) Marshal() []byte {
	data := make([]byte, OAppRegistrySize)

	var offset int

	putDiscriminator(data, OAppRegistryDiscriminator, &offset)
	putKey(data, obj.Delegate, &offset)
	putUint8(data, obj.Bump, &offset)

	return data
}

func (obj *OAppRegistry) Unmarshal(data []byte) error {
	if len(data) < OAppRegistrySize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, OAppRegistryDiscriminator) {
		return ErrInvalidAccountData
	}

	getKey(data, &obj.Delegate, &offset)
	getUint8(data, &obj.Bump, &offset)

	return nil
}

func (obj *OAppRegistry) Clone() *OAppRegistry {
	delegate := make(ed25519.PublicKey, len(obj.Delegate))
	copy(delegate, obj.Delegate)

	return &OAppRegistry{
		Delegate: delegate,
		Bump:     obj.Bump,
	}
}

func (obj *OAppRegistry) String() string {
	return fmt.Sprintf(
		"OAppRegistry{delegate=%s,bump=%d}",
		base58.Encode(obj.Delegate),
		obj.Bump,
	)
}
