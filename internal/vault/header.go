package vault

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/TheMichaelB/lssh/internal/crypto"
)

// File layout:
//
//	magic   "LSSH"                      4 bytes
//	version                             1 byte
//	kdf     crypto.KDF                  1 byte
//	iter    uint32 big-endian           4 bytes
//	saltLen                             1 byte
//	salt                                saltLen bytes
//	token   nonce || ciphertext || tag  remaining bytes
//
// Everything before the token is authenticated as additional data.
const (
	fileMagic      = "LSSH"
	formatVersion  = 1
	fixedHeaderLen = len(fileMagic) + 1 + 1 + 4 + 1
)

var errBadHeader = errors.New("bad store header")

// header carries the key derivation parameters of one store file.
type header struct {
	KDF        crypto.KDF
	Iterations uint32
	Salt       []byte
}

func (h header) params() crypto.KDFParams {
	return crypto.KDFParams{
		Algorithm:  h.KDF,
		Iterations: int(h.Iterations),
		Salt:       h.Salt,
	}
}

// marshal encodes the header.
func (h header) marshal() ([]byte, error) {
	if len(h.Salt) == 0 || len(h.Salt) > 255 {
		return nil, fmt.Errorf("%w: salt length %d", errBadHeader, len(h.Salt))
	}

	buf := make([]byte, 0, fixedHeaderLen+len(h.Salt))
	buf = append(buf, fileMagic...)
	buf = append(buf, formatVersion, byte(h.KDF))
	buf = binary.BigEndian.AppendUint32(buf, h.Iterations)
	buf = append(buf, byte(len(h.Salt)))
	buf = append(buf, h.Salt...)
	return buf, nil
}

// parseHeader splits a store file into its header, the raw header bytes
// and the encrypted token.
func parseHeader(data []byte) (header, []byte, []byte, error) {
	if len(data) < fixedHeaderLen {
		return header{}, nil, nil, fmt.Errorf("%w: file too short", errBadHeader)
	}
	if string(data[:len(fileMagic)]) != fileMagic {
		return header{}, nil, nil, fmt.Errorf("%w: bad magic", errBadHeader)
	}

	pos := len(fileMagic)
	if version := data[pos]; version != formatVersion {
		return header{}, nil, nil, fmt.Errorf("%w: unsupported version %d", errBadHeader, version)
	}
	pos++

	h := header{KDF: crypto.KDF(data[pos])}
	pos++

	h.Iterations = binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	saltLen := int(data[pos])
	pos++

	if len(data) < pos+saltLen {
		return header{}, nil, nil, fmt.Errorf("%w: truncated salt", errBadHeader)
	}
	h.Salt = append([]byte(nil), data[pos:pos+saltLen]...)
	pos += saltLen

	return h, data[:pos], data[pos:], nil
}
