package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const sessionFormatVersionV1 = 1

// ErrSessionCorrupt is returned when a stored record cannot be decoded.
var ErrSessionCorrupt = errors.New("session record corrupt")

// Encode serializes s. The session id is the Redis key and is not part of the record.
func Encode(s *Session) ([]byte, error) {
	if len(s.Username) == 0 || len(s.Username) > 255 {
		return nil, errors.New("username length must be 1..255")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 1 + len(s.Username) + 32 + 16)

	buf.WriteByte(sessionFormatVersionV1)
	buf.WriteByte(byte(len(s.Username)))
	buf.WriteString(s.Username)
	buf.Write(s.UserAgentHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if version != sessionFormatVersionV1 {
		return nil, fmt.Errorf("%w: unsupported session format version %d", ErrSessionCorrupt, version)
	}

	s := &Session{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if userLen == 0 {
		return nil, fmt.Errorf("%w: empty username", ErrSessionCorrupt)
	}
	username := make([]byte, userLen)
	if _, err := io.ReadFull(reader, username); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	s.Username = string(username)

	if _, err := io.ReadFull(reader, s.UserAgentHash[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSessionCorrupt, reader.Len())
	}

	return s, nil
}
