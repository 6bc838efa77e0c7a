// Package protocol implements the wire protocol the server and client speak over TCP. Every message is a JSON
// document framed by a 4 byte big endian length prefix.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize bounds the length prefix a peer may send. A prefix beyond this limit is treated as a protocol
// violation instead of an allocation request.
const MaxMessageSize = 64 * 1024 * 1024

// The commands a client can send.
const (
	CommandGet        = "GET"
	CommandPut        = "PUT"
	CommandDelete     = "DELETE"
	CommandKeys       = "KEYS"
	CommandCheckpoint = "CHECKPOINT"
	CommandQuit       = "QUIT"
)

// The statuses a server can answer with.
const (
	StatusOK     = "OK"
	StatusResult = "RESULT"
	StatusError  = "ERROR"
)

// Request is the message a client sends to the server. Key and Value are only set for the commands which need them.
type Request struct {
	Command string `json:"command"`
	Key     string `json:"key,omitempty"`
	Value   []byte `json:"value,omitempty"`
}

// Response is the message the server answers with. Status is always set. Message carries the error description for
// StatusError, Value the result of a GET and Keys the result of a KEYS.
type Response struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Value   []byte   `json:"value,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

// WriteMessage frames the given message with its length prefix and writes it to the writer.
func WriteMessage(writer io.Writer, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding the message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("the message of %d bytes exceeds the maximum message size of %d bytes", len(data), MaxMessageSize)
	}

	var lengthPrefix [4]byte
	binary.BigEndian.PutUint32(lengthPrefix[:], uint32(len(data))) //nolint:gosec // The length is bounded by MaxMessageSize.
	if _, err := writer.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("writing the length prefix: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("writing the message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length prefixed message from the reader and decodes it into the given message. A reader
// which is cleanly closed before the length prefix yields io.EOF.
func ReadMessage(reader io.Reader, message any) error {
	var lengthPrefix [4]byte
	if _, err := io.ReadFull(reader, lengthPrefix[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("reading the length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthPrefix[:])
	if length > MaxMessageSize {
		return fmt.Errorf("the announced message of %d bytes exceeds the maximum message size of %d bytes", length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return fmt.Errorf("reading the message body: %w", err)
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("decoding the message: %w", err)
	}
	return nil
}
