package protocol_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durakv/durakv/internal/protocol"
)

func TestMessageRoundTrip(t *testing.T) {
	request := protocol.Request{
		Command: protocol.CommandPut,
		Key:     "some-key",
		Value:   []byte("some-value"),
	}

	var buffer bytes.Buffer
	require.NoError(t, protocol.WriteMessage(&buffer, request))

	var gotRequest protocol.Request
	require.NoError(t, protocol.ReadMessage(&buffer, &gotRequest))
	assert.Equal(t, request, gotRequest)
}

func TestMessageFraming(t *testing.T) {
	var buffer bytes.Buffer
	require.NoError(t, protocol.WriteMessage(&buffer, protocol.Request{Command: protocol.CommandKeys}))

	// The length prefix has to announce exactly the remaining bytes.
	length := binary.BigEndian.Uint32(buffer.Bytes()[:4])
	assert.Equal(t, int(length), buffer.Len()-4)
}

func TestReadMessageFromClosedConnection(t *testing.T) {
	var buffer bytes.Buffer
	var request protocol.Request
	assert.ErrorIs(t, protocol.ReadMessage(&buffer, &request), io.EOF)
}

func TestReadMessageWithTruncatedBody(t *testing.T) {
	var buffer bytes.Buffer
	require.NoError(t, protocol.WriteMessage(&buffer, protocol.Request{Command: protocol.CommandKeys}))
	buffer.Truncate(buffer.Len() - 1)

	var request protocol.Request
	assert.Error(t, protocol.ReadMessage(&buffer, &request))
}

func TestReadMessageWithOversizedLengthPrefix(t *testing.T) {
	var buffer bytes.Buffer
	var lengthPrefix [4]byte
	binary.BigEndian.PutUint32(lengthPrefix[:], protocol.MaxMessageSize+1)
	buffer.Write(lengthPrefix[:])

	var request protocol.Request
	assert.Error(t, protocol.ReadMessage(&buffer, &request))
}
