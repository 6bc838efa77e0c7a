// Package client provides a client for the TCP protocol of the server.
package client

import (
	"errors"
	"fmt"
	"net"

	"github.com/durakv/durakv/internal/protocol"
)

// ErrNotFound is returned by Get when the requested key is not present.
var ErrNotFound = errors.New("key not found")

// Client is a connection to a server. It keeps a single TCP connection open and runs one request at a time on it.
//
// Instances of this struct are NOT safe for concurrent use. Either use it on a single goroutine or provide your own
// external synchronization.
type Client struct {
	connection net.Conn
}

// Dial connects to the server at the given address.
func Dial(address string) (*Client, error) {
	connection, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", address, err)
	}
	return &Client{
		connection: connection,
	}, nil
}

// Get returns the value of the given key. When the key is not present, the error wraps ErrNotFound.
func (c *Client) Get(key string) ([]byte, error) {
	response, err := c.roundTrip(protocol.Request{
		Command: protocol.CommandGet,
		Key:     key,
	})
	if err != nil {
		if response.Status == protocol.StatusError {
			return nil, errors.Join(ErrNotFound, err)
		}
		return nil, err
	}
	return response.Value, nil
}

// Put stores the given key-value pair. When Put returns without error, the server has made the pair durable.
func (c *Client) Put(key string, value []byte) error {
	_, err := c.roundTrip(protocol.Request{
		Command: protocol.CommandPut,
		Key:     key,
		Value:   value,
	})
	return err
}

// Delete removes the given key. Deleting an absent key succeeds.
func (c *Client) Delete(key string) error {
	_, err := c.roundTrip(protocol.Request{
		Command: protocol.CommandDelete,
		Key:     key,
	})
	return err
}

// Keys returns all keys present on the server, sorted.
func (c *Client) Keys() ([]string, error) {
	response, err := c.roundTrip(protocol.Request{
		Command: protocol.CommandKeys,
	})
	if err != nil {
		return nil, err
	}
	return response.Keys, nil
}

// Checkpoint asks the server to write a checkpoint marker and rotate its log segment.
func (c *Client) Checkpoint() error {
	_, err := c.roundTrip(protocol.Request{
		Command: protocol.CommandCheckpoint,
	})
	return err
}

// Close tells the server we are done and closes the connection.
func (c *Client) Close() error {
	_, requestErr := c.roundTrip(protocol.Request{
		Command: protocol.CommandQuit,
	})
	closeErr := c.connection.Close()
	return errors.Join(requestErr, closeErr)
}

// roundTrip sends one request and reads the matching response. A StatusError response is turned into an error
// carrying the server side message.
func (c *Client) roundTrip(request protocol.Request) (protocol.Response, error) {
	if err := protocol.WriteMessage(c.connection, request); err != nil {
		return protocol.Response{}, err
	}
	var response protocol.Response
	if err := protocol.ReadMessage(c.connection, &response); err != nil {
		return protocol.Response{}, err
	}
	if response.Status == protocol.StatusError {
		return response, fmt.Errorf("the server rejected the %s request: %s", request.Command, response.Message)
	}
	return response, nil
}
