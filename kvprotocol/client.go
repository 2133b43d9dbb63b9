package kvprotocol

import "fmt"

// Client issues requests over a Conn and interprets the responses,
// matching kv-client/src/protocol.rs's Stream::{get,set,delete}.
type Client struct {
	conn *Conn
}

// NewClient wraps a Conn for request/response use.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Get issues a Get request. ok=false means the key was not found
// (distinct from a protocol-level error).
func (c *Client) Get(key []byte) (value []byte, ok bool, err error) {
	if err := c.conn.WriteCommand(CommandGet); err != nil {
		return nil, false, err
	}
	if err := c.conn.WriteData(key); err != nil {
		return nil, false, err
	}
	outcome, err := c.conn.ReadOutcome()
	if err != nil {
		return nil, false, err
	}
	switch outcome {
	case OutcomeSuccess:
		value, err := c.conn.ReadData()
		return value, true, err
	case OutcomeNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("kvprotocol: get failed")
	}
}

// Set issues a Set request.
func (c *Client) Set(key, value []byte) error {
	if err := c.conn.WriteCommand(CommandSet); err != nil {
		return err
	}
	if err := c.conn.WriteData(key); err != nil {
		return err
	}
	if err := c.conn.WriteData(value); err != nil {
		return err
	}
	return c.assertSuccess()
}

// Delete issues a Delete request.
func (c *Client) Delete(key []byte) error {
	if err := c.conn.WriteCommand(CommandDelete); err != nil {
		return err
	}
	if err := c.conn.WriteData(key); err != nil {
		return err
	}
	return c.assertSuccess()
}

func (c *Client) assertSuccess() error {
	outcome, err := c.conn.ReadOutcome()
	if err != nil {
		return err
	}
	if outcome != OutcomeSuccess {
		return fmt.Errorf("kvprotocol: operation failed")
	}
	return nil
}
