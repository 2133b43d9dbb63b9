package kvprotocol

import "fmt"

// Engine is the subset of engine.Engine the server-side handler needs,
// kept as a local interface so kvprotocol does not import package
// engine (which would be an unused, inverted dependency: engine never
// needs to know about the wire format).
type Engine interface {
	Get(key []byte) (value []byte, ok bool, err error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Serve handles exactly one request on conn against eng, matching the
// original source's per-request dispatch in kv/src/main.rs. Any engine
// error maps to OutcomeFailure (0x00); a successful Get on a missing key
// maps to OutcomeNotFound (0x02), distinct from failure (spec.md §7).
func Serve(conn *Conn, eng Engine) error {
	cmd, err := conn.ReadCommand()
	if err != nil {
		return err
	}

	switch cmd {
	case CommandGet:
		key, err := conn.ReadData()
		if err != nil {
			return err
		}
		value, ok, err := eng.Get(key)
		if err != nil {
			return conn.WriteOutcome(OutcomeFailure)
		}
		if !ok {
			return conn.WriteOutcome(OutcomeNotFound)
		}
		if err := conn.WriteOutcome(OutcomeSuccess); err != nil {
			return err
		}
		return conn.WriteData(value)

	case CommandSet:
		key, err := conn.ReadData()
		if err != nil {
			return err
		}
		value, err := conn.ReadData()
		if err != nil {
			return err
		}
		if err := eng.Set(key, value); err != nil {
			return conn.WriteOutcome(OutcomeFailure)
		}
		return conn.WriteOutcome(OutcomeSuccess)

	case CommandDelete:
		key, err := conn.ReadData()
		if err != nil {
			return err
		}
		if err := eng.Delete(key); err != nil {
			return conn.WriteOutcome(OutcomeFailure)
		}
		return conn.WriteOutcome(OutcomeSuccess)

	default:
		return fmt.Errorf("kvprotocol: unhandled command %v", cmd)
	}
}
