package eventstream

import "errors"

var (
	// ErrNilTurnEvent indicates a nil turn event payload was provided to a publisher.
	ErrNilTurnEvent = errors.New("nil turn event")

	// ErrNoBrokers is returned when a broker-backed publisher has no brokers.
	ErrNoBrokers = errors.New("no brokers configured")

	// ErrNoTopic is returned when a broker-backed publisher has no topic.
	ErrNoTopic = errors.New("no topic configured")
)
