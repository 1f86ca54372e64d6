// Package errs holds the fault sentinels shared by the root package and
// every internal package beneath it, so both sides of an import (e.g.
// internal/ratchet called from the root package) can classify errors with
// errors.Is without creating an import cycle back through the root
// package.
package errs

import "errors"

var (
	// Storage covers filesystem or serialization faults against the
	// session store (identity, prekey, and session blobs).
	Storage = errors.New("wirebot: storage fault")

	// Crypto covers decrypt, decode, base64, or prekey-generation
	// faults.
	Crypto = errors.New("wirebot: crypto fault")

	// Network covers transport-level failures talking to the Wire
	// platform.
	Network = errors.New("wirebot: network fault")

	// Protocol covers an outbound response whose status code was
	// neither success nor the one documented 412 recovery path.
	Protocol = errors.New("wirebot: protocol fault")

	// Delivery is terminal: a second 412 after the single
	// missing-devices recovery round.
	Delivery = errors.New("wirebot: delivery fault")

	// Auth is an inbound bearer-token mismatch.
	Auth = errors.New("wirebot: auth fault")

	// InboundProtocol covers a malformed inbound request: wrong method,
	// unknown route, unparseable body, or unrecognized event type.
	InboundProtocol = errors.New("wirebot: inbound protocol violation")

	// MissingPreKey is returned by the OTR manager when no session
	// exists for a device and the caller did not supply a prekey to
	// bootstrap one.
	MissingPreKey = errors.New("wirebot: no session and no prekey supplied")

	// Unreachable marks a broken invariant - logged at error level and
	// surfaced to the platform as a 500.
	Unreachable = errors.New("wirebot: unreachable state")
)
