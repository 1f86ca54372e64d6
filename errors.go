package wirebot

import "github.com/dsonbaker/wirebot/internal/errs"

// Fault sentinels. Errors classified by this module wrap one of these with
// fmt.Errorf("...: %w", ...), so callers can classify failures with
// errors.Is without parsing strings. Not every error is classified: some
// are returned unwrapped (for example a JSON decode failure of persisted
// creation data, a message marshal failure, or a TLS certificate load
// failure), and ErrAuth and ErrInboundProtocol are not returned by any
// function - the inbound service answers with a status code. They are
// defined in
// internal/errs and re-exported here so internal packages can use them
// without importing the root package back.
var (
	// ErrStorage covers filesystem or serialization faults against the
	// session store (identity, prekey, and session blobs).
	ErrStorage = errs.Storage

	// ErrCrypto covers decrypt, decode, base64, or prekey-generation
	// faults.
	ErrCrypto = errs.Crypto

	// ErrNetwork covers transport-level failures talking to the Wire
	// platform.
	ErrNetwork = errs.Network

	// ErrProtocol covers an outbound response whose status code was
	// neither success nor the one documented 412 recovery path.
	ErrProtocol = errs.Protocol

	// ErrDelivery is terminal: a second 412 after the single
	// missing-devices recovery round.
	ErrDelivery = errs.Delivery

	// ErrAuth is an inbound bearer-token mismatch.
	ErrAuth = errs.Auth

	// ErrInboundProtocol covers a malformed inbound request: wrong
	// method, unknown route, unparseable body, or unrecognized event
	// type.
	ErrInboundProtocol = errs.InboundProtocol

	// ErrMissingPreKey is returned by the OTR manager when no session
	// exists for a device and the caller did not supply a prekey to
	// bootstrap one.
	ErrMissingPreKey = errs.MissingPreKey

	// ErrUnreachable marks a broken invariant - logged at error level and
	// surfaced to the platform as a 500.
	ErrUnreachable = errs.Unreachable
)
