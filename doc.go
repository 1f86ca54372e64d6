// Package wirebot hosts chat bots on Wire, an end-to-end encrypted
// messaging platform. A bot is a cryptographic peer in a conversation: it
// accepts encrypted events addressed to it over HTTPS, decrypts them with a
// per-device double-ratchet session, surfaces plaintext events to a
// user-supplied Handler, and sends encrypted replies that fan out to every
// device of every conversation member.
package wirebot
