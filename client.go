package wirebot

import (
	"context"

	"github.com/dsonbaker/wirebot/internal/delivery"
	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/outbound"
	"github.com/dsonbaker/wirebot/internal/queue"
	"github.com/dsonbaker/wirebot/internal/wireformat"
)

// BotClient is the handler-facing send primitive: the only thing a
// Handler gets. It carries the client id, the bearer token, the OTR
// manager, a sender into the Request Queue, and two BotState methods for
// reading and recording known devices - never the BotState lock itself, so a Handler can never block the conversation-membership or
// missing-devices bookkeeping another goroutine is updating concurrently.
type BotClient struct {
	clientID string
	token    string

	manager       *otr.Manager
	q             *queue.Queue
	knownDevices  func() map[string][]string
	recordMissing func(map[string][]string)
}

func newBotClient(state *BotState, q *queue.Queue) *BotClient {
	return &BotClient{
		clientID:      state.ClientID(),
		token:         state.Token(),
		manager:       state.Manager(),
		q:             q,
		knownDevices:  state.KnownDevices,
		recordMissing: state.RecordMissingResponse,
	}
}

// SendMessage encrypts text for every known device of the conversation's
// members and enqueues delivery on the Request Queue. It returns as soon
// as the task is queued; delivery failures are logged by the queue, not
// returned here, since the whole point of the queue is that the caller
// (an inbound handler) never blocks on the outbound round trip.
func (c *BotClient) SendMessage(text string) error {
	return c.send(wireformat.NewText(text))
}

// sendConfirmation queues a DELIVERED confirmation for messageID. Used
// internally by the inbound service whenever a conversation.otr-message-add
// event is handled.
func (c *BotClient) sendConfirmation(messageID string) error {
	return c.send(wireformat.NewConfirmation(messageID))
}

// SendImage uploads assetBytes via the Outbound Client's asset endpoint
// and sends a remote-asset reference through the same missing-devices
// pipeline as text. assetBytes are uploaded as given: no asset-level
// encryption is applied, and the reference carries no OTR key or SHA-256
// digest.
func (c *BotClient) SendImage(assetBytes []byte, mimeType string) error {
	c.q.Enqueue(func(ctx context.Context, outboundClient *outbound.Client) error {
		uploaded, err := outboundClient.UploadAsset(ctx, c.token, assetBytes, false)
		if err != nil {
			return err
		}
		msg := wireformat.NewAsset(uploaded.Key, uploaded.Token, nil, nil, mimeType)
		plaintext, err := msg.Marshal()
		if err != nil {
			return err
		}
		return delivery.SendEncryptedMessage(ctx, c.manager, outboundClient, c.token, c.clientID, plaintext, c.knownDevices(), c.recordMissing)
	})
	return nil
}

func (c *BotClient) send(msg wireformat.GenericMessage) error {
	plaintext, err := msg.Marshal()
	if err != nil {
		return err
	}
	c.q.Enqueue(func(ctx context.Context, outboundClient *outbound.Client) error {
		return delivery.SendEncryptedMessage(ctx, c.manager, outboundClient, c.token, c.clientID, plaintext, c.knownDevices(), c.recordMissing)
	})
	return nil
}
