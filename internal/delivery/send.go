// Package delivery implements the missing-devices recovery protocol:
// snapshot the conversation's devices, best-effort encrypt to every
// device with an existing session, post the result, and on a 412
// Precondition Failed fetch prekeys for exactly the devices the platform
// reports missing, bootstrap sessions against them, and resend exactly
// once. A second 412 is terminal.
package delivery

import (
	"context"
	"fmt"

	"github.com/dsonbaker/wirebot/internal/errs"
	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/outbound"
	"github.com/dsonbaker/wirebot/internal/ratchet"
	"github.com/dsonbaker/wirebot/internal/wire"
)

// SendEncryptedMessage fans out encrypt, POSTs, recovers from one 412,
// resends once, then gives up.
// onRecovered, if non-nil, is called with the devices a 412 reported
// missing, so the caller can fold them into its own bookkeeping (e.g.
// BotState.RecordMissingResponse) regardless of whether the resend
// ultimately succeeds.
func SendEncryptedMessage(
	ctx context.Context,
	manager *otr.Manager,
	client *outbound.Client,
	token, sender string,
	plaintext []byte,
	devices map[string][]string,
	onRecovered func(map[string][]string),
) error {
	recipients := manager.EncryptForDevices(plaintext, devices)

	missing, err := client.SendMessage(ctx, token, wire.MessageRequest{Sender: sender, Recipients: recipients})
	if err != nil {
		return err
	}
	if missing == nil {
		return nil
	}
	if onRecovered != nil {
		onRecovered(missing.Missing)
	}

	prekeys, err := client.GetPreKeys(ctx, token, missing.Missing)
	if err != nil {
		return err
	}

	recovered := make(map[string]map[string]string, len(prekeys))
	for user, clients := range prekeys {
		for clientID, pk := range clients {
			bundle := ratchet.EncodedPreKey{ID: pk.ID, Key: pk.Key}
			ciphertext, err := manager.Encrypt(user, clientID, plaintext, &bundle)
			if err != nil {
				return fmt.Errorf("%w: bootstrap session for %s/%s: %v", errs.Delivery, user, clientID, err)
			}
			if recovered[user] == nil {
				recovered[user] = make(map[string]string)
			}
			recovered[user][clientID] = ciphertext
		}
	}

	secondMissing, err := client.SendMessage(ctx, token, wire.MessageRequest{Sender: sender, Recipients: recovered})
	if err != nil {
		return err
	}
	if secondMissing != nil {
		return fmt.Errorf("%w: devices still missing after one recovery round", errs.Delivery)
	}
	return nil
}
