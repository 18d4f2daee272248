package airplay

import (
	"context"

	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/securechannel"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/securechannel/pairsetup"
	"github.com/backkem/hap/pkg/securechannel/pairverify"
)

// PairOptions selects the pairing flavor.
type PairOptions struct {
	// PIN is the code shown by the receiver. Ignored for transient pairing.
	PIN string

	// PromptPIN asks for the code once the receiver displays it. Used when
	// PIN is empty.
	PromptPIN func() (string, error)

	// Transient pairs with the fixed PIN and yields session keys instead
	// of credentials.
	Transient bool
}

func (o PairOptions) mode() pairsetup.Mode {
	if o.Transient {
		return pairsetup.ModeTransient
	}
	return pairsetup.ModePIN
}

// PairPinStart asks the receiver to begin pairing. For PIN mode the
// receiver displays its code.
func (c *Client) PairPinStart(ctx context.Context, mode pairsetup.Mode) error {
	_, err := c.Do(ctx, "POST", PathPairPinStart, message.Header{{Name: HeaderHKP, Value: hkpFor(mode)}}, nil)
	return err
}

func hkpFor(mode pairsetup.Mode) string {
	if mode == pairsetup.ModeTransient {
		return hkpTransient
	}
	return hkpPIN
}

// Pair runs pair-pin-start and pair-setup. After a PIN pairing the
// credentials are saved to the configured store.
func (c *Client) Pair(ctx context.Context, opts PairOptions) (*pairsetup.Result, error) {
	mode := opts.mode()
	if err := c.PairPinStart(ctx, mode); err != nil {
		return nil, err
	}

	pin := opts.PIN
	if opts.Transient {
		pin = pairsetup.TransientPIN
	}
	res, err := securechannel.Setup(ctx, &channel{client: c, hkp: hkpFor(mode)}, pairsetup.Config{
		Identity:  c.config.Identity,
		PIN:       pin,
		PromptPIN: opts.PromptPIN,
		Mode:      mode,
		NameCodec: EncodeName,
	})
	if err != nil {
		return nil, err
	}

	if res.Credentials != nil && c.config.Store != nil {
		if err := c.config.Store.SaveCredentials(res.Credentials); err != nil {
			return nil, err
		}
	}
	if c.log != nil {
		c.log.Infof("paired (%s)", mode)
	}
	return res, nil
}

// Verify runs pair-verify with stored credentials and returns control
// channel keys and the shared secret. Install the keys with Secure.
func (c *Client) Verify(ctx context.Context, creds *hap.Credentials) (*securechannel.VerifyResult, error) {
	if creds == nil {
		return nil, ErrNotPaired
	}
	res, err := securechannel.VerifyShared(ctx, &channel{client: c, hkp: hkpPIN}, creds, pairverify.ChannelControl)
	if err != nil {
		return nil, err
	}
	if c.log != nil {
		c.log.Infof("verified %s", creds.AccessoryIdentifier)
	}
	return res, nil
}

// VerifyStored loads credentials for accessoryID from the configured store
// and runs Verify.
func (c *Client) VerifyStored(ctx context.Context, accessoryID string) (*securechannel.VerifyResult, error) {
	if c.config.Store == nil {
		return nil, ErrNotPaired
	}
	creds, err := c.config.Store.LoadCredentials(accessoryID)
	if err != nil {
		return nil, err
	}
	return c.Verify(ctx, creds)
}

// channel carries handshake bodies as RTSP requests.
type channel struct {
	client *Client
	hkp    string
}

func (ch *channel) PairSetup(ctx context.Context, body []byte) ([]byte, error) {
	resp, err := ch.client.Do(ctx, "POST", PathPairSetup, message.Header{
		{Name: message.HeaderContentType, Value: ContentTypeOctetStream},
		{Name: HeaderHKP, Value: ch.hkp},
	}, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (ch *channel) PairVerify(ctx context.Context, body []byte) ([]byte, error) {
	resp, err := ch.client.Do(ctx, "POST", PathPairVerify, message.Header{
		{Name: message.HeaderContentType, Value: ContentTypePairingTLV8},
		{Name: HeaderHKP, Value: hkpPIN},
	}, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var _ securechannel.Channel = (*channel)(nil)
