package companion

import (
	"context"

	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/securechannel"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/securechannel/pairsetup"
	"github.com/backkem/hap/pkg/securechannel/pairverify"
	"github.com/backkem/hap/pkg/tlv8"
)

// PairOptions selects the pairing flavor.
type PairOptions struct {
	// PIN is the code shown by the device. Ignored for transient pairing.
	PIN string

	// PromptPIN asks for the code once the device displays it. Used when
	// PIN is empty.
	PromptPIN func() (string, error)

	// Transient pairs with the fixed PIN and yields session keys instead
	// of credentials.
	Transient bool
}

// Pair runs pair-setup. After a PIN pairing the credentials are saved to
// the configured store.
func (c *Client) Pair(ctx context.Context, opts PairOptions) (*pairsetup.Result, error) {
	cfg := pairsetup.Config{
		Identity:  c.config.Identity,
		PIN:       opts.PIN,
		PromptPIN: opts.PromptPIN,
		Mode:      pairsetup.ModePIN,
		NameCodec: EncodeName,
	}
	if opts.Transient {
		cfg.PIN = pairsetup.TransientPIN
		cfg.PromptPIN = nil
		cfg.Mode = pairsetup.ModeTransient
	}

	res, err := securechannel.Setup(ctx, &channel{client: c}, cfg)
	if err != nil {
		return nil, err
	}
	if res.Credentials != nil && c.config.Store != nil {
		if err := c.config.Store.SaveCredentials(res.Credentials); err != nil {
			return nil, err
		}
	}
	if c.log != nil {
		c.log.Infof("paired (%s)", cfg.Mode)
	}
	return res, nil
}

// Verify runs pair-verify and installs the MediaRemote keys. Every frame
// after it is encrypted.
func (c *Client) Verify(ctx context.Context, creds *hap.Credentials) error {
	if creds == nil {
		return ErrNotPaired
	}
	keys, err := securechannel.Verify(ctx, &channel{client: c}, creds, pairverify.ChannelMediaRemote)
	if err != nil {
		return err
	}
	defer keys.Zero()

	if err := c.conn.Secure(keys); err != nil {
		return err
	}
	if c.log != nil {
		c.log.Infof("verified %s", creds.AccessoryIdentifier)
	}
	return nil
}

// VerifyStored loads credentials for accessoryID from the configured store
// and runs Verify.
func (c *Client) VerifyStored(ctx context.Context, accessoryID string) error {
	if c.config.Store == nil {
		return ErrNotPaired
	}
	creds, err := c.config.Store.LoadCredentials(accessoryID)
	if err != nil {
		return err
	}
	return c.Verify(ctx, creds)
}

// channel carries handshake bodies in _pd fields. M1 opens with a Start
// frame; later steps use Next.
type channel struct {
	client *Client
}

func (ch *channel) PairSetup(ctx context.Context, body []byte) ([]byte, error) {
	ft := message.FramePSNext
	if isFirst(body) {
		ft = message.FramePSStart
	}
	return ch.exchange(ctx, ft, map[string]any{
		FieldPairingData: body,
		FieldPairingType: uint64(pairingTypeSetup),
	})
}

func (ch *channel) PairVerify(ctx context.Context, body []byte) ([]byte, error) {
	ft := message.FramePVNext
	if isFirst(body) {
		ft = message.FramePVStart
	}
	return ch.exchange(ctx, ft, map[string]any{
		FieldPairingData: body,
		FieldAuthType:    uint64(authTypeVerify),
	})
}

func (ch *channel) exchange(ctx context.Context, ft message.FrameType, v map[string]any) ([]byte, error) {
	reply, err := ch.client.Send(ctx, ft, v)
	if err != nil {
		return nil, err
	}
	pd, ok := reply[FieldPairingData].([]byte)
	if !ok {
		return nil, ErrMissingPairingData
	}
	return pd, nil
}

// isFirst reports whether body is an M1 message.
func isFirst(body []byte) bool {
	c, err := tlv8.Decode(body)
	if err != nil {
		return false
	}
	state, err := c.Byte(tlv8.TypeState)
	return err == nil && tlv8.State(state) == tlv8.StateM1
}

var _ securechannel.Channel = (*channel)(nil)
