package spaceport

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the user identity embedded in channel authentication.
// ID is never empty; when the session credential carries no usable identity
// claim the placeholder id "unknown" is used.
type Identity struct {
	ID string `json:"id"`
}

// placeholderIdentity is used when no identity can be extracted
var placeholderIdentity = Identity{ID: "unknown"}

// ChannelAuth carries the credential attached to channel subscriptions.
// Build one with GenerateChannelAuth, or pass your own to SubscribeToChannel
// when auth is produced elsewhere.
type ChannelAuth struct {
	// Signature is the raw session credential
	Signature string `json:"signature"`
	// UserData is the JSON-encoded identity of the signed-in user
	UserData json.RawMessage `json:"user_data"`
	// ChannelID scopes the auth to a single channel when set
	ChannelID string `json:"channel_id,omitempty"`
}

// errIdentityMissing marks a credential that decoded fine but carries no
// usable id claim. It is distinct from decode failures: GenerateChannelAuth
// degrades it to the placeholder identity instead of failing.
var errIdentityMissing = errors.New("identity claim missing")

// channelAuthProvider derives channel credentials from the token source.
type channelAuthProvider struct {
	tokens TokenSource
}

func newChannelAuthProvider(tokens TokenSource) *channelAuthProvider {
	return &channelAuthProvider{tokens: tokens}
}

// token returns the current credential, empty when none is configured
func (p *channelAuthProvider) token() (string, error) {
	if p.tokens == nil {
		return "", nil
	}
	return p.tokens.Token()
}

// isAuthenticated reports whether a credential is currently available
func (p *channelAuthProvider) isAuthenticated() bool {
	token, err := p.token()
	return err == nil && token != ""
}

// generateChannelAuth builds the subscription credential for a channel.
//
// The raw credential becomes the signature and the identity extracted from
// it becomes the user data. A credential without an id claim degrades to the
// placeholder identity; a credential that cannot be decoded at all is a
// protocol error and fails the call.
func (p *channelAuthProvider) generateChannelAuth(channelID string) (*ChannelAuth, error) {
	token, err := p.token()
	if err != nil {
		return nil, NewError(ErrorTypeAuth, "no session credential available", err)
	}
	if token == "" {
		return nil, NewError(ErrorTypeAuth, "no session credential available", ErrAuthUnavailable)
	}

	identity, err := extractIdentity(token)
	if errors.Is(err, errIdentityMissing) {
		identity = placeholderIdentity
	} else if err != nil {
		return nil, err
	}

	userData, err := json.Marshal(identity)
	if err != nil {
		return nil, NewError(ErrorTypeSerialization, "failed to encode identity", err)
	}

	return &ChannelAuth{
		Signature: token,
		UserData:  userData,
		ChannelID: channelID,
	}, nil
}

// userData returns the identity of the current credential. Every extraction
// failure, including a missing credential or a malformed one, yields the
// placeholder identity.
func (p *channelAuthProvider) userData() Identity {
	token, err := p.token()
	if err != nil || token == "" {
		return placeholderIdentity
	}

	identity, err := extractIdentity(token)
	if err != nil {
		return placeholderIdentity
	}

	return identity
}

// extractIdentity decodes the identity from a JWT session credential without
// verifying its signature. Verification belongs to the server; the client
// only reads the payload.
//
// A token that is not a well-formed three-segment JWT is a protocol error.
// A well-formed token without a non-empty string id claim returns
// errIdentityMissing.
func extractIdentity(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, NewError(ErrorTypeProtocol, "malformed session credential", err)
	}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return Identity{}, errIdentityMissing
	}

	return Identity{ID: id}, nil
}
