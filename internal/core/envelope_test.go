package core

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"welcome","id":"me","peers":["a","b"],"userName":"Steve","config":{"fullVolumeRange":8,"fallOffRange":16}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeWelcome, env.Type)
	assert.Equal(t, []string{"a", "b"}, env.Peers)
	assert.Equal(t, "Steve", env.UserName)
	require.NotNil(t, env.Config)
	assert.Equal(t, 24.0, env.Config.SilentRange())

	_, err = DecodeEnvelope([]byte(`{"id":"x"}`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeEnvelope_OmitsEmpty(t *testing.T) {
	b, err := EncodeEnvelope(Mute(false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"mute","muted":false}`, string(b))

	b, err = EncodeEnvelope(Offer("p1", &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","to":"p1","sdp":{"type":"offer","sdp":"v=0"}}`, string(b))
}
