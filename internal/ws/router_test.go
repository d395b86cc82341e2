package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDispatchesTypedHandler(t *testing.T) {
	r := NewRouter()

	Register(r, "join_room", func(_ context.Context, cc *ConnContext, req JoinRoomRequest) (JoinAck, error) {
		assert.Equal(t, "c1", cc.ConnID)
		assert.Equal(t, "geral", req.Room)
		return JoinAck{AlreadyMember: true}, nil
	})

	res, err := r.dispatch(context.Background(), &ConnContext{ConnID: "c1"}, Envelope{
		Event: "join_room",
		Body:  json.RawMessage(`{"room":"geral"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, JoinAck{AlreadyMember: true}, res)
}

func TestRouterUnknownEvent(t *testing.T) {
	r := NewRouter()

	_, err := r.dispatch(context.Background(), &ConnContext{}, Envelope{Event: "nope"})
	assert.EqualError(t, err, "unknown_event")
}

func TestRouterHandlerErrorPropagates(t *testing.T) {
	r := NewRouter()
	boom := errors.New("boom")

	Register(r, "identify", func(_ context.Context, _ *ConnContext, _ IdentifyRequest) (AckBody, error) {
		return AckBody{}, boom
	})

	_, err := r.dispatch(context.Background(), &ConnContext{}, Envelope{Event: "identify"})
	assert.ErrorIs(t, err, boom)
}

func TestRouterRejectsMalformedBody(t *testing.T) {
	r := NewRouter()

	Register(r, "identify", func(_ context.Context, _ *ConnContext, _ IdentifyRequest) (AckBody, error) {
		return AckBody{}, nil
	})

	_, err := r.dispatch(context.Background(), &ConnContext{}, Envelope{
		Event: "identify",
		Body:  json.RawMessage(`{"username":42}`),
	})
	assert.Error(t, err)
}
