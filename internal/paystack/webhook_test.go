package paystack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sk_test_webhook"

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"abc","amount":4500000}}`)
	sig := Sign(body, testSecret)

	assert.Len(t, sig, 128)
	assert.True(t, VerifySignature(body, sig, testSecret))
	assert.False(t, VerifySignature(body, "", testSecret))
	assert.False(t, VerifySignature(body, sig, ""))
	assert.False(t, VerifySignature(body, sig, "other-secret"))
	assert.False(t, VerifySignature(body, sig[:len(sig)-2], testSecret))
}

func TestVerifySignature_AnySingleByteMutationRejected(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"order-1"}}`)
	sig := Sign(body, testSecret)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.False(t, VerifySignature(mutated, sig, testSecret), "mutation at byte %d accepted", i)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"r1","amount":100,"customer":{"email":"a@b.c"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventChargeSuccess, ev.Event)
	assert.Equal(t, "r1", ev.Data.Reference)
	assert.Equal(t, int64(100), ev.Data.Amount)
	assert.Equal(t, "a@b.c", ev.Data.Customer.Email)

	_, err = ParseEvent([]byte(`{"event":"charge.success","data":{}}`))
	require.ErrorIs(t, err, ErrMissingReference)

	ev, err = ParseEvent([]byte(`{"event":"transfer.success","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "transfer.success", ev.Event)

	_, err = ParseEvent([]byte(`not json`))
	require.Error(t, err)
}
