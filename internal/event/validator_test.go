package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sentry/internal/domain"
)

// Valid base58-encoded 32-byte keys.
const (
	testMint   = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func validTradeMessage() *Message {
	return &Message{
		Signature:       "sig1",
		Mint:            testMint,
		TraderPublicKey: testWallet,
		TxType:          TxTypeBuy,
		SolAmount:       1_500_000_000,
		Slot:            250000000,
		Timestamp:       1704067200000,
	}
}

func TestDecode(t *testing.T) {
	raw := []byte(`{"signature":"sig1","mint":"` + testMint + `","traderPublicKey":"` + testWallet + `","txType":"buy","solAmount":1500000000,"slot":250000000}`)

	m, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "sig1", m.Signature)
	assert.Equal(t, TxTypeBuy, m.TxType)
	assert.Equal(t, int64(1_500_000_000), m.SolAmount)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	require.Error(t, err)

	var malformed *MalformedEventError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "payload", malformed.Field)
}

func TestValidateTrade(t *testing.T) {
	e, err := ValidateTrade(validTradeMessage(), 0)
	require.NoError(t, err)

	assert.Equal(t, "sig1", e.ID)
	assert.Equal(t, testMint, e.Mint)
	assert.Equal(t, testWallet, e.Wallet)
	assert.Equal(t, domain.TradeSideBuy, e.Side)
	assert.Equal(t, "1.5", e.Amount.String())
	assert.False(t, e.OutOfOrder)
}

func TestValidateTrade_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Message)
		field  string
	}{
		{"missing signature", func(m *Message) { m.Signature = "" }, "signature"},
		{"missing mint", func(m *Message) { m.Mint = "" }, "mint"},
		{"bad base58 mint", func(m *Message) { m.Mint = "0OIl" }, "mint"},
		{"short mint", func(m *Message) { m.Mint = "abc" }, "mint"},
		{"missing wallet", func(m *Message) { m.TraderPublicKey = "" }, "traderPublicKey"},
		{"unknown side", func(m *Message) { m.TxType = "swap" }, "txType"},
		{"create as trade", func(m *Message) { m.TxType = TxTypeCreate }, "txType"},
		{"negative amount", func(m *Message) { m.SolAmount = -1 }, "solAmount"},
		{"missing slot", func(m *Message) { m.Slot = 0 }, "slot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validTradeMessage()
			tt.mutate(m)

			_, err := ValidateTrade(m, 0)
			require.Error(t, err)

			var malformed *MalformedEventError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestValidateTrade_TimestampFallback(t *testing.T) {
	m := validTradeMessage()
	m.Timestamp = 0

	e, err := ValidateTrade(m, 1704067299000)
	require.NoError(t, err)
	assert.Equal(t, int64(1704067299000), e.Timestamp)
}

func TestValidateCreation(t *testing.T) {
	m := &Message{
		Signature:       "csig",
		Mint:            testMint,
		TraderPublicKey: testWallet,
		TxType:          TxTypeCreate,
		InitialBuy:      2_000_000_000,
		Name:            "Test Token",
		Symbol:          "TEST",
		Slot:            250000001,
		Timestamp:       1704067200000,
	}

	e, err := ValidateCreation(m, 0)
	require.NoError(t, err)

	assert.Equal(t, testWallet, e.Creator)
	assert.Equal(t, "TEST", e.Symbol)
	assert.Equal(t, "2", e.InitialBuy.String())

	token := e.Token()
	assert.Equal(t, testMint, token.Mint)
	assert.Equal(t, testWallet, token.Creator)
	assert.Equal(t, int64(1704067200000), token.CreatedAt)
}

func TestValidateCreation_WrongTxType(t *testing.T) {
	m := validTradeMessage()

	_, err := ValidateCreation(m, 0)
	var malformed *MalformedEventError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "txType", malformed.Field)
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "0.05", LamportsToSOL(50_000_000).String())
	assert.Equal(t, "1", LamportsToSOL(1_000_000_000).String())
	assert.Equal(t, "0.000000001", LamportsToSOL(1).String())
}
