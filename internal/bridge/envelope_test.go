package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockgate/internal/dbf"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		Prefix: PrefixAsset,
		Asset:  []dbf.Row{{dbf.ColAccount: "100001", "S3": "1000.00"}},
		Loan:   []dbf.Row{{dbf.ColSymbol: "600000", "QTY": "500"}},
	}
	payload, err := env.Encode()
	require.NoError(t, err)

	got, err := DecodeEnvelope(payload)
	require.NoError(t, err)
	assert.Equal(t, KindAsset, got.Kind())
	assert.Equal(t, env.Asset, got.Asset)
	assert.Equal(t, env.Loan, got.Loan)
}

func TestEnvelopeUnknownPrefix(t *testing.T) {
	got, err := DecodeEnvelope([]byte(`{"prefix":"Mystery","data":[]}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, got.Kind())

	_, err = DecodeEnvelope([]byte(`{not json`))
	assert.Error(t, err)
}

func TestChannelNaming(t *testing.T) {
	assert.Equal(t, "snapshots|100001", Channel("snapshots", "100001"))
}

func TestValidateCommand(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		ok      bool
	}{
		{
			name:    "valid insert",
			payload: `{"action":"io","data":[["O","01093001-1","0","100001","","600000","1","100","10.50","0"]]}`,
			ok:      true,
		},
		{
			name:    "valid cancel",
			payload: `{"action":"del","data":[["C","","0","100001","EX001"]]}`,
			ok:      true,
		},
		{
			name:    "unknown action",
			payload: `{"action":"drop","data":[["C","","0","100001","EX001"]]}`,
			ok:      false,
		},
		{
			name:    "tuple too short",
			payload: `{"action":"del","data":[["C","","0"]]}`,
			ok:      false,
		},
		{
			name:    "empty data",
			payload: `{"action":"io","data":[]}`,
			ok:      false,
		},
		{
			name:    "non-string tuple member",
			payload: `{"action":"io","data":[["O","01093001-1","0","100001","","600000","1",100,"10.50","0"]]}`,
			ok:      false,
		},
		{
			name:    "not json",
			payload: `io please`,
			ok:      false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCommand([]byte(tc.payload))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cmd := Command{Action: ActionInsertOrder, Data: [][]string{{"O", "01093001-1", "0", "100001", "", "600000", "1", "100", "10.50", "0"}}}
	payload, err := cmd.Encode()
	require.NoError(t, err)
	require.NoError(t, ValidateCommand(payload))

	got, err := DecodeCommand(payload)
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
}
