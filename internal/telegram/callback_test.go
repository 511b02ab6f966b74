package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    callback
		wantErr bool
	}{
		{data: "main_menu", want: callback{action: actionMainMenu}},
		{data: "sub", want: callback{action: actionSub}},
		{data: "trial", want: callback{action: actionTrial}},
		{data: "key", want: callback{action: actionKey}},
		{data: "ref", want: callback{action: actionRef}},
		{data: "connect_android", want: callback{action: actionConnectAndroid}},
		{data: "connect_ios", want: callback{action: actionConnectIOS}},
		{data: "sub_3", want: callback{action: actionSubPeriod, months: 3}},
		{data: "check_2d8f1c3a-000f-5000-9000-1b2c3d4e5f60", want: callback{action: actionCheck, handle: "2d8f1c3a-000f-5000-9000-1b2c3d4e5f60"}},
		{data: "sub_x", wantErr: true},
		{data: "sub_0", wantErr: true},
		{data: "sub_-1", wantErr: true},
		{data: "check_", wantErr: true},
		{data: "trial_5_days", wantErr: true},
		{data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallback(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, errUnknownCallback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallbackDataFitsLimit(t *testing.T) {
	handle := strings.Repeat("a", 36)
	assert.LessOrEqual(t, len(checkData(handle)), callbackDataLimit)
	assert.Equal(t, "sub_6", subPeriodData(6))
}
