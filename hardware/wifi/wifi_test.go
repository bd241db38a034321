package wifi_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/rfidgate/hardware/wifi"
)

// IEEE 802.11i-2004, Annex H.4.1 test vector.
func TestPSK_KnownVector(t *testing.T) {
	got := hex.EncodeToString(wifi.PSK("password", "IEEE"))
	require.Equal(t, "f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e", got)
}

func TestRenderConfig(t *testing.T) {
	conf, err := wifi.RenderConfig(wifi.Config{
		Interface:  "wlan0",
		SSID:       "RFID register",
		Passphrase: "robotics",
	})
	require.NoError(t, err)

	s := string(conf)
	require.Contains(t, s, "interface=wlan0\n")
	require.Contains(t, s, "ssid=RFID register\n")
	require.Contains(t, s, "channel=6\n")
	require.Contains(t, s, "wpa_psk="+hex.EncodeToString(wifi.PSK("robotics", "RFID register"))+"\n")
	require.False(t, strings.Contains(s, "robotics"), "passphrase must not be written out")
}

func TestRenderConfig_RejectsShortPassphrase(t *testing.T) {
	_, err := wifi.RenderConfig(wifi.Config{SSID: "x", Passphrase: "short"})
	require.Error(t, err)
}
