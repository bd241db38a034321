// Package wifi brings the provisioning access point up and down by running
// hostapd with a generated configuration.
package wifi

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"text/template"

	"golang.org/x/crypto/pbkdf2"
)

type Config struct {
	Interface  string
	SSID       string
	Passphrase string
	Channel    int
	// Hostapd is the daemon binary; ConfPath is where its config is written.
	Hostapd  string
	ConfPath string
}

// PSK derives the 256-bit WPA2 pre-shared key from passphrase and SSID
// (IEEE 802.11i, PBKDF2-HMAC-SHA1, 4096 rounds).
func PSK(passphrase, ssid string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New)
}

var confTmpl = template.Must(template.New("hostapd").Parse(`interface={{.Interface}}
driver=nl80211
ssid={{.SSID}}
hw_mode=g
channel={{.Channel}}
auth_algs=1
wpa=2
wpa_key_mgmt=WPA-PSK
rsn_pairwise=CCMP
wpa_psk={{.PSK}}
`))

// RenderConfig produces a hostapd.conf for c. The passphrase never appears in
// the output, only the derived key.
func RenderConfig(c Config) ([]byte, error) {
	if l := len(c.Passphrase); l < 8 || l > 63 {
		return nil, fmt.Errorf("wpa passphrase must be 8..63 characters, got %d", l)
	}
	ch := c.Channel
	if ch == 0 {
		ch = 6
	}
	var buf bytes.Buffer
	err := confTmpl.Execute(&buf, struct {
		Interface, SSID, PSK string
		Channel              int
	}{c.Interface, c.SSID, hex.EncodeToString(PSK(c.Passphrase, c.SSID)), ch})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AccessPoint supervises one hostapd process.
type AccessPoint struct {
	cfg Config

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewAccessPoint(cfg Config) *AccessPoint { return &AccessPoint{cfg: cfg} }

func (ap *AccessPoint) Up(ctx context.Context) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.cmd != nil {
		return nil
	}
	conf, err := RenderConfig(ap.cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ap.cfg.ConfPath), 0o755); err != nil {
		return fmt.Errorf("hostapd conf dir: %w", err)
	}
	if err := os.WriteFile(ap.cfg.ConfPath, conf, 0o600); err != nil {
		return fmt.Errorf("write hostapd conf: %w", err)
	}
	// Not bound to ctx: the AP outlives the request that raised it.
	cmd := exec.Command(ap.cfg.Hostapd, ap.cfg.ConfPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start hostapd: %w", err)
	}
	ap.cmd = cmd
	log.Printf("access point %q up on %s (pid %d)", ap.cfg.SSID, ap.cfg.Interface, cmd.Process.Pid)
	return nil
}

func (ap *AccessPoint) Down(ctx context.Context) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.cmd == nil {
		return nil
	}
	cmd := ap.cmd
	ap.cmd = nil
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("stop hostapd: %w", err)
	}
	cmd.Wait()
	log.Printf("access point %q down", ap.cfg.SSID)
	return nil
}

// NoopAccessPoint is used when the host network is managed elsewhere.
type NoopAccessPoint struct{}

func (NoopAccessPoint) Up(context.Context) error   { return nil }
func (NoopAccessPoint) Down(context.Context) error { return nil }
