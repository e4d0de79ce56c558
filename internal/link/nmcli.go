package link

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// nmcli constants.
const (
	nmcliBinary = "nmcli"

	// nmcliStateConnected is the NetworkManager device state for "connected".
	nmcliStateConnected = "100"

	// defaultAssociateWait is passed to nmcli --wait when ctx has no deadline.
	defaultAssociateWait = 10 * time.Second

	// pskSecret is the passwd-file key for a WPA passphrase.
	pskSecret = "802-11-wireless-security.psk"

	// pskNotSaved is NM_SETTING_SECRET_FLAG_NOT_SAVED: the profile never
	// stores the passphrase, it is supplied on each activation.
	pskNotSaved = "2"
)

// CommandRunner runs an external command, feeding it stdin when non-nil,
// and returns its standard output.
type CommandRunner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// execRunner runs commands with os/exec.
func execRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// NMCLIDriver drives a WiFi interface through the NetworkManager CLI.
type NMCLIDriver struct {
	iface string
	run   CommandRunner
}

// NewNMCLIDriver creates a driver for the named wireless interface.
func NewNMCLIDriver(iface string) *NMCLIDriver {
	return &NMCLIDriver{iface: iface, run: execRunner}
}

// NewNMCLIDriverWithRunner creates a driver that executes commands through run.
func NewNMCLIDriverWithRunner(iface string, run CommandRunner) *NMCLIDriver {
	return &NMCLIDriver{iface: iface, run: run}
}

// Associate asks NetworkManager to join ssid on the driver's interface.
//
// Open networks are joined directly. For a secured network the passphrase
// never appears on a command line: a profile named after the SSID is created
// with an unsaved secret if missing, then activated with the passphrase read
// from stdin.
func (d *NMCLIDriver) Associate(ctx context.Context, ssid, passphrase string) error {
	wait := defaultAssociateWait
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	waitSeconds := strconv.Itoa(max(int(math.Ceil(wait.Seconds())), 1))

	if passphrase == "" {
		if _, err := d.run(ctx, nil, nmcliBinary,
			"--wait", waitSeconds,
			"device", "wifi", "connect", ssid,
			"ifname", d.iface,
		); err != nil {
			return fmt.Errorf("nmcli connect: %w", err)
		}
		return nil
	}

	if err := d.ensureProfile(ctx, ssid); err != nil {
		return err
	}
	secret := []byte(pskSecret + ":" + passphrase + "\n")
	if _, err := d.run(ctx, secret, nmcliBinary,
		"--wait", waitSeconds,
		"connection", "up", "id", ssid,
		"ifname", d.iface,
		"passwd-file", "/dev/stdin",
	); err != nil {
		return fmt.Errorf("nmcli connection up: %w", err)
	}
	return nil
}

// ensureProfile creates a WPA-PSK profile for ssid unless one already exists.
func (d *NMCLIDriver) ensureProfile(ctx context.Context, ssid string) error {
	out, err := d.run(ctx, nil, nmcliBinary, "-t", "-f", "NAME", "connection", "show")
	if err != nil {
		return fmt.Errorf("nmcli connection show: %w", err)
	}
	if hasProfile(out, ssid) {
		return nil
	}

	if _, err := d.run(ctx, nil, nmcliBinary,
		"connection", "add",
		"type", "wifi",
		"con-name", ssid,
		"ifname", d.iface,
		"ssid", ssid,
		"wifi-sec.key-mgmt", "wpa-psk",
		"wifi-sec.psk-flags", pskNotSaved,
	); err != nil {
		return fmt.Errorf("nmcli connection add: %w", err)
	}
	return nil
}

// hasProfile reports whether `nmcli -t -f NAME connection show` lists name.
func hasProfile(out []byte, name string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if splitTerse(scanner.Text())[0] == name {
			return true
		}
	}
	return false
}

// Probe reads device state, address, and the active access point's signal.
func (d *NMCLIDriver) Probe(ctx context.Context) (Probe, error) {
	out, err := d.run(ctx, nil, nmcliBinary,
		"-t", "-f", "GENERAL.STATE,IP4.ADDRESS",
		"device", "show", d.iface,
	)
	if err != nil {
		return Probe{}, fmt.Errorf("nmcli device show: %w", err)
	}
	probe := parseDeviceShow(out)
	if !probe.Associated {
		return probe, nil
	}

	out, err = d.run(ctx, nil, nmcliBinary,
		"-t", "-f", "ACTIVE,SSID,SIGNAL",
		"device", "wifi", "list", "ifname", d.iface, "--rescan", "no",
	)
	if err != nil {
		return Probe{}, fmt.Errorf("nmcli wifi list: %w", err)
	}
	ssid, signal, ok := parseActiveAccessPoint(out)
	if !ok {
		// Device reports connected but no active access point: treat as not yet associated.
		return Probe{}, nil
	}
	probe.SSID = ssid
	probe.RSSI = signalToDBm(signal)

	return probe, nil
}

// parseDeviceShow parses `nmcli -t -f GENERAL.STATE,IP4.ADDRESS device show` output.
func parseDeviceShow(out []byte) Probe {
	var probe Probe
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		switch {
		case key == "GENERAL.STATE":
			probe.Associated = strings.HasPrefix(strings.TrimSpace(value), nmcliStateConnected)
		case strings.HasPrefix(key, "IP4.ADDRESS") && probe.Address == "":
			addr, _, _ := strings.Cut(strings.TrimSpace(value), "/")
			probe.Address = addr
		}
	}
	return probe
}

// parseActiveAccessPoint finds the in-use row of `nmcli -t -f ACTIVE,SSID,SIGNAL device wifi list`.
func parseActiveAccessPoint(out []byte) (ssid string, signal int, ok bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := splitTerse(scanner.Text())
		if len(fields) != 3 || fields[0] != "yes" {
			continue
		}
		signal, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		return fields[1], signal, true
	}
	return "", 0, false
}

// splitTerse splits an nmcli terse line on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var current strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, current.String())
}

// signalToDBm converts NetworkManager's 0-100 signal quality to approximate dBm.
func signalToDBm(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return quality/2 - 100
}
