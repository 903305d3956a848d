//go:build linux

package main

import (
	sddaemon "github.com/coreos/go-systemd/v22/daemon"
)

// notifyReady tells systemd (Type=notify units) that startup finished.
func notifyReady() {
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyReady)
}

func notifyStopping() {
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
}
