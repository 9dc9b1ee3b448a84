// Package topics is the codec for the hydroplant/ topic hierarchy: pure
// functions that parse, classify and synthesize slash-separated topics.
package topics

import (
	"errors"
	"strings"
)

const Prefix = "hydroplant/"

// Fixed control topics.
const (
	Device             = "hydroplant/device"
	Log                = "hydroplant/log"
	Ready              = "hydroplant/ready"
	IsReady            = "hydroplant/is_ready"
	Measurement        = "hydroplant/measurement"
	Command            = "hydroplant/command"
	GUICommand         = "hydroplant/gui_command"
	AutonomyToggle     = "hydroplant/gui_command/autonomy"
	GUITopics          = "hydroplant/gui/topics"
	GUISync            = "hydroplant/gui/sync"
	GUILog             = "hydroplant/gui/log"
	DisconnectedDevice = "hydroplant/disconnected/devices"
	DisconnectedMaster = "hydroplant/disconnected/master_controller"
)

const receiptSuffix = "/receipt"

// ErrMalformedTopic reports a topic with no floor segment where the
// caller required one.
var ErrMalformedTopic = errors.New("topic has no floor segment")

// Kind classifies a topic against the fixed control-plane surface.
type Kind int

const (
	KindOther Kind = iota
	KindDeviceAnnounce
	KindGUICommand
	KindReceipt
	KindMeasurement
	KindDisconnectDevice
	KindDisconnectMaster
	KindIsReady
	KindAutonomyToggle
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindDeviceAnnounce:
		return "device_announce"
	case KindGUICommand:
		return "gui_command"
	case KindReceipt:
		return "receipt"
	case KindMeasurement:
		return "measurement"
	case KindDisconnectDevice:
		return "disconnect_device"
	case KindDisconnectMaster:
		return "disconnect_master"
	case KindIsReady:
		return "is_ready"
	case KindAutonomyToggle:
		return "autonomy_toggle"
	case KindLog:
		return "log"
	default:
		return "other"
	}
}

// Classify maps a concrete topic to its Kind. Exact matches win over
// prefix and suffix matches.
func Classify(t string) Kind {
	switch t {
	case Device:
		return KindDeviceAnnounce
	case AutonomyToggle:
		return KindAutonomyToggle
	case IsReady:
		return KindIsReady
	case DisconnectedDevice:
		return KindDisconnectDevice
	case DisconnectedMaster:
		return KindDisconnectMaster
	case Log:
		return KindLog
	}
	if IsReceipt(t) {
		return KindReceipt
	}
	switch {
	case strings.HasPrefix(t, GUICommand+"/"):
		return KindGUICommand
	case strings.HasPrefix(t, Measurement+"/"):
		return KindMeasurement
	case strings.HasPrefix(t, Log+"/"):
		return KindLog
	}
	return KindOther
}

// IsReceipt reports whether t ends with /receipt. The suffix must close
// the topic; a receipt segment in the middle does not count.
func IsReceipt(t string) bool {
	return strings.HasSuffix(t, receiptSuffix)
}

// StripReceipt removes a trailing /receipt suffix if present.
func StripReceipt(t string) string {
	return strings.TrimSuffix(t, receiptSuffix)
}

// Floor returns the first path segment beginning with "floor", or "".
func Floor(t string) string {
	return segmentWithPrefix(t, "floor")
}

// Stage returns the first path segment beginning with "stage", or "".
func Stage(t string) string {
	return segmentWithPrefix(t, "stage")
}

// Node returns the second-to-last path segment.
func Node(t string) string {
	parts := strings.Split(t, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// Part returns the last path segment.
func Part(t string) string {
	parts := strings.Split(t, "/")
	return parts[len(parts)-1]
}

// UniqueID extracts floor/[stage/]node/part from a topic: every segment
// from the first floor segment onward. Fails when no floor segment is
// present.
func UniqueID(t string) (string, error) {
	parts := strings.Split(t, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "floor") {
			return strings.Join(parts[i:], "/"), nil
		}
	}
	return "", ErrMalformedTopic
}

// CommandTopic synthesizes the command topic for a unique id.
func CommandTopic(uniqueID string) string {
	return Command + "/" + uniqueID
}

// ReceiptTopic synthesizes the receipt topic for a unique id.
func ReceiptTopic(uniqueID string) string {
	return CommandTopic(uniqueID) + receiptSuffix
}

// GUICommandTopic synthesizes the gui_command topic for a unique id.
func GUICommandTopic(uniqueID string) string {
	return GUICommand + "/" + uniqueID
}

func segmentWithPrefix(t, prefix string) string {
	for _, p := range strings.Split(t, "/") {
		if strings.HasPrefix(p, prefix) {
			return p
		}
	}
	return ""
}
