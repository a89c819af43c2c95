// Package protocol decodes Augmenta OSC messages into typed object and scene updates.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

// Version is the Augmenta wire protocol major version.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("v%d", int(v))
	}
}

// ErrUnknownVersion is returned when a configured protocol version is not supported.
var ErrUnknownVersion = errors.New("unknown protocol version")

// ParseVersion accepts "v1", "1", "v2" or "2", case-insensitive.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return V1, nil
	case "v2", "2":
		return V2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
}

// Kind is the decoded message variant.
type Kind uint8

const (
	KindEnter Kind = iota
	KindUpdate
	KindLeave
	KindScene
)

func (k Kind) String() string {
	switch k {
	case KindEnter:
		return "enter"
	case KindUpdate:
		return "update"
	case KindLeave:
		return "leave"
	case KindScene:
		return "scene"
	default:
		return "unknown"
	}
}

// Recognized addresses, without trailing slash.
const (
	AddrV1PersonEntered   = "/au/personEntered"
	AddrV1PersonUpdated   = "/au/personUpdated"
	AddrV1PersonWillLeave = "/au/personWillLeave"
	AddrV1Scene           = "/au/scene"

	AddrV2ObjectEnter  = "/object/enter"
	AddrV2ObjectUpdate = "/object/update"
	AddrV2ObjectLeave  = "/object/leave"
	AddrV2Scene        = "/scene"

	AddrV2ObjectEnterExtra  = "/object/enter/extra"
	AddrV2ObjectUpdateExtra = "/object/update/extra"
	AddrV2ObjectLeaveExtra  = "/object/leave/extra"
)

type route struct {
	kind    Kind
	channel core.Channel
}

var routes = map[Version]map[string]route{
	V1: {
		AddrV1PersonEntered:   {KindEnter, core.ChannelMain},
		AddrV1PersonUpdated:   {KindUpdate, core.ChannelMain},
		AddrV1PersonWillLeave: {KindLeave, core.ChannelMain},
		AddrV1Scene:           {KindScene, core.ChannelMain},
	},
	V2: {
		AddrV2ObjectEnter:       {KindEnter, core.ChannelMain},
		AddrV2ObjectUpdate:      {KindUpdate, core.ChannelMain},
		AddrV2ObjectLeave:       {KindLeave, core.ChannelMain},
		AddrV2Scene:             {KindScene, core.ChannelMain},
		AddrV2ObjectEnterExtra:  {KindEnter, core.ChannelExtra},
		AddrV2ObjectUpdateExtra: {KindUpdate, core.ChannelExtra},
		AddrV2ObjectLeaveExtra:  {KindLeave, core.ChannelExtra},
	},
}

// NormalizeAddress strips a single trailing slash, so "/scene/" and "/scene" match.
func NormalizeAddress(address string) string {
	if len(address) > 1 && strings.HasSuffix(address, "/") {
		return address[:len(address)-1]
	}
	return address
}

// Lookup resolves an address for the given version.
func Lookup(v Version, address string) (Kind, core.Channel, bool) {
	r, ok := routes[v][NormalizeAddress(address)]
	return r.kind, r.channel, ok
}

// Addresses returns every recognized address of a version in a stable order.
func Addresses(v Version) []string {
	switch v {
	case V1:
		return []string{AddrV1PersonEntered, AddrV1PersonUpdated, AddrV1PersonWillLeave, AddrV1Scene}
	case V2:
		return []string{
			AddrV2ObjectEnter, AddrV2ObjectUpdate, AddrV2ObjectLeave, AddrV2Scene,
			AddrV2ObjectEnterExtra, AddrV2ObjectUpdateExtra, AddrV2ObjectLeaveExtra,
		}
	}
	return nil
}

// AddressFor returns the address used for an object message kind on a channel.
func AddressFor(v Version, kind Kind, channel core.Channel) (string, bool) {
	for addr, r := range routes[v] {
		if r.kind == kind && (kind == KindScene || r.channel == channel) {
			return addr, true
		}
	}
	return "", false
}
