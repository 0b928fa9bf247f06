// Package assets maps the closed set of drawable names (agents, weapons, maps, icons)
// to decoded images.
package assets

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind groups asset keys.
type Kind int

const (
	KindAgent Kind = iota
	KindWeapon
	KindMap
	KindIcon
)

func (k Kind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindWeapon:
		return "weapon"
	case KindMap:
		return "map"
	case KindIcon:
		return "icon"
	}
	return "unknown"
}

// Key is one enumerated asset. The zero value is the Brimstone agent icon.
type Key struct {
	Kind  Kind
	Index int
}

var agentNames = []string{
	"Brimstone", "Viper", "Omen", "Killjoy", "Cypher", "Sova", "Sage", "Phoenix",
	"Jett", "Reyna", "Raze", "Breach", "Skye", "Yoru", "Astra", "Kayo",
	"Chamber", "Neon", "Fade", "Harbor", "Gekko", "Deadlock",
}

var weaponNames = []string{
	"Classic", "Shorty", "Frenzy", "Ghost", "Sheriff",
	"Stinger", "Spectre", "Bucky", "Judge",
	"Bulldog", "Guardian", "Phantom", "Vandal",
	"Marshal", "Outlaw", "Operator", "Ares", "Odin",
	"Knife",
}

var mapNames = []string{
	"Ascent", "Bind", "Haven", "Split", "Icebox",
	"Breeze", "Fracture", "Pearl", "Lotus", "Sunset",
}

var iconNames = []string{
	"Dormant", "Killed", "Spike", "Switch", "HeavyShield", "LightShield",
}

// Icons
var (
	IconDormant     = Key{KindIcon, 0}
	IconKilled      = Key{KindIcon, 1}
	IconSpike       = Key{KindIcon, 2}
	IconSwitch      = Key{KindIcon, 3}
	IconHeavyShield = Key{KindIcon, 4}
	IconLightShield = Key{KindIcon, 5}
)

// Agent returns the key for an agent id (0..21). Out-of-range ids yield an invalid key.
func Agent(id int) Key {
	return Key{KindAgent, id}
}

// Weapon returns the key for a weapon id.
func Weapon(id int) Key {
	return Key{KindWeapon, id}
}

// AgentCount is the number of agent ids.
func AgentCount() int { return len(agentNames) }

// WeaponCount is the number of weapon ids.
func WeaponCount() int { return len(weaponNames) }

// Map looks up a map by name, case-insensitively.
func Map(name string) (Key, error) {
	for i, n := range mapNames {
		if strings.EqualFold(n, name) {
			return Key{KindMap, i}, nil
		}
	}
	return Key{}, errors.Wrapf(ErrUnknownKey, "map %q", name)
}

// MapNames lists the selectable maps.
func MapNames() []string {
	return append([]string(nil), mapNames...)
}

func names(k Kind) []string {
	switch k {
	case KindAgent:
		return agentNames
	case KindWeapon:
		return weaponNames
	case KindMap:
		return mapNames
	case KindIcon:
		return iconNames
	}
	return nil
}

// Valid reports whether the key belongs to the enumerated set.
func (k Key) Valid() bool {
	return k.Index >= 0 && k.Index < len(names(k.Kind))
}

// Name is the asset's logical name, also its file stem. Empty for invalid keys.
func (k Key) Name() string {
	if !k.Valid() {
		return ""
	}
	return names(k.Kind)[k.Index]
}

func (k Key) String() string {
	if !k.Valid() {
		return fmt.Sprintf("%s#%d", k.Kind, k.Index)
	}
	return k.Kind.String() + ":" + k.Name()
}

// AllKeys enumerates every key, agents first.
func AllKeys() []Key {
	var keys []Key
	for _, kind := range []Kind{KindAgent, KindWeapon, KindMap, KindIcon} {
		for i := range names(kind) {
			keys = append(keys, Key{kind, i})
		}
	}
	return keys
}
