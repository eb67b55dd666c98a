// keyed.go — keyed map specs: per-glyph feature/item/monster overrides.
//
// A KFEAT/KITEM/KMONS directive has the shape "<key> = <spec>" where <key>
// is a single placement glyph. All three directives for one key share one
// KeyedMapSpec, created lazily on first reference; keys are unique per map
// definition.
//
// A feature spec is a '/'-separated weighted list. Each alternative is
// either a feature name resolved through FeatureLookup, or a single glyph,
// which means "whatever feature this glyph normally produces".
package mapdef

import (
	"fmt"
	"math/rand"
	"strings"
)

// FeatureSpec is one feature alternative: a resolved feature id, or a glyph
// reference when Glyph is non-zero.
type FeatureSpec struct {
	Feat   int
	Glyph  byte
	Weight int
}

// KeyedMapSpec holds the overrides attached to one placement glyph.
type KeyedMapSpec struct {
	Key  byte
	Feat featSlot
	Item *ItemList
	Mons *MonsList
}

type featSlot struct {
	Slot[FeatureSpec]
	raw string
}

func newKeyedMapSpec(key byte, lookup NameTable) *KeyedMapSpec {
	return &KeyedMapSpec{
		Key:  key,
		Item: NewItemList(lookup),
		Mons: NewMonsList(lookup),
	}
}

// SetFeat replaces the feature slot from spec text.
func (k *KeyedMapSpec) SetFeat(lookup FeatureLookup, spec string, fix bool) error {
	raw := spec
	s := strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(s, "fix:"); ok {
		fix = true
		s = strings.TrimSpace(rest)
	}
	slot := featSlot{raw: raw}
	slot.Fix = fix
	for _, alt := range strings.Split(s, "/") {
		fs, err := parseFeature(lookup, alt)
		if err != nil {
			return err
		}
		slot.Alts = append(slot.Alts, Weighted[FeatureSpec]{Value: fs, Weight: fs.Weight})
	}
	if len(slot.Alts) == 0 {
		return parseErr("feature", spec)
	}
	k.Feat = slot
	return nil
}

func parseFeature(lookup FeatureLookup, frag string) (FeatureSpec, error) {
	fs := FeatureSpec{Weight: 10}
	w, s, err := stripWeight(strings.TrimSpace(frag), 10)
	if err != nil {
		return fs, err
	}
	fs.Weight = w
	if len(s) == 1 {
		fs.Glyph = s[0]
		return fs, nil
	}
	if s == "" {
		return fs, parseErr("feature", frag)
	}
	feat, ok := lookup.FeatureByName(s)
	if !ok {
		return fs, fmt.Errorf("unknown feature: %q", s)
	}
	fs.Feat = feat
	return fs, nil
}

// GetFeat picks the feature for the key, falling back to a reference to the
// key glyph itself when the slot is empty.
func (k *KeyedMapSpec) GetFeat(rng *rand.Rand) FeatureSpec {
	fs, ok := k.Feat.Pick(rng)
	if !ok {
		return FeatureSpec{Glyph: k.Key, Weight: 10}
	}
	return fs
}

// SetMons replaces the monster slot list from spec text.
func (k *KeyedMapSpec) SetMons(spec string, fix bool) error {
	k.Mons.Clear()
	return k.Mons.AddMons(spec, fix)
}

// SetItem replaces the item slot list from spec text.
func (k *KeyedMapSpec) SetItem(spec string, fix bool) error {
	k.Item.Clear()
	return k.Item.AddItem(spec, fix)
}

func (k *KeyedMapSpec) copy(lookup NameTable) *KeyedMapSpec {
	out := &KeyedMapSpec{Key: k.Key}
	out.Feat = featSlot{Slot: k.Feat.Slot.Copy(), raw: k.Feat.raw}
	out.Item = k.Item.Copy()
	out.Mons = k.Mons.Copy()
	return out
}

// splitKeyedSpec splits "<key> = <spec>" into its glyph and payload.
func splitKeyedSpec(s string) (key byte, rest string, err error) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return 0, "", parseErr("keyed", s)
	}
	k := strings.TrimSpace(s[:i])
	if len(k) != 1 {
		return 0, "", fmt.Errorf("keyed spec wants a single key glyph, got %q", k)
	}
	rest = strings.TrimSpace(s[i+1:])
	if rest == "" {
		return 0, "", parseErr("keyed", s)
	}
	return k[0], rest, nil
}
