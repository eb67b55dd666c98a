// items.go — the item placement-spec grammar.
//
// An ITEM spec mirrors the monster grammar: '/'-separated weighted
// alternatives, default weight 10, with item-specific qualifiers:
//
//	w:<n>          selection weight
//	(<n>)          trailing enchantment level
//	any <class>    random item of a named class ("any weapon")
//	any | random   fully random item
//	nothing        no item in this slot
//	good_item      quality tier: good
//	star_item      quality tier: superb
//	mimic <spec>   leading qualifier: the item is a mimic of the wrapped spec
//	fix:<spec>     freeze marker on the whole spec
//
// Full names resolve through ItemLookup.ItemByName, class wildcards through
// ItemClassByName.
package mapdef

import (
	"fmt"
	"math/rand"
	"strings"
)

// Sentinel item identifiers.
const (
	RandomItemClass = -1
	RandomItemSub   = -1
	NoItem          = -2
)

// Quality tiers selected by good_item / star_item.
const (
	ItemLevelDefault = -1
	ItemLevelGood    = -2
	ItemLevelSuperb  = -3
)

// ItemSpec is one item placement descriptor.
type ItemSpec struct {
	Class  int // item class id, RandomItemClass or NoItem
	Sub    int // subtype id or RandomItemSub
	Plus   int // enchantment, 0 when unspecified
	Level  int // quality tier (ItemLevel*)
	Weight int
	Mimic  bool
}

// ItemList is an ordered sequence of item slots, one per numeric map glyph.
type ItemList struct {
	lookup ItemLookup
	slots  []*itemSlot
}

type itemSlot struct {
	Slot[ItemSpec]
	raw string
}

// NewItemList builds an empty list resolving names through lookup.
func NewItemList(lookup ItemLookup) *ItemList {
	return &ItemList{lookup: lookup}
}

// Size is the number of populated slots.
func (il *ItemList) Size() int { return len(il.slots) }

// Clear drops every slot.
func (il *ItemList) Clear() { il.slots = nil }

// AddItem parses spec and appends a new slot.
func (il *ItemList) AddItem(spec string, fixSlot bool) error {
	slot, err := il.parseSpec(spec, fixSlot)
	if err != nil {
		return err
	}
	il.slots = append(il.slots, slot)
	return nil
}

// SetItem replaces slot i outright. i may be one past the end, which
// appends.
func (il *ItemList) SetItem(i int, spec string) error {
	if i < 0 || i > len(il.slots) {
		return fmt.Errorf("item slot %d out of range (have %d)", i, len(il.slots))
	}
	slot, err := il.parseSpec(spec, false)
	if err != nil {
		return err
	}
	if i == len(il.slots) {
		il.slots = append(il.slots, slot)
	} else {
		il.slots[i] = slot
	}
	return nil
}

// GetItem picks from slot i. Using an index that cannot exist is a
// programming error.
func (il *ItemList) GetItem(i int, rng *rand.Rand) ItemSpec {
	if i < 0 || i >= len(il.slots) {
		panic(fmt.Sprintf("mapdef: item slot %d out of range (have %d)", i, len(il.slots)))
	}
	spec, ok := il.slots[i].Pick(rng)
	if !ok {
		return ItemSpec{Class: RandomItemClass, Sub: RandomItemSub, Level: ItemLevelDefault, Weight: 10}
	}
	return spec
}

// RawSpecs returns the literal spec text per slot, for persistence.
func (il *ItemList) RawSpecs() []string {
	out := make([]string, len(il.slots))
	for i, s := range il.slots {
		out[i] = s.raw
	}
	return out
}

// FixFlags returns each slot's freeze flag, index-aligned with RawSpecs.
func (il *ItemList) FixFlags() []bool {
	out := make([]bool, len(il.slots))
	for i, s := range il.slots {
		out[i] = s.Fix
	}
	return out
}

// Copy returns a deep copy with every memoized pick discarded.
func (il *ItemList) Copy() *ItemList {
	out := &ItemList{lookup: il.lookup}
	for _, s := range il.slots {
		out.slots = append(out.slots, &itemSlot{Slot: s.Slot.Copy(), raw: s.raw})
	}
	return out
}

func (il *ItemList) parseSpec(spec string, fixSlot bool) (*itemSlot, error) {
	raw := spec
	s := strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(s, "fix:"); ok {
		fixSlot = true
		s = strings.TrimSpace(rest)
	}
	slot := &itemSlot{raw: raw}
	slot.Fix = fixSlot
	for _, alt := range strings.Split(s, "/") {
		is, err := il.parseOne(alt)
		if err != nil {
			return nil, err
		}
		slot.Alts = append(slot.Alts, Weighted[ItemSpec]{Value: is, Weight: is.Weight})
	}
	if len(slot.Alts) == 0 {
		return nil, parseErr("item", spec)
	}
	return slot, nil
}

func (il *ItemList) parseOne(frag string) (ItemSpec, error) {
	is := ItemSpec{Class: RandomItemClass, Sub: RandomItemSub, Level: ItemLevelDefault, Weight: 10}
	s := strings.TrimSpace(frag)

	var found bool
	if s, found = stripTag(s, "good_item"); found {
		is.Level = ItemLevelGood
	}
	if s, found = stripTag(s, "star_item"); found {
		is.Level = ItemLevelSuperb
	}
	w, s, err := stripWeight(s, 10)
	if err != nil {
		return is, err
	}
	is.Weight = w

	s, plus, hasPlus, err := stripParenNumber(s)
	if err != nil {
		return is, parseErr("item", frag)
	}
	if hasPlus {
		is.Plus = plus
	}

	if s == "mimic" {
		// A bare mimic copies a random item.
		is.Mimic = true
		return is, nil
	}
	if rest, ok := strings.CutPrefix(s, "mimic "); ok {
		is.Mimic = true
		s = strings.TrimSpace(rest)
	}

	switch s {
	case "":
		if is.Level != ItemLevelDefault {
			// good_item / star_item alone pick a random item of that tier.
			return is, nil
		}
		return is, parseErr("item", frag)
	case "random", "any":
		return is, nil
	case "nothing":
		is.Class = NoItem
		return is, nil
	}

	// Random-by-class wildcard: "any <class>".
	if class, ok := strings.CutPrefix(s, "any "); ok {
		id, ok := il.lookup.ItemClassByName(strings.TrimSpace(class))
		if !ok {
			return is, fmt.Errorf("unknown item class: %q", strings.TrimSpace(class))
		}
		is.Class = id
		return is, nil
	}

	class, sub, ok := il.lookup.ItemByName(s)
	if !ok {
		return is, fmt.Errorf("unknown item: %q", s)
	}
	is.Class, is.Sub = class, sub
	return is, nil
}
