package mapdef

import "testing"

func Test_Items_Parse_FullName(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("potion of healing", false))
	is := il.GetItem(0, testRand())
	if is.Class != 20 || is.Sub != 5 || is.Weight != 10 {
		t.Fatalf("got %+v", is)
	}
}

func Test_Items_Parse_AnyClass(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("any weapon", false))
	is := il.GetItem(0, testRand())
	if is.Class != testItemClasses["weapon"] || is.Sub != RandomItemSub {
		t.Fatalf("got %+v", is)
	}
}

func Test_Items_Parse_QualityTiers(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("good_item dagger", false))
	mustNoErr(t, il.AddItem("star_item", false))
	if got := il.GetItem(0, testRand()); got.Level != ItemLevelGood || got.Class != 10 {
		t.Fatalf("good_item: %+v", got)
	}
	if got := il.GetItem(1, testRand()); got.Level != ItemLevelSuperb || got.Class != RandomItemClass {
		t.Fatalf("bare star_item: %+v", got)
	}
}

func Test_Items_Parse_MimicAndEnchant(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("mimic dagger (3)", false))
	is := il.GetItem(0, testRand())
	if !is.Mimic || is.Class != 10 || is.Plus != 3 {
		t.Fatalf("got %+v", is)
	}

	// "mimic" is a qualifier only as a whole word; an item whose name
	// merely starts with it is just an item.
	mustNoErr(t, il.AddItem("mimicry tonic", false))
	if got := il.GetItem(1, testRand()); got.Mimic || got.Class != 20 || got.Sub != 6 {
		t.Fatalf("got %+v", got)
	}

	mustNoErr(t, il.AddItem("mimic", false))
	if got := il.GetItem(2, testRand()); !got.Mimic || got.Class != RandomItemClass {
		t.Fatalf("bare mimic: %+v", got)
	}
}

func Test_Items_Parse_RandomNothingUnknown(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("any", false))
	mustNoErr(t, il.AddItem("nothing", false))
	mustErr(t, il.AddItem("vorpal blade of doom", false))
	if got := il.GetItem(0, testRand()).Class; got != RandomItemClass {
		t.Fatalf("any -> class %d", got)
	}
	if got := il.GetItem(1, testRand()).Class; got != NoItem {
		t.Fatalf("nothing -> class %d", got)
	}
}

func Test_Items_Alternatives_WeightsRespected(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("w:30 dagger / gold piece", false))
	rng := testRand()
	daggers := 0
	for i := 0; i < 200; i++ {
		if il.GetItem(0, rng).Class == 10 {
			daggers++
		}
	}
	// 30:10 odds: daggers must clearly dominate.
	if daggers <= 100 {
		t.Fatalf("weight 30 alternative drawn only %d/200 times", daggers)
	}
}

func Test_Items_SetItem_ReplacesSlot(t *testing.T) {
	il := NewItemList(testTable{})
	mustNoErr(t, il.AddItem("dagger", false))
	mustNoErr(t, il.SetItem(0, "gold piece"))
	if got := il.GetItem(0, testRand()).Class; got != 30 {
		t.Fatalf("SetItem did not replace: class %d", got)
	}
	mustErr(t, il.SetItem(3, "dagger"))
}
