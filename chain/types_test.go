package chain

import (
	"errors"
	"testing"
)

func TestShortStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "ERC721", "ERC1155_WITH_CRITERIA", "FULL_OPEN"} {
		encoded, err := EncodeShortString(s)
		if err != nil {
			t.Fatalf("EncodeShortString(%q): %v", s, err)
		}
		if got := DecodeShortString(encoded); got != s {
			t.Errorf("round trip of %q produced %q", s, got)
		}
	}
}

func TestShortStringTooLong(t *testing.T) {
	if _, err := EncodeShortString("THIS_SYMBOL_IS_DEFINITELY_TOO_LONG"); err == nil {
		t.Error("expected error for over-long short string")
	}
}

func TestItemTypeCodecRoundTrip(t *testing.T) {
	for itemType := ItemTypeNative; itemType <= ItemTypeERC1155WithCriteria; itemType++ {
		wire, err := EncodeItemType(itemType)
		if err != nil {
			t.Fatalf("EncodeItemType(%d): %v", itemType, err)
		}
		decoded, err := DecodeItemType(wire)
		if err != nil {
			t.Fatalf("DecodeItemType: %v", err)
		}
		if decoded != itemType {
			t.Errorf("item type %d round-tripped to %d", itemType, decoded)
		}
	}
}

func TestOrderKindCodecRoundTrip(t *testing.T) {
	for kind := OrderKindFullOpen; kind <= OrderKindPartialRestricted; kind++ {
		wire, err := EncodeOrderKind(kind)
		if err != nil {
			t.Fatalf("EncodeOrderKind(%d): %v", kind, err)
		}
		decoded, err := DecodeOrderKind(wire)
		if err != nil {
			t.Fatalf("DecodeOrderKind: %v", err)
		}
		if decoded != kind {
			t.Errorf("order kind %d round-tripped to %d", kind, decoded)
		}
	}
}

func TestDecodeUnknownEnumValues(t *testing.T) {
	junk, _ := EncodeShortString("NOT_A_REAL_SYMBOL")

	if _, err := DecodeItemType(junk); !errors.Is(err, ErrUnknownEnumValue) {
		t.Errorf("expected ErrUnknownEnumValue for item type, got %v", err)
	}
	if _, err := DecodeOrderKind(junk); !errors.Is(err, ErrUnknownEnumValue) {
		t.Errorf("expected ErrUnknownEnumValue for order kind, got %v", err)
	}
	if _, err := DecodeOrderStatus(junk); !errors.Is(err, ErrUnknownEnumValue) {
		t.Errorf("expected ErrUnknownEnumValue for order status, got %v", err)
	}
}

func TestEncodeOrderParametersUnknownEnum(t *testing.T) {
	params := &OrderParameters{
		Offer:     []OfferItem{{ItemType: ItemType(99)}},
		OrderKind: OrderKindFullOpen,
	}
	if _, err := EncodeOrderParameters(params, nil); !errors.Is(err, ErrUnknownEnumValue) {
		t.Errorf("expected ErrUnknownEnumValue, got %v", err)
	}
}

func TestExchangeABIParses(t *testing.T) {
	exchangeABI := GetExchangeABI()

	for _, name := range []string{
		"nonces", "get_order_hash", "get_order_details",
		"register_order", "cancel_order", "fulfill_orders",
	} {
		if _, ok := exchangeABI.Methods[name]; !ok {
			t.Errorf("exchange ABI missing method %s", name)
		}
	}
}
