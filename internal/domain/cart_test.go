package domain

import (
	"reflect"
	"testing"
)

func TestCart_AddAndSet(t *testing.T) {
	cart := NewCart()

	cart.Add("b1", 1)
	cart.Add("b1", 2)
	if cart["b1"] != 3 {
		t.Errorf("expected quantity 3, got %d", cart["b1"])
	}

	cart.Add("b2", 0)
	if _, ok := cart["b2"]; ok {
		t.Error("expected non-positive add to be ignored")
	}

	cart.Set("b1", 5)
	if cart["b1"] != 5 {
		t.Errorf("expected quantity 5, got %d", cart["b1"])
	}

	cart.Set("b1", 0)
	if _, ok := cart["b1"]; ok {
		t.Error("expected set to zero to remove the line")
	}
}

func TestCart_Count(t *testing.T) {
	cart := NewCart()
	if cart.Count() != 0 {
		t.Errorf("expected empty cart count 0, got %d", cart.Count())
	}

	cart.Add("b1", 2)
	cart.Add("b2", 1)
	if cart.Count() != 3 {
		t.Errorf("expected count 3, got %d", cart.Count())
	}
}

func TestCart_BookIDsSorted(t *testing.T) {
	cart := NewCart()
	cart.Add("zulu", 1)
	cart.Add("alpha", 1)
	cart.Add("mike", 1)

	want := []string{"alpha", "mike", "zulu"}
	if got := cart.BookIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCart_CloneIsIndependent(t *testing.T) {
	cart := NewCart()
	cart.Add("b1", 2)

	clone := cart.Clone()
	clone.Add("b1", 1)

	if cart["b1"] != 2 {
		t.Errorf("expected original cart untouched, got %d", cart["b1"])
	}
}
