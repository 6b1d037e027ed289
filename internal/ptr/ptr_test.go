package ptr_test

import (
	"testing"

	"github.com/myrjola/liftscore/internal/ptr"
)

func TestRef(t *testing.T) {
	v := 0.75
	p := ptr.Ref(v)
	v = 1.5
	if *p != 0.75 {
		t.Errorf("Ref() = %v, want copy 0.75", *p)
	}
}

func TestDeref(t *testing.T) {
	if got := ptr.Deref[float64](nil, 1); got != 1 {
		t.Errorf("Deref(nil) = %v, want 1", got)
	}
	if got := ptr.Deref(ptr.Ref(0.5), 1); got != 0.5 {
		t.Errorf("Deref(0.5) = %v, want 0.5", got)
	}
}
