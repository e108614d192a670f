package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestSpaceDelimitedStringToFloatSlice(t *testing.T) {
	values, err := SpaceDelimitedStringToFloatSlice(" 1 2.5   -3e-1 ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldResemble, []float64{1, 2.5, -0.3})

	_, err = SpaceDelimitedStringToFloatSlice("1 two 3")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "two")
}

func TestParseFloatVector(t *testing.T) {
	values, err := ParseFloatVector("", 3, []float64{0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldResemble, []float64{0, 0, 1})

	values, err = ParseFloatVector("0.1 0.2 0.3", 3, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldResemble, []float64{0.1, 0.2, 0.3})

	_, err = ParseFloatVector("0.1 0.2", 3, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 3 values but got 2")
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(3, -1.57, 1.57), test.ShouldEqual, 1.57)
	test.That(t, Clamp(-3, -1.57, 1.57), test.ShouldEqual, -1.57)
	test.That(t, Clamp(0.5, -1.57, 1.57), test.ShouldEqual, 0.5)
	test.That(t, Clamp(1e9, math.Inf(-1), math.Inf(1)), test.ShouldEqual, 1e9)
	test.That(t, Float64AlmostEqual(RadToDeg(DegToRad(42)), 42, 1e-9), test.ShouldBeTrue)
}
