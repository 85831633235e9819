package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelBeatsConflictingPattern(t *testing.T) {
	text := "Dealer: MH12CD5678\nRegn. No.: KA05AB1234\nOwner Name: RAVI KUMAR"

	pattern, ok := NewPatternStrategy().Attempt(NewDocument(text, 90, 2030), FieldRegistrationNo)
	require.True(t, ok)
	assert.Equal(t, "MH12CD5678", pattern)

	rec := Extract(text, 90)
	assert.Equal(t, "KA05AB1234", rec.RegistrationNo)
	assert.Equal(t, "RAVI KUMAR", rec.OwnerName)
}

func TestLabelValueOnNextLine(t *testing.T) {
	rec := Extract("Regn. No.\nKA 05 AB 1234\nChassis No\nMA3EWDE1S00123456", 85)
	assert.Equal(t, "KA05AB1234", rec.RegistrationNo)
	assert.Equal(t, "MA3EWDE1S00123456", rec.VIN)
}

func TestSeveralLabelsOnOneLine(t *testing.T) {
	rec := Extract("Make: HONDA Model: CITY ZX\nMfg Date: 11/2018", 85)
	assert.Equal(t, "HONDA", rec.Make)
	assert.Equal(t, "CITY ZX", rec.Model)
	assert.Equal(t, "2018", rec.Year)
}

func TestLongestLabelWins(t *testing.T) {
	rec := Extract("Maker's Model: SWIFT VXI", 85)
	assert.Equal(t, "SWIFT VXI", rec.Model)
	assert.Empty(t, rec.Make)
}

func TestMidLineWordWithoutSeparatorIsNotALabel(t *testing.T) {
	rec := Extract("Address: 12 Model Town, Delhi", 85)
	assert.Equal(t, "12 Model Town, Delhi", rec.Address)
	assert.Empty(t, rec.Model)
}

func TestRelationMarkerEndsOwnerName(t *testing.T) {
	rec := Extract("Name: RAVI KUMAR S/O RAJ KUMAR", 85)
	assert.Equal(t, "RAVI KUMAR", rec.OwnerName)
}

func TestLineStartWordUnderAValueIsNotALabel(t *testing.T) {
	rec, matches := Default().Explain("Address: 12 Main Rd\nModel Town, Delhi\nModel: SWIFT", 90)
	assert.Equal(t, "SWIFT", rec.Model)
	assert.Equal(t, "12 Main Rd", rec.Address)
	assert.Contains(t, matches, Match{Field: FieldModel, Strategy: "label", Value: "SWIFT"})
}

func TestSeparatedLabelBeatsBareLabel(t *testing.T) {
	rec := Extract("Model SWIFT VXI\nModel: DZIRE", 90)
	assert.Equal(t, "DZIRE", rec.Model)
}

func TestBareLabelIsUsedWhenNothingBetter(t *testing.T) {
	rec := Extract("Model SWIFT VXI\nColour: WHITE", 90)
	assert.Equal(t, "SWIFT VXI", rec.Model)
}

func TestRelationMarkerIsNotANextLineValue(t *testing.T) {
	rec := Extract("Owner Name:\nS/O RAJ KUMAR", 90)
	assert.NotEqual(t, "S/O RAJ KUMAR", rec.OwnerName)
	assert.NotEqual(t, "RAJ KUMAR", rec.OwnerName)
}

func TestRegistrationDistrictDigitsAreRepaired(t *testing.T) {
	cases := map[string]string{
		"Regn No: KAO5AB1234":   "KA05AB1234",
		"Regn No: KA 5O AB 1234": "KA50AB1234",
		"Regn No: MHI2DE1433":   "MH12DE1433",
		"Regn No: DL1CAB1234":   "DL1CAB1234",
		"Regn No: 22BH1234AA":   "22BH1234AA",
	}
	for in, want := range cases {
		assert.Equal(t, want, Extract(in, 90).RegistrationNo, "input %q", in)
	}
}

func TestPatternRepairsVINConfusions(t *testing.T) {
	v, ok := NewPatternStrategy().Attempt(NewDocument("frame MA3EWDEISOQ123456 ok", 90, 2030), FieldVIN)
	require.True(t, ok)
	assert.Equal(t, "MA3EWDE1S00123456", v)
}

func TestPatternPhoneAndEmail(t *testing.T) {
	rec := Extract("Contact 98450 12345\nravi.kumar@Example.com", 70)
	assert.Equal(t, "9845012345", rec.Phone)
	assert.Equal(t, "ravi.kumar@example.com", rec.Email)
}

func TestPatternKnownMake(t *testing.T) {
	rec := Extract("MARUTI SUZUKI INDIA LTD\nSWIFT DZIRE", 70)
	assert.Equal(t, "Maruti Suzuki", rec.Make)
}

func TestPositionalOwnerName(t *testing.T) {
	rec := Extract("GOVERNMENT OF KARNATAKA\nRavi Kumar\nKA05AB1234", 75)
	assert.Equal(t, "Ravi Kumar", rec.OwnerName)
	assert.Equal(t, "KA05AB1234", rec.RegistrationNo)
}

func TestPositionRespectsMinConfidence(t *testing.T) {
	pos := NewPositionStrategy()
	pos.MinConfidence = 50
	_, ok := pos.Attempt(NewDocument("Ravi Kumar", 40, 2030), FieldOwnerName)
	assert.False(t, ok)
	v, ok := pos.Attempt(NewDocument("Ravi Kumar", 60, 2030), FieldOwnerName)
	assert.True(t, ok)
	assert.Equal(t, "Ravi Kumar", v)
}

func TestYearOutsideRangeIsIgnored(t *testing.T) {
	rec := Extract("Year: 1890\nissued 2099", 70)
	assert.Empty(t, rec.Year)
}

func TestExtractNothingIsEmptyNotError(t *testing.T) {
	rec := Extract("", 0)
	assert.True(t, rec.Empty())
	rec = Extract("%%% ### ???", 10)
	assert.Equal(t, 0, rec.Filled())
}

type fixedStrategy map[Field]string

func (fixedStrategy) Name() string { return "fixed" }

func (s fixedStrategy) Attempt(_ *Document, f Field) (string, bool) {
	v, ok := s[f]
	return v, ok
}

func TestStrategiesRunInOrder(t *testing.T) {
	first := fixedStrategy{FieldMake: "First"}
	second := fixedStrategy{FieldMake: "Second", FieldModel: "Only"}
	e := New(first, second)

	rec, matches := e.Explain("anything", 90)
	assert.Equal(t, "First", rec.Make)
	assert.Equal(t, "Only", rec.Model)
	assert.Equal(t, []string{"fixed", "fixed"}, e.Strategies())
	require.Len(t, matches, 2)
	assert.Equal(t, FieldMake, matches[0].Field)
}

func TestRecordEncodesEveryField(t *testing.T) {
	b, err := json.Marshal(Record{RegistrationNo: "KA05AB1234"})
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Len(t, m, len(Fields))
	for _, f := range Fields {
		assert.Contains(t, m, string(f))
	}
	assert.Equal(t, "", m["ownerName"])
}
