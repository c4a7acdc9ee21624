package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compscan-engine/internal/domain"
)

func fieldsOfKind(fields []domain.ExtractedField, k domain.FieldKind) []domain.ExtractedField {
	var out []domain.ExtractedField
	for _, f := range fields {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

func TestExtract_EmptyText(t *testing.T) {
	ex := New(Options{})

	fields, err := ex.Extract(domain.RawReply{Index: 0, Text: ""})
	require.NoError(t, err)
	assert.Empty(t, fields)

	fields, err = ex.Extract(domain.RawReply{Index: 0, Text: "   \n\t "})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	ex := New(Options{})

	_, err := ex.Extract(domain.RawReply{Index: 3, Text: "comp is \xff\xfe 95k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtract_NoRecognizablePattern(t *testing.T) {
	ex := New(Options{})

	for _, text := range []string{
		"thanks for sharing, super helpful thread",
		"just lurking, no comp info",
		"following this one closely!",
	} {
		fields, err := ex.Extract(domain.RawReply{Index: 0, Text: text})
		require.NoError(t, err)
		assert.Empty(t, fields, "no spurious fields for %q", text)
	}
}

func TestExtract_SalaryNormalization(t *testing.T) {
	ex := New(Options{})

	tests := []struct {
		text   string
		amount float64
		unit   string
	}{
		{"comp is 95k base", 95000, UnitAnnual},
		{"Base 80k and decent benefits", 80000, UnitAnnual},
		{"my base is $85,000", 85000, UnitAnnual},
		{"total package around 132,500 salary", 132500, UnitAnnual},
		{"making 45 per hour these days", 45, UnitHourly},
		{"$38/hr on a contract", 38, UnitHourly},
	}

	for _, tt := range tests {
		fields, err := ex.Extract(domain.RawReply{Index: 0, Text: tt.text})
		require.NoError(t, err, tt.text)

		sal := fieldsOfKind(fields, domain.KindSalary)
		require.Len(t, sal, 1, "one salary for %q", tt.text)
		assert.Equal(t, tt.amount, sal[0].Amount, tt.text)
		assert.Equal(t, tt.unit, sal[0].Unit, tt.text)
	}
}

func TestExtract_SalaryImplausibleDropped(t *testing.T) {
	ex := New(Options{})

	for _, text := range []string{
		"my salary is 5k",            // below any plausible annual figure
		"we grew 300% since 2019",    // bare numbers, no comp meaning
		"drove 120 miles to the office", // no comp context
	} {
		fields, err := ex.Extract(domain.RawReply{Index: 0, Text: text})
		require.NoError(t, err)
		assert.Empty(t, fieldsOfKind(fields, domain.KindSalary),
			"dropped rather than propagated for %q", text)
	}
}

func TestExtract_ExperienceYears(t *testing.T) {
	ex := New(Options{})

	tests := []struct {
		text  string
		years float64
	}{
		{"6 yrs exp in logistics", 6},
		{"10+ years of experience", 10},
		{"about 2.5 years in the field", 2.5},
		{"3 yoe here", 3},
	}

	for _, tt := range tests {
		fields, err := ex.Extract(domain.RawReply{Index: 0, Text: tt.text})
		require.NoError(t, err, tt.text)

		exp := fieldsOfKind(fields, domain.KindExperience)
		require.NotEmpty(t, exp, tt.text)
		assert.Equal(t, tt.years, exp[0].Amount, tt.text)
		assert.Equal(t, UnitYears, exp[0].Unit, tt.text)
	}
}

func TestExtract_ExperienceBand(t *testing.T) {
	ex := New(Options{})

	fields, err := ex.Extract(domain.RawReply{Index: 0, Text: "still entry level, learning a lot"})
	require.NoError(t, err)

	exp := fieldsOfKind(fields, domain.KindExperience)
	require.Len(t, exp, 1)
	assert.Equal(t, "entry level", exp[0].Label)
	assert.Zero(t, exp[0].Amount)
}

func TestExtract_RoleForms(t *testing.T) {
	ex := New(Options{})

	tests := []struct {
		text string
		want string
	}{
		{"title: Supply Chain Analyst", "Supply Chain Analyst"},
		{"I'm a senior supply chain planner at Acme", "senior supply chain planner"},
		{"Senior Planner here", "Senior Planner"},
		{"working as a demand forecaster for two years", "demand forecaster"},
	}

	for _, tt := range tests {
		fields, err := ex.Extract(domain.RawReply{Index: 0, Text: tt.text})
		require.NoError(t, err, tt.text)

		roles := fieldsOfKind(fields, domain.KindRole)
		require.NotEmpty(t, roles, tt.text)

		labels := make([]string, 0, len(roles))
		for _, r := range roles {
			labels = append(labels, r.Label)
		}
		assert.Contains(t, labels, tt.want, tt.text)
	}
}

func TestExtract_RoleKeywordsFromConfig(t *testing.T) {
	ex := New(Options{RoleKeywords: []string{"dispatcher"}})

	fields, err := ex.Extract(domain.RawReply{Index: 0, Text: "Lead Dispatcher in Houston"})
	require.NoError(t, err)

	roles := fieldsOfKind(fields, domain.KindRole)
	require.NotEmpty(t, roles)
	assert.Equal(t, "Lead Dispatcher", roles[0].Label)
}

func TestExtract_LocationForms(t *testing.T) {
	ex := New(Options{})

	tests := []struct {
		text string
		want string
	}{
		{"based in Denver these days", "Denver"},
		{"relocating soon, Austin, TX for now", "Austin, TX"},
		{"Chicago, 6 yrs exp", "Chicago"},
		{"fully remote since 2021", "remote"},
	}

	for _, tt := range tests {
		fields, err := ex.Extract(domain.RawReply{Index: 0, Text: tt.text})
		require.NoError(t, err, tt.text)

		locs := fieldsOfKind(fields, domain.KindLocation)
		require.NotEmpty(t, locs, tt.text)

		labels := make([]string, 0, len(locs))
		for _, l := range locs {
			labels = append(labels, l.Label)
		}
		assert.Contains(t, labels, tt.want, tt.text)
	}
}

func TestExtract_LocationHintsFromConfig(t *testing.T) {
	ex := New(Options{LocationHints: []string{"winnipeg"}})

	fields, err := ex.Extract(domain.RawReply{Index: 0, Text: "cold but cheap out here in winnipeg"})
	require.NoError(t, err)

	locs := fieldsOfKind(fields, domain.KindLocation)
	require.Len(t, locs, 1)
	assert.Equal(t, "winnipeg", locs[0].Label)
}

func TestExtract_SpansReferenceSourceText(t *testing.T) {
	ex := New(Options{})
	text := "Base 80k, Senior Planner, Chicago, 6 yrs exp"

	fields, err := ex.Extract(domain.RawReply{Index: 0, Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, fields)

	for _, f := range fields {
		require.True(t, f.Span.ValidFor(text), "span %+v out of range", f.Span)
		assert.Equal(t, text[f.Span.Start:f.Span.End], f.Text)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	ex := New(Options{})
	reply := domain.RawReply{Index: 7, Text: "Base 80k, Senior Planner, Chicago, 6 yrs exp"}

	first, err := ex.Extract(reply)
	require.NoError(t, err)
	second, err := ex.Extract(reply)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
