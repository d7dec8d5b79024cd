package valueobjects

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	pkgerrors "relmap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProximity(t *testing.T) {
	tests := []struct {
		input   string
		want    Proximity
		wantErr bool
	}{
		{input: "fort", want: ProximityStrong},
		{input: " Moyen ", want: ProximityMedium},
		{input: "FAIBLE", want: ProximityWeak},
		{input: "", wantErr: true},
		{input: "strong", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProximity(tt.input)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				assert.Equal(t, ProximityMedium, ProximityOrDefault(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProximity_JSON(t *testing.T) {
	var payload struct {
		Proximity Proximity `json:"proximity"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"proximity":"fort"}`), &payload))
	assert.Equal(t, ProximityStrong, payload.Proximity)

	assert.Error(t, json.Unmarshal([]byte(`{"proximity":"close"}`), &payload))
	assert.Less(t, ProximityStrong.Rank(), ProximityWeak.Rank())
}

func TestParseCategoryList(t *testing.T) {
	set, unknown := ParseCategoryList("investisseur| Partenaire ||Board|Advisor", "|")

	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Has(CategoryInvestor))
	assert.True(t, set.Has(CategoryPartner))
	assert.True(t, set.Has(CategoryAdvisor))
	assert.Equal(t, []string{"Board"}, unknown)

	empty, unknown := ParseCategoryList("   ", "|")
	assert.True(t, empty.IsEmpty())
	assert.Nil(t, unknown)
}

func TestCategorySet_JoinRoundTrip(t *testing.T) {
	set := CategorySetOf(CategoryAdvisor, CategoryTrainingBody, CategoryPartner)

	joined := set.Join("|")
	assert.Equal(t, "Partenaire|Organisme de formation|Advisor", joined)

	parsed, unknown := ParseCategoryList(joined, "|")
	assert.Empty(t, unknown)
	assert.True(t, parsed.Equals(set))
}

func TestCategorySet_Intersects(t *testing.T) {
	a := CategorySetOf(CategoryPartner, CategoryOther)
	b := CategorySetOf(CategoryOther)
	c := CategorySetOf(CategoryAdvisor)

	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a))
	assert.False(t, a.Intersects(c))
	assert.False(t, a.Intersects(CategorySet{}))
}

func TestCategorySet_JSON(t *testing.T) {
	data, err := json.Marshal(CategorySetOf(CategoryInvestor, CategoryPartner))
	require.NoError(t, err)
	assert.JSONEq(t, `["Partenaire","Investisseur"]`, string(data))

	var set CategorySet
	require.NoError(t, json.Unmarshal([]byte(`["autre"]`), &set))
	assert.True(t, set.Has(CategoryOther))

	assert.Error(t, json.Unmarshal([]byte(`["Board"]`), &set))

	data, err = json.Marshal(CategorySet{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestNewPosition(t *testing.T) {
	pos, err := NewPosition(1, -2.5)
	require.NoError(t, err)
	assert.True(t, pos.Equals(Position{X: 1, Y: -2.5}))

	_, err = NewPosition(math.NaN(), 0)
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = NewPosition(0, math.Inf(1))
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUUIDGenerator(t *testing.T) {
	gen := NewUUIDGenerator()

	id := gen.Generate("person")
	assert.True(t, strings.HasPrefix(id, "person-"))
	assert.NotEqual(t, id, gen.Generate("person"))
	assert.Len(t, gen.Generate(""), 36)
}
