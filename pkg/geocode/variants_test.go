package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		address string
		want    []string
	}{
		{
			name:    "canadian address with postal code",
			address: "123 Main St, Springfield, QC H1A1A1",
			want: []string{
				"123 Main St, Springfield, QC H1A1A1",
				"123 Main St, Springfield, QC",
				"123 Main St, QC",
			},
		},
		{
			name:    "canadian postal code with space",
			address: "4141 Pierre-De Coubertin Ave, Montreal, QC H1V 3N7",
			want: []string{
				"4141 Pierre-De Coubertin Ave, Montreal, QC H1V 3N7",
				"4141 Pierre-De Coubertin Ave, Montreal, QC",
				"4141 Pierre-De Coubertin Ave, QC",
			},
		},
		{
			name:    "us address with zip+4",
			address: "1600 Pennsylvania Ave NW, Washington, DC 20500-0003",
			want: []string{
				"1600 Pennsylvania Ave NW, Washington, DC 20500-0003",
				"1600 Pennsylvania Ave NW, Washington, DC",
				"1600 Pennsylvania Ave NW, DC",
			},
		},
		{
			name:    "full state name as region",
			address: "100 Elm Street, Portland, Oregon 97201",
			want: []string{
				"100 Elm Street, Portland, Oregon 97201",
				"100 Elm Street, Portland, Oregon",
				"100 Elm Street, Oregon",
			},
		},
		{
			name:    "single segment with region and postal",
			address: "123 Main St QC H1A1A1",
			want: []string{
				"123 Main St QC H1A1A1",
				"123 Main St QC",
				"123 Main St, QC",
			},
		},
		{
			name:    "zip only, no region marker",
			address: "742 Evergreen Terrace, Springfield 49007",
			want: []string{
				"742 Evergreen Terrace, Springfield 49007",
				"742 Evergreen Terrace, Springfield",
			},
		},
		{
			name:    "no postal, no region",
			address: "42 Wallaby Way, Sydney",
			want:    []string{"42 Wallaby Way, Sydney"},
		},
		{
			name:    "five digit street number survives",
			address: "12345 Riverside Drive, Sherman Oaks",
			want:    []string{"12345 Riverside Drive, Sherman Oaks"},
		},
		{
			name:    "whitespace collapsed",
			address: "  9  Rue   de la Paix ",
			want:    []string{"9 Rue de la Paix"},
		},
		{
			name:    "empty",
			address: "   ",
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, QueryVariants(tc.address))
		})
	}
}

func TestStripPostalTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Montreal, QC", stripPostalTail("Montreal, QC H3B 2Y5"))
	assert.Equal(t, "Montreal, QC", stripPostalTail("Montreal, QC H3B2Y5"))
	assert.Equal(t, "Austin, TX", stripPostalTail("Austin, TX 78701"))
	assert.Equal(t, "Austin, TX", stripPostalTail("Austin, TX, 78701"))
	// Postal codes in the middle stay put.
	assert.Equal(t, "78701 Loop, Austin", stripPostalTail("78701 Loop, Austin"))
}

func TestTruncateAtRegion_RightmostSegmentWins(t *testing.T) {
	t.Parallel()

	// "Washington" is a state name, but the DC segment sits further right.
	got, region, ok := truncateAtRegion("1600 Pennsylvania Ave NW, Washington, DC 20500")
	assert.True(t, ok)
	assert.Equal(t, "DC", region)
	assert.Equal(t, "1600 Pennsylvania Ave NW, Washington, DC", got)
}
