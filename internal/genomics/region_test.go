package genomics

import "testing"

func TestRegion_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		region Region
		ok     bool
	}{
		{"all mapped reads", AllMappedReads, true},
		{"open end", Region{ReferenceID: 1, Start: 100}, true},
		{"single base", Region{Start: 5, End: 5}, true},
		{"start after end", Region{Start: 10, End: 5}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.region.Validate(); (err == nil) != tc.ok {
				t.Errorf("Validate(%s): got error %v, want ok=%v", tc.region, err, tc.ok)
			}
		})
	}
}
