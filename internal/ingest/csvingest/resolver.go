package csvingest

import (
	"regexp"
	"strings"

	"github.com/tidyhost/turnsync/internal/models"
)

var listingNumberRe = regexp.MustCompile(`\d{4,}`)

// PropertyIndex resolves supplier property references onto record-store
// properties. No fuzzy matching: iTrip rows match on exact
// case-insensitive name, Evolve rows on the listing number embedded in
// the property column.
type PropertyIndex struct {
	byName    map[string]*models.Property
	byListing map[string]*models.Property
}

func NewPropertyIndex(properties []models.Property) *PropertyIndex {
	idx := &PropertyIndex{
		byName:    make(map[string]*models.Property, len(properties)),
		byListing: make(map[string]*models.Property, len(properties)),
	}
	for i := range properties {
		p := &properties[i]
		if p.Name != "" {
			idx.byName[strings.ToLower(strings.TrimSpace(p.Name))] = p
		}
		if p.ListingNumber != "" {
			idx.byListing[p.ListingNumber] = p
		}
	}
	return idx
}

// ByName matches an iTrip property name.
func (idx *PropertyIndex) ByName(name string) *models.Property {
	return idx.byName[strings.ToLower(strings.TrimSpace(name))]
}

// ByListing extracts a listing number from the raw property column and
// matches it.
func (idx *PropertyIndex) ByListing(raw string) *models.Property {
	listing := listingNumberRe.FindString(raw)
	if listing == "" {
		return nil
	}
	return idx.byListing[listing]
}
