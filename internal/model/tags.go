package model

// TagCategory identifies one of the independent tag-id sets attached to a
// cave or an entrance.
type TagCategory string

// Cave tag categories.
const (
	TagGeology               TagCategory = "geology"
	TagBiology               TagCategory = "biology"
	TagArcheology            TagCategory = "archeology"
	TagCartographerName      TagCategory = "cartographer_name"
	TagMapStatus             TagCategory = "map_status"
	TagGeologicAge           TagCategory = "geologic_age"
	TagPhysiographicProvince TagCategory = "physiographic_province"
	TagReportedByName        TagCategory = "reported_by_name"
	TagOther                 TagCategory = "other"
)

// Entrance tag categories.
const (
	TagEntranceStatus          TagCategory = "entrance_status"
	TagEntranceHydrology       TagCategory = "entrance_hydrology"
	TagEntranceFieldIndication TagCategory = "entrance_field_indication"
	TagEntranceReportedByName  TagCategory = "entrance_reported_by_name"
)

// CaveTagCategories lists the nine cave-level tag sets in the fixed order
// used for diff output.
var CaveTagCategories = []TagCategory{
	TagGeology,
	TagBiology,
	TagArcheology,
	TagCartographerName,
	TagMapStatus,
	TagGeologicAge,
	TagPhysiographicProvince,
	TagReportedByName,
	TagOther,
}

// EntranceTagCategories lists the four entrance-level tag sets in the fixed
// order used for diff output.
var EntranceTagCategories = []TagCategory{
	TagEntranceStatus,
	TagEntranceHydrology,
	TagEntranceFieldIndication,
	TagEntranceReportedByName,
}

// tagProperties maps each category to the property name recorded on its
// change records.
var tagProperties = map[TagCategory]string{
	TagGeology:                 "GeologyTags",
	TagBiology:                 "BiologyTags",
	TagArcheology:              "ArcheologyTags",
	TagCartographerName:        "CartographerNameTags",
	TagMapStatus:               "MapStatusTags",
	TagGeologicAge:             "GeologicAgeTags",
	TagPhysiographicProvince:   "PhysiographicProvinceTags",
	TagReportedByName:          "ReportedByNameTags",
	TagOther:                   "OtherTags",
	TagEntranceStatus:          "EntranceStatusTags",
	TagEntranceHydrology:       "EntranceHydrologyTags",
	TagEntranceFieldIndication: "EntranceFieldIndicationTags",
	TagEntranceReportedByName:  "EntranceReportedByNameTags",
}

// Property returns the change-record property name for this category.
func (c TagCategory) Property() string {
	return tagProperties[c]
}

// Valid reports whether c is a known cave or entrance tag category.
func (c TagCategory) Valid() bool {
	_, ok := tagProperties[c]
	return ok
}
