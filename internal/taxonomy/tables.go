// Package taxonomy is the single canonical source for every enum, label
// and keyword list used by the hard filters and the scoring engine. The
// tables are versioned data: loaded once, never mutated at runtime. An
// industry tag missing from a table degrades that tag to neutral scoring
// rather than erroring, so unanticipated tags stay forward compatible.
package taxonomy

import "grantmatch/internal/model"

// GrantSize buckets a grant's award amount.
type GrantSize string

const (
	SizeMicro  GrantSize = "micro"
	SizeSmall  GrantSize = "small"
	SizeMedium GrantSize = "medium"
	SizeLarge  GrantSize = "large"
)

// Canonical industry tags.
const (
	IndustryAgriculture  = "agriculture"
	IndustryTechnology   = "technology"
	IndustryHealthcare   = "healthcare"
	IndustryEducation    = "education"
	IndustryArtsCulture  = "arts_culture"
	IndustryEnvironment  = "environment"
	IndustryEnergy       = "energy"
	IndustryManufacture  = "manufacturing"
	IndustryFoodBeverage = "food_beverage"
	IndustryConstruction = "construction"
	IndustryRetail       = "retail"
	IndustryTransport    = "transportation"
	IndustryResearch     = "research"
	IndustryCommunity    = "community_development"
	IndustryWorkforce    = "workforce"
)

// IndustryTags lists every canonical industry tag.
var IndustryTags = []string{
	IndustryAgriculture,
	IndustryTechnology,
	IndustryHealthcare,
	IndustryEducation,
	IndustryArtsCulture,
	IndustryEnvironment,
	IndustryEnergy,
	IndustryManufacture,
	IndustryFoodBeverage,
	IndustryConstruction,
	IndustryRetail,
	IndustryTransport,
	IndustryResearch,
	IndustryCommunity,
	IndustryWorkforce,
}

// Canonical purpose tags.
const (
	PurposeEquipment      = "equipment"
	PurposeExpansion      = "expansion"
	PurposeResearch       = "research"
	PurposeHiring         = "hiring"
	PurposeMarketing      = "marketing"
	PurposeOperations     = "operations"
	PurposeTraining       = "training"
	PurposeInfrastructure = "infrastructure"
	PurposeInnovation     = "innovation"
)

// EntityToEligibilityTags maps a profile entity type to the eligibility
// phrases sources commonly use for it. Matching is normalized-substring
// in either direction, so phrases stay lowercase and specific.
var EntityToEligibilityTags = map[model.EntityType][]string{
	model.EntityIndividual:     {"individuals", "citizens", "sole proprietors"},
	model.EntityNonprofit:      {"nonprofits", "nonprofit organizations", "501(c)(3)", "community organizations", "charitable organizations"},
	model.EntitySmallBusiness:  {"small businesses", "for-profit organizations", "startups", "small business concerns"},
	model.EntityForProfit:      {"for-profit organizations", "businesses", "corporations", "commercial organizations"},
	model.EntityFarm:           {"farmers", "ranchers", "agricultural producers", "producers"},
	model.EntityMunicipality:   {"city or township governments", "county governments", "local governments", "municipalities"},
	model.EntityTribal:         {"tribal governments", "native american tribal organizations", "federally recognized tribes"},
	model.EntityStateGov:       {"state governments", "state agencies"},
	model.EntityUniversity:     {"institutions of higher education", "universities", "colleges", "public and state controlled institutions of higher education"},
	model.EntitySchoolDistrict: {"school districts", "local education agencies", "independent school districts"},
}

// EntityTypeSynonyms maps free-form entity descriptions to canonical types.
var EntityTypeSynonyms = map[string]string{
	"sole proprietor":   string(model.EntityIndividual),
	"freelancer":        string(model.EntityIndividual),
	"501c3":             string(model.EntityNonprofit),
	"501(c)(3)":         string(model.EntityNonprofit),
	"charity":           string(model.EntityNonprofit),
	"llc":               string(model.EntitySmallBusiness),
	"startup":           string(model.EntitySmallBusiness),
	"corporation":       string(model.EntityForProfit),
	"company":           string(model.EntityForProfit),
	"rancher":           string(model.EntityFarm),
	"farmer":            string(model.EntityFarm),
	"grower":            string(model.EntityFarm),
	"city government":   string(model.EntityMunicipality),
	"county government": string(model.EntityMunicipality),
	"tribe":             string(model.EntityTribal),
	"college":           string(model.EntityUniversity),
	"school":            string(model.EntitySchoolDistrict),
}

// SmallEntityTypes are the profile entity types the institution-only
// filter protects: applicants that large-institution grants routinely
// crowd out.
var SmallEntityTypes = map[model.EntityType]bool{
	model.EntityIndividual:    true,
	model.EntityNonprofit:     true,
	model.EntitySmallBusiness: true,
	model.EntityFarm:          true,
}

// InstitutionOnlyKeywords flag grants aimed exclusively at large
// institutions. A small-entity-positive keyword in the same text rescues
// the grant: many grants list universities first but remain open to
// small applicants.
var InstitutionOnlyKeywords = []string{
	"r1 research institution",
	"research university",
	"research universities",
	"state agencies",
	"academic medical center",
	"national laborator",
	"institutions of higher education only",
	"federally funded research and development center",
}

// SmallEntityPositiveKeywords rescue a grant from the institution-only
// filter.
var SmallEntityPositiveKeywords = []string{
	"small business",
	"small businesses",
	"individual",
	"nonprofit",
	"farmer",
	"rancher",
	"sole proprietor",
	"community organization",
	"startup",
}

// EntityExclusionPhrases are phrases a grant uses to explicitly exclude
// an entity type.
var EntityExclusionPhrases = map[model.EntityType][]string{
	model.EntityIndividual: {
		"not for individuals",
		"individuals are not eligible",
		"excluding individuals",
		"organizations only",
	},
	model.EntityNonprofit: {
		"for-profit entities only",
		"nonprofits are not eligible",
	},
	model.EntitySmallBusiness: {
		"nonprofit organizations only",
		"501(c)(3) organizations only",
		"not available to for-profit",
		"for-profit entities are not eligible",
	},
	model.EntityForProfit: {
		"nonprofit organizations only",
		"501(c)(3) organizations only",
		"not available to for-profit",
		"for-profit entities are not eligible",
	},
	model.EntityFarm: {
		"not for agricultural producers",
	},
}

// IndustryPositiveKeywords signal that a grant's text is about an
// industry. Matching is case-insensitive substring, so stems like
// "agricultur" cover both the noun and the adjective.
var IndustryPositiveKeywords = map[string][]string{
	IndustryAgriculture:  {"agricultur", "farm", "crop", "livestock", "ranch", "soil", "irrigation", "rural producer"},
	IndustryTechnology:   {"technology", "software", "digital", "broadband", "cybersecurity", "artificial intelligence", "data science"},
	IndustryHealthcare:   {"health", "medical", "clinic", "patient", "telehealth", "public health"},
	IndustryEducation:    {"education", "school", "student", "classroom", "teacher", "curriculum", "stem learning"},
	IndustryArtsCulture:  {"arts", "artist", "cultural", "museum", "humanities", "performing", "heritage"},
	IndustryEnvironment:  {"environment", "conservation", "climate", "wildlife", "watershed", "habitat", "sustainab"},
	IndustryEnergy:       {"energy", "solar", "wind power", "renewable", "grid", "electric vehicle", "geothermal"},
	IndustryManufacture:  {"manufactur", "fabrication", "production facility", "industrial", "supply chain"},
	IndustryFoodBeverage: {"food", "beverage", "culinary", "restaurant", "nutrition", "meat processing"},
	IndustryConstruction: {"construction", "building trades", "contractor", "housing development", "renovation"},
	IndustryRetail:       {"retail", "storefront", "main street business", "e-commerce", "merchant"},
	IndustryTransport:    {"transportation", "transit", "freight", "logistics", "highway", "port"},
	IndustryResearch:     {"research", "r&d", "scientific", "laboratory", "innovation study"},
	IndustryCommunity:    {"community development", "neighborhood", "revitalization", "affordable housing", "economic development"},
	IndustryWorkforce:    {"workforce", "job training", "apprenticeship", "employment program", "career pathway"},
}

// IndustryExclusionKeywords catch text that contains an industry's word
// without being about that industry. An exclusion only disqualifies a
// grant when no positive keyword for the same tag is present.
var IndustryExclusionKeywords = map[string][]string{
	IndustryAgriculture: {"server farm", "wind farm", "data farm"},
	IndustryTechnology:  {"technical assistance"},
	IndustryArtsCulture: {"martial arts", "state of the art"},
	IndustryEnergy:      {"energy drink", "high-energy physics"},
	IndustryManufacture: {"manufactured housing"},
	IndustryHealthcare:  {"healthy soil", "financial health"},
	IndustryEducation:   {"driver education"},
}

// CategoryToIndustry maps source category labels to canonical industry
// tags. Keys are matched case-insensitively after normalization.
var CategoryToIndustry = map[string][]string{
	"agriculture":                    {IndustryAgriculture},
	"food and nutrition":             {IndustryFoodBeverage, IndustryAgriculture},
	"science and technology":         {IndustryTechnology, IndustryResearch},
	"information technology":         {IndustryTechnology},
	"health":                         {IndustryHealthcare},
	"public health":                  {IndustryHealthcare},
	"education":                      {IndustryEducation},
	"arts":                           {IndustryArtsCulture},
	"humanities":                     {IndustryArtsCulture},
	"environment":                    {IndustryEnvironment},
	"natural resources":              {IndustryEnvironment, IndustryAgriculture},
	"energy":                         {IndustryEnergy},
	"business and commerce":          {IndustryRetail, IndustryManufacture},
	"community development":          {IndustryCommunity},
	"housing":                        {IndustryCommunity, IndustryConstruction},
	"transportation":                 {IndustryTransport},
	"employment, labor and training": {IndustryWorkforce},
	"regional development":           {IndustryCommunity},
	"disaster prevention and relief": {IndustryCommunity},
}

// GoalsToPurpose expands onboarding goals into canonical purpose tags.
var GoalsToPurpose = map[string][]string{
	"buy_equipment":        {PurposeEquipment, PurposeOperations},
	"grow_business":        {PurposeExpansion, PurposeMarketing},
	"expand_operations":    {PurposeExpansion, PurposeInfrastructure},
	"hire_staff":           {PurposeHiring, PurposeTraining},
	"research_development": {PurposeResearch, PurposeInnovation},
	"improve_operations":   {PurposeOperations, PurposeTraining},
	"build_facilities":     {PurposeInfrastructure, PurposeExpansion},
	"train_workforce":      {PurposeTraining, PurposeHiring},
	"launch_product":       {PurposeInnovation, PurposeMarketing},
}

// BudgetToGrantSize maps an annual-budget band to the grant sizes that
// are an appropriate lift for an organization of that scale.
var BudgetToGrantSize = map[string][]GrantSize{
	"under_100k": {SizeMicro, SizeSmall},
	"100k_500k":  {SizeSmall, SizeMedium},
	"500k_1m":    {SizeSmall, SizeMedium},
	"1m_5m":      {SizeMedium, SizeLarge},
	"over_5m":    {SizeMedium, SizeLarge},
}

// SmallBudgetBands are the bands for which a large grant draws a
// capacity warning.
var SmallBudgetBands = map[string]bool{
	"under_100k": true,
	"100k_500k":  true,
}

// StateCodes maps full state names to USPS codes for location
// normalization.
var StateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
	"puerto rico": "PR",
}
