package catalog

import "fmt"

type familyContent struct {
	introButtons   []string
	requiredFields []string
}

var families = map[Family]familyContent{
	FamilyBooking: {
		introButtons:   []string{"Novi termin", "Promjena termina", "Pitanje"},
		requiredFields: []string{"ime i prezime", "usluga", "termin"},
	},
	FamilyEmergency: {
		introButtons:   []string{"Hitno", "Nije hitno"},
		requiredFields: []string{"ime i prezime", "adresa", "broj stana", "problem"},
	},
	FamilyQuery: {
		introButtons:   []string{"Ponuda", "Informacije"},
		requiredFields: []string{"ime i prezime", "email", "pitanje"},
	},
	FamilyDelivery: {
		introButtons:   []string{"Nova narudžba", "Pitanje o narudžbi"},
		requiredFields: []string{"ime i prezime", "proizvod", "opis proizvoda", "količina"},
	},
}

// categoryFamilies lists every category that has approved templates.
var categoryFamilies = map[CategoryKey]Family{
	"booking_service":             FamilyBooking,
	"booking_service_default":     FamilyBooking,
	"booking_service_beauty":      FamilyBooking,
	"booking_service_groomer":     FamilyBooking,
	"booking_service_massage":     FamilyBooking,
	"booking_service_nails":       FamilyBooking,
	"booking_service_tattoo":      FamilyBooking,
	"booking_service_fitness":     FamilyBooking,
	"booking_service_makeup":      FamilyBooking,
	"booking_service_autodetail":  FamilyBooking,
	"booking_service_flower_shop": FamilyBooking,

	"emergency_repair":                        FamilyEmergency,
	"emergency_repair_upravnik":               FamilyEmergency,
	"emergency_repair_vodoinstalater":         FamilyEmergency,
	"emergency_repair_elektricar":             FamilyEmergency,
	"emergency_repair_stolar":                 FamilyEmergency,
	"emergency_repair_klima_serviser":         FamilyEmergency,
	"emergency_repair_bravar_zidar_keramicar": FamilyEmergency,
	"emergency_repair_automehanicar":          FamilyEmergency,
	"emergency_repair_24h":                    FamilyEmergency,

	"business_query":                               FamilyQuery,
	"business_query_real_estate_agent":             FamilyQuery,
	"business_query_bookkeeper":                    FamilyQuery,
	"business_query_gradevinski_nadzor":            FamilyQuery,
	"business_query_arhitekt_dizajner_interijera":  FamilyQuery,
	"business_query_savjetnik_psihoterapeut_coach": FamilyQuery,

	"delivery_order":          FamilyDelivery,
	"delivery_order_food":     FamilyDelivery,
	"delivery_order_opg":      FamilyDelivery,
	"delivery_order_catering": FamilyDelivery,
}

// professionLabels maps the labels the onboarding UI sends to categories.
var professionLabels = map[string]CategoryKey{
	"Frizerka / Barber":             "booking_service_default",
	"Kozmetičarka":                  "booking_service_beauty",
	"Groomer za pse":                "booking_service_groomer",
	"Masažer / Terapeut":            "booking_service_massage",
	"Pediker / Maniker":             "booking_service_nails",
	"Tatoo majstor":                 "booking_service_tattoo",
	"Privatni fitness trener":       "booking_service_fitness",
	"Depilacija / Lash & brow tech": "booking_service_beauty",
	"Šminker / MUA":                 "booking_service_makeup",
	"AutoDetailing":                 "booking_service_autodetail",
	"Cvjećarna":                     "booking_service_flower_shop",

	"Upravnik zgrade":                  "emergency_repair_upravnik",
	"Vodoinstalater":                   "emergency_repair_vodoinstalater",
	"Električar":                       "emergency_repair_elektricar",
	"Stolar":                           "emergency_repair_stolar",
	"Montažer klime / serviser":        "emergency_repair_klima_serviser",
	"Bravar / Zidar / Keramičar":       "emergency_repair_bravar_zidar_keramicar",
	"Automehaničar":                    "emergency_repair_automehanicar",
	"Hitne intervencije (servis 0-24)": "emergency_repair_24h",

	"Agent za nekretnine":                    "business_query_real_estate_agent",
	"Bookkeeper / računovođa":                "business_query_bookkeeper",
	"Građevinski nadzor":                     "business_query_gradevinski_nadzor",
	"Arhitekt / dizajner interijera":         "business_query_arhitekt_dizajner_interijera",
	"Savjetnik / life coach / psihoterapeut": "business_query_savjetnik_psihoterapeut_coach",

	"Dostava hrane / kolača / ručnih proizvoda": "delivery_order_food",
	"OPG":                     "delivery_order_opg",
	"Pečenjarnica / Catering": "delivery_order_catering",
}

// TemplateName builds the gateway template name for a category stage.
func TemplateName(category CategoryKey, stage Stage) string {
	return fmt.Sprintf("%s_pm_%s", category, stage)
}

// FamilyOf returns the family a default-catalog category belongs to.
func FamilyOf(category CategoryKey) (Family, bool) {
	f, ok := categoryFamilies[category]
	return f, ok
}

// DefaultEntries builds the three-stage entries for every category in the
// default catalog.
func DefaultEntries() map[CategoryKey][]StageTemplate {
	entries := make(map[CategoryKey][]StageTemplate, len(categoryFamilies))
	for key, family := range categoryFamilies {
		content := families[family]
		entries[key] = []StageTemplate{
			{Stage: StageIntro, Template: Template{
				Name:    TemplateName(key, StageIntro),
				Buttons: content.introButtons,
			}},
			{Stage: StageDetails, Template: Template{
				Name:           TemplateName(key, StageDetails),
				RequiredFields: content.requiredFields,
			}},
			{Stage: StageConfirmation, Template: Template{
				Name: TemplateName(key, StageConfirmation),
			}},
		}
	}
	return entries
}

// Default returns the registry for the built-in template catalog.
func Default() *Registry {
	return MustNewRegistry(DefaultEntries())
}

// ProfessionLabels returns a copy of the raw label -> category table.
func ProfessionLabels() map[string]CategoryKey {
	out := make(map[string]CategoryKey, len(professionLabels))
	for k, v := range professionLabels {
		out[k] = v
	}
	return out
}
