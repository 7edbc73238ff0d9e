package memegen

// PopularTemplate is a well-known template id/name pair for the shortlist reply.
type PopularTemplate struct {
	ID   string
	Name string
}

// Popular is the fixed shortlist shown by the templates command. The full
// catalog is much larger; this is just the set people actually ask for.
var Popular = []PopularTemplate{
	{"drake", "Drake Hotline Bling"},
	{"buzz", "Buzz Lightyear"},
	{"doge", "Doge"},
	{"fry", "Futurama Fry"},
	{"batman", "Batman Slapping Robin"},
	{"success", "Success Kid"},
	{"grumpy", "Grumpy Cat"},
	{"rollsafe", "Roll Safe"},
	{"picard", "Picard Facepalm"},
	{"alien", "Ancient Aliens"},
	{"fine", "This Is Fine"},
	{"change", "Change My Mind"},
	{"brain", "Expanding Brain"},
	{"distracted", "Distracted Boyfriend"},
	{"always", "Always Has Been"},
}
