package quote

// ItemKind is a shippable container type.
type ItemKind string

const (
	KindDrum  ItemKind = "drum"
	KindBox   ItemKind = "box"
	KindTrunk ItemKind = "trunk"
)

// drumTier prices every drum in an order by the total number of drums.
type drumTier struct {
	minQty int
	price  float64
}

var drumTiers = []drumTier{
	{minQty: 5, price: 240},
	{minQty: 2, price: 250},
	{minQty: 1, price: 260},
}

var boxPrices = map[string]float64{
	"small":  45,
	"medium": 70,
	"large":  95,
}

var trunkPrices = map[string]float64{
	"standard": 120,
	"large":    160,
}

// City is a delivery destination in Zimbabwe. Zone 1 has no surcharge.
type City struct {
	Name     string `json:"name"`
	Province string `json:"province"`
	Zone     int    `json:"zone"`
}

var zoneSurcharge = map[int]float64{
	1: 0,
	2: 10,
	3: 25,
}

var cities = []City{
	{Name: "Harare", Province: "Harare", Zone: 1},
	{Name: "Chitungwiza", Province: "Harare", Zone: 1},
	{Name: "Bulawayo", Province: "Bulawayo", Zone: 1},
	{Name: "Ruwa", Province: "Mashonaland East", Zone: 1},
	{Name: "Marondera", Province: "Mashonaland East", Zone: 2},
	{Name: "Mutare", Province: "Manicaland", Zone: 2},
	{Name: "Gweru", Province: "Midlands", Zone: 2},
	{Name: "Kwekwe", Province: "Midlands", Zone: 2},
	{Name: "Kadoma", Province: "Mashonaland West", Zone: 2},
	{Name: "Chinhoyi", Province: "Mashonaland West", Zone: 2},
	{Name: "Bindura", Province: "Mashonaland Central", Zone: 2},
	{Name: "Masvingo", Province: "Masvingo", Zone: 2},
	{Name: "Zvishavane", Province: "Midlands", Zone: 3},
	{Name: "Beitbridge", Province: "Matabeleland South", Zone: 3},
	{Name: "Gwanda", Province: "Matabeleland South", Zone: 3},
	{Name: "Hwange", Province: "Matabeleland North", Zone: 3},
	{Name: "Victoria Falls", Province: "Matabeleland North", Zone: 3},
	{Name: "Kariba", Province: "Mashonaland West", Zone: 3},
	{Name: "Chipinge", Province: "Manicaland", Zone: 3},
	{Name: "Rusape", Province: "Manicaland", Zone: 2},
}

// collectionRoutes maps UK postcode areas to the collection run covering them.
var collectionRoutes = map[string]string{
	"E": "London", "EC": "London", "N": "London", "NW": "London", "SE": "London",
	"SW": "London", "W": "London", "WC": "London", "CR": "London", "BR": "London",
	"HA": "London", "IG": "London", "RM": "London", "UB": "London", "EN": "London",
	"B": "Midlands", "CV": "Midlands", "WV": "Midlands", "WS": "Midlands", "DY": "Midlands",
	"LE": "Midlands", "NG": "Midlands", "DE": "Midlands", "NN": "Midlands",
	"M": "North West", "L": "North West", "WA": "North West", "BL": "North West",
	"OL": "North West", "SK": "North West", "PR": "North West", "BB": "North West",
	"LS": "Yorkshire", "BD": "Yorkshire", "S": "Yorkshire", "HD": "Yorkshire", "WF": "Yorkshire",
	"HU": "Yorkshire", "YO": "Yorkshire",
	"LU": "Home Counties", "MK": "Home Counties", "SL": "Home Counties", "RG": "Home Counties",
	"OX": "Home Counties", "HP": "Home Counties", "AL": "Home Counties", "SG": "Home Counties",
	"BS": "South West", "BA": "South West", "GL": "South West", "SN": "South West",
	"CF": "Wales", "NP": "Wales", "SA": "Wales",
	"G": "Scotland", "EH": "Scotland",
}
